package worker

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/jdholdren/clearly/internal/notify"
)

// DigestRunner sends one round of digests.
type DigestRunner interface {
	Run(ctx context.Context) (notify.Report, error)
}

type activities struct {
	runner DigestRunner
}

// Instance to make the workflow a bit more readable
var acts = activities{}

// Sends a digest to every verified subscription with something new.
func (a activities) RunDigests(ctx context.Context) (notify.Report, error) {
	logger := activity.GetLogger(ctx)

	report, err := a.runner.Run(ctx)
	if err != nil {
		logger.Error("digest run failed", "error", err)
		return notify.Report{}, applicationErr(err)
	}
	logger.Info("digest run finished", "sent", report.Sent, "skipped", report.Skipped, "failed", report.Failed)

	return report, nil
}
