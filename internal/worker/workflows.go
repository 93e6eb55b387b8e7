package worker

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jdholdren/clearly/internal/notify"
)

type workflows struct{}

// SendDigests runs one round of digests.
//
// A round that overlaps one still going elsewhere is dropped rather than
// failed, since the other run covers the same window.
func (workflows) SendDigests(ctx workflow.Context) (notify.Report, error) {
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeRunInProgress},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)
	logger := workflow.GetLogger(ctx)

	var report notify.Report
	err := workflow.ExecuteActivity(ctx, acts.RunDigests).Get(ctx, &report)
	if isErrType(err, errTypeRunInProgress) {
		logger.Info("digest run already in progress, skipping")
		return notify.Report{}, nil
	}
	if err != nil {
		logger.Error("failed to send digests", "error", err)
		return notify.Report{}, err
	}

	return report, nil
}
