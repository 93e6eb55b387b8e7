package worker

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/jdholdren/clearly/internal/clearly"
)

// Error types
//
// These are error types in the temporal sense, not the general "go" error types sense.
// They are used since between activities error types are marshaled and type information is lost.
const (
	errTypeInternal      = "internal"
	errTypeRunInProgress = "runInProgress"
)

// Converts a runner error into one temporal knows whether to retry.
//
// A run that is already going elsewhere will have handled this round, so it
// is not retried.
func applicationErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, clearly.ErrRunInProgress) {
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeRunInProgress, err)
	}

	return temporal.NewApplicationError(err.Error(), errTypeInternal)
}

// Reports whether err came from an activity of the given error type.
func isErrType(err error, errType string) bool {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return false
	}

	return appErr.Type() == errType
}
