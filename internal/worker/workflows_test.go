package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/jdholdren/clearly/internal/clearly"
	"github.com/jdholdren/clearly/internal/notify"
)

type fakeRunner struct {
	calls  atomic.Int32
	report notify.Report
	err    error
}

func (f *fakeRunner) Run(context.Context) (notify.Report, error) {
	f.calls.Add(1)
	return f.report, f.err
}

func runWorkflow(t *testing.T, runner *fakeRunner) *testsuite.TestWorkflowEnvironment {
	t.Helper()

	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(&activities{runner: runner})
	env.ExecuteWorkflow(workflows{}.SendDigests)
	require.True(t, env.IsWorkflowCompleted())

	return env
}

func TestSendDigests(t *testing.T) {
	runner := &fakeRunner{report: notify.Report{Subscriptions: 3, Sent: 2, Skipped: 1}}
	env := runWorkflow(t, runner)

	require.NoError(t, env.GetWorkflowError())
	var report notify.Report
	require.NoError(t, env.GetWorkflowResult(&report))
	assert.Equal(t, runner.report, report)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestSendDigests_RunInProgress(t *testing.T) {
	runner := &fakeRunner{err: clearly.ErrRunInProgress}
	env := runWorkflow(t, runner)

	assert.NoError(t, env.GetWorkflowError(), "an overlapping round is dropped")
	assert.EqualValues(t, 1, runner.calls.Load(), "not retried")
}

func TestSendDigests_Failure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("error fetching subscriptions: disk gone")}
	env := runWorkflow(t, runner)

	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.True(t, isErrType(err, errTypeInternal))
	assert.EqualValues(t, 3, runner.calls.Load())
}
