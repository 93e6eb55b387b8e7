package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

const (
	TaskQueue = "digests"

	scheduleID = "send_digests"
)

// NewWorker sets up the worker with registration of workflows, activities, and
// the digest schedule firing every interval.
func NewWorker(ctx context.Context, runner DigestRunner, cli client.Client, interval time.Duration) (worker.Worker, error) {
	a := activities{
		runner: runner,
	}

	w := worker.New(cli, TaskQueue, worker.Options{})

	if err := registerEverything(ctx, w, a, cli, interval); err != nil {
		return nil, fmt.Errorf("error registering workflows and activities: %T, %v", err, err)
	}

	return w, nil
}

func registerEverything(ctx context.Context, w worker.Worker, a activities, cli client.Client, interval time.Duration) error {
	// Workflows
	wfs := workflows{}
	w.RegisterWorkflow(wfs.SendDigests)

	// Activities
	w.RegisterActivity(&a)

	// Schedules:
	// Send the digests
	spec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
	}
	handle := cli.ScheduleClient().GetHandle(ctx, scheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		handle, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID:      scheduleID,
			Spec:    spec,
			Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
			Action: &client.ScheduleWorkflowAction{
				ID:        scheduleID,
				Workflow:  wfs.SendDigests,
				TaskQueue: TaskQueue,
			},
		})
		if err != nil {
			return err
		}
	}

	// Picks up a changed interval on an existing schedule.
	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			sched := input.Description.Schedule
			sched.Spec = &spec
			return &client.ScheduleUpdate{
				Schedule: &sched,
			}, nil
		},
	})
	if err != nil {
		return fmt.Errorf("error updating schedule %s: %w", scheduleID, err)
	}

	return nil
}
