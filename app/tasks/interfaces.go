package tasks

import (
	"context"

	"github.com/lysyi3m/newshub/app/pipeline"
)

// SchedulerInterface is what the application and the ops API use to drive
// runs.
//
//	scheduler := NewScheduler(runner, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.Trigger()
type SchedulerInterface interface {
	Start()
	Stop()
	Trigger() bool
}

type RunnerInterface interface {
	RunOnce(ctx context.Context) (pipeline.Result, error)
}
