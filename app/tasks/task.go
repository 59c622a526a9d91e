package tasks

import (
	"time"
)

type TriggerReason string

const (
	TriggerStartup  TriggerReason = "startup"
	TriggerInterval TriggerReason = "interval"
	TriggerManual   TriggerReason = "manual"
)

// RunTask is one scheduled invocation of the runner.
type RunTask struct {
	Reason    TriggerReason
	StartedAt *time.Time
}

func NewRunTask(reason TriggerReason) *RunTask {
	return &RunTask{Reason: reason}
}

func (t *RunTask) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *RunTask) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}
