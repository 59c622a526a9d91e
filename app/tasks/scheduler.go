package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var _ SchedulerInterface = (*Scheduler)(nil)

// Scheduler executes runs serially in its own goroutine: one at start, one
// per interval and one per manual trigger. Overlap across processes is
// prevented by the run lease, not here.
type Scheduler struct {
	runner   RunnerInterface
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	trigger  chan TriggerReason
}

func NewScheduler(runner RunnerInterface, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:   runner,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		trigger:  make(chan TriggerReason, 1),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.execute(TriggerStartup)

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.execute(TriggerInterval)
			case reason := <-s.trigger:
				s.execute(reason)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Trigger requests an immediate run. Requests made while one is already
// pending are coalesced; the return value reports whether this one queued.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- TriggerManual:
		return true
	default:
		return false
	}
}

func (s *Scheduler) execute(reason TriggerReason) {
	if s.ctx.Err() != nil {
		return
	}

	task := NewRunTask(reason)
	task.Start()

	result, err := s.runner.RunOnce(s.ctx)
	if err != nil {
		slog.Error("Run failed", "trigger", string(task.Reason), "run_id", result.RunID, "duration", task.GetDuration(), "error", err)
		return
	}
	if result.Skipped {
		slog.Debug("Run skipped", "trigger", string(task.Reason), "run_id", result.RunID)
		return
	}

	slog.Info("Task completed", "type", "run", "trigger", string(task.Reason), "run_id", result.RunID,
		"status", result.Status, "duration", task.GetDuration())
}
