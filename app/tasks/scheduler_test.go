package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/newshub/app/database"
	"github.com/lysyi3m/newshub/app/pipeline"
)

// blockingRunner reports every call on started and waits for release.
type blockingRunner struct {
	calls   int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 10), release: make(chan struct{}, 10)}
}

func (r *blockingRunner) RunOnce(ctx context.Context) (pipeline.Result, error) {
	atomic.AddInt32(&r.calls, 1)
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return pipeline.Result{RunID: "run", Status: database.RunSuccess}, r.err
}

func waitStarted(t *testing.T, r *blockingRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a run to start")
	}
}

func TestSchedulerRunsAtStartup(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(runner, time.Hour)
	s.Start()

	waitStarted(t, runner)
	runner.release <- struct{}{}
	s.Stop()

	if calls := atomic.LoadInt32(&runner.calls); calls != 1 {
		t.Errorf("Expected 1 run, got %d", calls)
	}
}

func TestSchedulerTriggerIsCoalesced(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(runner, time.Hour)
	s.Start()
	defer s.Stop()

	waitStarted(t, runner)

	if !s.Trigger() {
		t.Error("Expected first trigger to be queued")
	}
	if s.Trigger() {
		t.Error("Expected second trigger to be coalesced")
	}

	runner.release <- struct{}{}
	waitStarted(t, runner)
	runner.release <- struct{}{}

	if calls := atomic.LoadInt32(&runner.calls); calls != 2 {
		t.Errorf("Expected 2 runs, got %d", calls)
	}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("store unavailable")
	for i := 0; i < 3; i++ {
		runner.release <- struct{}{}
	}

	s := NewScheduler(runner, 20*time.Millisecond)
	s.Start()
	defer s.Stop()

	waitStarted(t, runner)
	waitStarted(t, runner)
}

func TestSchedulerStopCancelsRun(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(runner, time.Hour)
	s.Start()

	waitStarted(t, runner)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Stop to cancel the in-flight run")
	}
}
