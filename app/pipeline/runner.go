// Package pipeline drives one bounded run: ingest every source, cluster the
// new items, summarize draft stories and crosspost published ones.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/newshub/app/budget"
	"github.com/lysyi3m/newshub/app/cluster"
	"github.com/lysyi3m/newshub/app/crosspost"
	"github.com/lysyi3m/newshub/app/database"
	"github.com/lysyi3m/newshub/app/feed"
	"github.com/lysyi3m/newshub/app/summary"
)

// Reserves are the minimum remaining budget required to start a unit of
// work of each phase.
const (
	SourceReserve    = 3 * time.Second
	SummaryReserve   = 5 * time.Second
	StoryReserve     = 4 * time.Second
	CrosspostReserve = 2 * time.Second

	cleanupTimeout = 5 * time.Second
)

type SourceRegistry interface {
	GetRunnableConfigs() []*feed.Config
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, maxItems int) ([]feed.Entry, error)
}

// Clusterer opens the clustering session shared by every source of a run.
type Clusterer interface {
	NewSession() *cluster.Session
}

type Summarizer interface {
	Run(ctx context.Context, runID string, hasTime func() bool) (summary.Counters, error)
}

type Crossposter interface {
	Run(ctx context.Context, runID string, hasTime func() bool) (crosspost.Counters, error)
}

// Deps are the collaborators of a run. Summarizer and Crossposter are
// optional; a nil one skips its phase.
type Deps struct {
	Sources     SourceRegistry
	Fetcher     Fetcher
	Items       database.ItemStore
	Clusterer   Clusterer
	Summarizer  Summarizer
	Crossposter Crossposter
	Runs        database.RunStore
	Lease       database.LeaseStore
	Errors      database.ErrorStore
}

type Options struct {
	Budget         time.Duration
	LockTTL        time.Duration
	MaxItemsPerRun int
}

// Result describes a finished run. Skipped is set when another owner held
// the lease and nothing was done.
type Result struct {
	RunID    string
	Skipped  bool
	Status   database.RunStatus
	Counters database.RunCounters
}

type Runner struct {
	deps  Deps
	opts  Options
	now   func() time.Time
	newID func() string
}

func NewRunner(deps Deps, opts Options) *Runner {
	return &Runner{deps: deps, opts: opts, now: time.Now, newID: uuid.NewString}
}

// RunOnce executes a single run. Run finalization and lease release happen
// exactly once on every path after the lease is acquired, panics included.
func (r *Runner) RunOnce(ctx context.Context) (result Result, err error) {
	runID := r.newID()
	result.RunID = runID

	acquired, err := r.deps.Lease.Acquire(ctx, runID, r.opts.LockTTL)
	if err != nil {
		return result, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if !acquired {
		slog.Info("Run skipped, lease held by another owner", "run_id", runID)
		result.Skipped = true
		return result, nil
	}

	start := r.now().UTC()
	gov := budget.New(r.opts.Budget, start).WithClock(r.now)
	var counters database.RunCounters

	defer func() {
		if p := recover(); p != nil {
			counters.ErrorsTotal++
			err = fmt.Errorf("run panicked: %v", p)
			slog.Error("Run panicked", "run_id", runID, "panic", p)
		}
		r.finish(ctx, runID, start, counters)
		result.Counters = counters
		result.Status = counters.Status()
	}()

	if err := r.deps.Runs.StartRun(ctx, runID, start); err != nil {
		return result, fmt.Errorf("failed to start run: %w", err)
	}
	slog.Info("Run started", "run_id", runID, "budget", r.opts.Budget)

	runCtx, cancel := gov.Context(ctx)
	defer cancel()

	r.ingest(runCtx, runID, gov, &counters)
	r.summarize(runCtx, runID, gov, &counters)
	r.crosspost(runCtx, runID, gov, &counters)

	return result, nil
}

func (r *Runner) ingest(ctx context.Context, runID string, gov *budget.Governor, counters *database.RunCounters) {
	sources := r.deps.Sources.GetRunnableConfigs()
	session := r.deps.Clusterer.NewSession()
	for i, src := range sources {
		if !gov.HasTime(SourceReserve) {
			slog.Info("Ingest stopped by run budget", "run_id", runID, "remaining_sources", len(sources)-i)
			return
		}

		if err := r.ingestSource(ctx, src, session, counters); err != nil {
			counters.SourcesFailed++
			counters.ErrorsTotal++
			slog.Warn("Source failed", "source", src.ID, "error", err)
			r.recordError(ctx, database.ErrorEvent{RunID: runID, Phase: "ingest", SourceID: src.ID, Code: "ingest_failed", Message: err.Error()})
			continue
		}
		counters.SourcesOK++
	}
}

func (r *Runner) ingestSource(ctx context.Context, src *feed.Config, session *cluster.Session, counters *database.RunCounters) error {
	entries, err := r.deps.Fetcher.Fetch(ctx, src.URL, src.MaxItems(r.opts.MaxItemsPerRun))
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	found, newKeys, err := r.deps.Items.UpsertItems(ctx, src.ID, toFeedItems(entries))
	if err != nil {
		return fmt.Errorf("failed to store items: %w", err)
	}
	counters.ItemsFound += found
	counters.ItemsNew += len(newKeys)

	if len(newKeys) == 0 {
		slog.Debug("No new items", "source", src.ID, "found", found)
		return nil
	}

	res, err := session.Cluster(ctx, newClusterItems(entries, newKeys))
	if err != nil {
		return fmt.Errorf("failed to cluster items: %w", err)
	}
	counters.StoriesNew += res.StoriesNew
	counters.StoriesUpdated += res.StoriesUpdated

	slog.Info("Source ingested", "source", src.ID, "found", found, "new", len(newKeys),
		"stories_new", res.StoriesNew, "stories_updated", res.StoriesUpdated)
	return nil
}

func (r *Runner) summarize(ctx context.Context, runID string, gov *budget.Governor, counters *database.RunCounters) {
	if r.deps.Summarizer == nil {
		return
	}
	if !gov.HasTime(SummaryReserve) {
		slog.Info("Summary phase skipped by run budget", "run_id", runID)
		return
	}

	sc, err := r.deps.Summarizer.Run(ctx, runID, func() bool { return gov.HasTime(StoryReserve) })
	counters.PublishedWeb += sc.Published
	counters.ErrorsTotal += sc.Failed
	if err != nil {
		counters.ErrorsTotal++
		r.recordError(ctx, database.ErrorEvent{RunID: runID, Phase: "summary", Code: "summary_failed", Message: err.Error()})
	}
}

func (r *Runner) crosspost(ctx context.Context, runID string, gov *budget.Governor, counters *database.RunCounters) {
	if r.deps.Crossposter == nil {
		return
	}
	if !gov.HasTime(CrosspostReserve) {
		slog.Info("Crosspost phase skipped by run budget", "run_id", runID)
		return
	}

	cc, err := r.deps.Crossposter.Run(ctx, runID, func() bool { return gov.HasTime(CrosspostReserve) })
	counters.PublishedSocial += cc.Posted
	counters.ErrorsTotal += cc.Failed
	if err != nil {
		counters.ErrorsTotal++
		r.recordError(ctx, database.ErrorEvent{RunID: runID, Phase: "crosspost", Code: "crosspost_failed", Message: err.Error()})
	}
}

// finish finalizes the run row and releases the lease on a context that
// outlives the run budget.
func (r *Runner) finish(ctx context.Context, runID string, start time.Time, counters database.RunCounters) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	finishedAt := r.now().UTC()
	duration := finishedAt.Sub(start)

	if err := r.deps.Runs.FinishRun(cleanupCtx, runID, finishedAt, duration, counters); err != nil {
		slog.Error("Failed to finalize run", "run_id", runID, "error", err)
	}
	if err := r.deps.Lease.Release(cleanupCtx, runID); err != nil {
		slog.Error("Failed to release run lease", "run_id", runID, "error", err)
	}

	slog.Info("Run finished", "run_id", runID, "status", counters.Status(), "duration", duration,
		"sources_ok", counters.SourcesOK, "sources_failed", counters.SourcesFailed,
		"items_new", counters.ItemsNew, "published_web", counters.PublishedWeb,
		"published_social", counters.PublishedSocial, "errors", counters.ErrorsTotal)
}

// recordError persists an error event even when the run budget has expired.
func (r *Runner) recordError(ctx context.Context, event database.ErrorEvent) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := r.deps.Errors.RecordError(recCtx, event); err != nil {
		slog.Error("Failed to record error event", "run_id", event.RunID, "phase", event.Phase, "error", err)
	}
}

func toFeedItems(entries []feed.Entry) []database.FeedItem {
	items := make([]database.FeedItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, database.FeedItem{
			ItemKey:        e.ItemKey,
			SourceURL:      e.SourceURL,
			NormalizedURL:  e.NormalizedURL,
			Title:          e.Title,
			Snippet:        e.Snippet,
			TitleHash:      e.TitleHash,
			PublishedAt:    e.PublishedAt,
			DateConfidence: e.DateConfidence,
		})
	}
	return items
}

// newClusterItems keeps the entries whose keys were just inserted, in feed
// order.
func newClusterItems(entries []feed.Entry, newKeys []string) []cluster.Item {
	fresh := make(map[string]bool, len(newKeys))
	for _, k := range newKeys {
		fresh[k] = true
	}

	items := make([]cluster.Item, 0, len(newKeys))
	for _, e := range entries {
		if !fresh[e.ItemKey] {
			continue
		}
		delete(fresh, e.ItemKey)
		items = append(items, cluster.Item{ID: e.ItemKey, Title: e.Title, PublishedAt: e.PublishedAt})
	}
	return items
}
