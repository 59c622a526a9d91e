package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/newshub/app/cluster"
	"github.com/lysyi3m/newshub/app/crosspost"
	"github.com/lysyi3m/newshub/app/database"
	"github.com/lysyi3m/newshub/app/feed"
	"github.com/lysyi3m/newshub/app/summary"
)

type staticSources []*feed.Config

func (s staticSources) GetRunnableConfigs() []*feed.Config { return s }

// stubFetcher serves canned entries per URL; a URL without entries fails.
type stubFetcher struct {
	entries map[string][]feed.Entry
	calls   int32
	panics  bool
}

func (f *stubFetcher) Fetch(ctx context.Context, url string, maxItems int) ([]feed.Entry, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.panics {
		panic("fetcher exploded")
	}
	entries, ok := f.entries[url]
	if !ok {
		return nil, errors.New("HTTP 500")
	}
	if len(entries) > maxItems {
		entries = entries[:maxItems]
	}
	return entries, nil
}

type recordingPoster struct {
	posted []string
}

func (p *recordingPoster) Post(ctx context.Context, message, link string) (string, error) {
	p.posted = append(p.posted, link)
	return "post-" + link, nil
}

func entry(rawURL, title string) feed.Entry {
	normalized := feed.NormalizeURL(rawURL)
	return feed.Entry{
		SourceURL:      rawURL,
		NormalizedURL:  normalized,
		ItemKey:        feed.HashHex(normalized),
		Title:          title,
		TitleHash:      feed.HashHex(title),
		DateConfidence: "low",
	}
}

type harness struct {
	db      *database.DB
	fetcher *stubFetcher
	poster  *recordingPoster
	runs    *database.RunRepository
	lease   *database.LeaseRepository
	runner  *Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "newshub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = database.RunMigrations(db)
	require.NoError(t, err)

	sources := staticSources{
		{ID: "broken", Name: "Broken", Type: feed.SourceRSS, URL: "https://broken.example/rss", Enabled: true},
		{ID: "ynet", Name: "ynet", Type: feed.SourceRSS, URL: "https://ynet.example/rss", Enabled: true},
	}
	fetcher := &stubFetcher{entries: map[string][]feed.Entry{
		"https://ynet.example/rss": {
			entry("https://ynet.example/a?utm_source=rss", "פיצוץ בנמל חיפה הבוקר"),
			entry("https://ynet.example/b", "פיצוץ בנמל חיפה: נפגעים"),
			entry("https://ynet.example/c", "הכנסת אישרה את התקציב"),
		},
	}}
	poster := &recordingPoster{}

	stories := database.NewStoryRepository(db)
	errs := database.NewErrorRepository(db)
	runs := database.NewRunRepository(db)
	lease := database.NewLeaseRepository(db)
	names := func(id string) string { return map[string]string{"ynet": "ynet"}[id] }

	runner := NewRunner(Deps{
		Sources:     sources,
		Fetcher:     fetcher,
		Items:       database.NewItemRepository(db),
		Clusterer:   cluster.NewEngine(stories),
		Summarizer:  summary.NewPipeline(stories, errs, summary.NewChain(summary.NewRuleBasedProvider(names)), 400, 700),
		Crossposter: crosspost.NewPolicy(database.NewPublicationRepository(db), errs, poster, "https://site"),
		Runs:        runs,
		Lease:       lease,
		Errors:      errs,
	}, Options{Budget: 25 * time.Second, LockTTL: 5 * time.Minute, MaxItemsPerRun: 25})

	return &harness{db: db, fetcher: fetcher, poster: poster, runs: runs, lease: lease, runner: runner}
}

func TestRunOnceEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.runner.RunOnce(ctx)
	require.NoError(t, err)
	require.False(t, result.Skipped)

	assert.Equal(t, database.RunCounters{
		SourcesOK:       1,
		SourcesFailed:   1,
		ItemsFound:      3,
		ItemsNew:        3,
		StoriesNew:      2,
		StoriesUpdated:  1,
		PublishedWeb:    2,
		PublishedSocial: 2,
		ErrorsTotal:     1,
	}, result.Counters)
	assert.Equal(t, database.RunPartialFailure, result.Status)
	assert.Len(t, h.poster.posted, 2)

	last, err := h.runs.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, result.RunID, last.ID)
	assert.Equal(t, database.RunPartialFailure, last.Status)
	assert.NotNil(t, last.FinishedAt)
	assert.Equal(t, result.Counters, last.Counters)

	failing, err := database.NewErrorRepository(h.db).TopFailingSources(ctx, time.Now().Add(-time.Hour), 5)
	require.NoError(t, err)
	assert.Equal(t, []database.FailingSource{{SourceID: "broken", ErrorCount: 1}}, failing)

	acquired, err := h.lease.Acquire(ctx, "next-run", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "lease must be released after the run")
	require.NoError(t, h.lease.Release(ctx, "next-run"))
}

func TestRunOnceIsIdempotentAcrossRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.runner.RunOnce(ctx)
	require.NoError(t, err)

	second, err := h.runner.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, second.Counters.ItemsFound)
	assert.Zero(t, second.Counters.ItemsNew)
	assert.Zero(t, second.Counters.StoriesNew)
	assert.Zero(t, second.Counters.PublishedWeb)
	assert.Zero(t, second.Counters.PublishedSocial)
	assert.Len(t, h.poster.posted, 2, "published stories must never be posted twice")
}

func TestRunOnceSkipsWhenLeaseHeld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acquired, err := h.lease.Acquire(ctx, "other-run", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	result, err := h.runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, atomic.LoadInt32(&h.fetcher.calls))

	last, err := h.runs.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "a skipped run writes no run record")
}

func TestRunOnceCleansUpAfterPanic(t *testing.T) {
	h := newHarness(t)
	h.fetcher.panics = true
	ctx := context.Background()

	result, err := h.runner.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher exploded")
	assert.Equal(t, 1, result.Counters.ErrorsTotal)

	last, err := h.runs.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.NotEqual(t, database.RunInProgress, last.Status)

	acquired, err := h.lease.Acquire(ctx, "next-run", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "lease must be released after a panic")
}

func TestRunOnceStopsWhenBudgetExhausted(t *testing.T) {
	h := newHarness(t)
	h.runner.opts.Budget = time.Second
	ctx := context.Background()

	result, err := h.runner.RunOnce(ctx)
	require.NoError(t, err)

	assert.Zero(t, atomic.LoadInt32(&h.fetcher.calls))
	assert.Equal(t, database.RunCounters{}, result.Counters)
	assert.Equal(t, database.RunSuccess, result.Status)
}

func TestNewClusterItemsKeepsFeedOrder(t *testing.T) {
	entries := []feed.Entry{
		{ItemKey: "k1", Title: "one"},
		{ItemKey: "k2", Title: "two"},
		{ItemKey: "k3", Title: "three"},
		{ItemKey: "k2", Title: "two again"},
	}

	items := newClusterItems(entries, []string{"k3", "k2"})
	require.Len(t, items, 2)
	assert.Equal(t, "k2", items[0].ID)
	assert.Equal(t, "two", items[0].Title)
	assert.Equal(t, "k3", items[1].ID)
}

func newIngestOnlyRunner(t *testing.T, sources staticSources, fetcher *stubFetcher) (*Runner, *database.DB) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "newshub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = database.RunMigrations(db)
	require.NoError(t, err)

	errs := database.NewErrorRepository(db)
	runner := NewRunner(Deps{
		Sources:   sources,
		Fetcher:   fetcher,
		Items:     database.NewItemRepository(db),
		Clusterer: cluster.NewEngine(database.NewStoryRepository(db)),
		Runs:      database.NewRunRepository(db),
		Lease:     database.NewLeaseRepository(db),
		Errors:    errs,
	}, Options{Budget: 25 * time.Second, LockTTL: 5 * time.Minute, MaxItemsPerRun: 25})
	return runner, db
}

func TestRunOnceClustersAcrossSources(t *testing.T) {
	sources := staticSources{
		{ID: "ynet", Name: "ynet", Type: feed.SourceRSS, URL: "https://ynet.example/rss", Enabled: true},
		{ID: "mako", Name: "mako", Type: feed.SourceRSS, URL: "https://mako.example/rss", Enabled: true},
	}

	t.Run("enriched story", func(t *testing.T) {
		fetcher := &stubFetcher{entries: map[string][]feed.Entry{
			"https://ynet.example/rss": {
				entry("https://ynet.example/1", "aa bb cc dd"),
				entry("https://ynet.example/2", "cc dd ee ff"),
			},
			"https://mako.example/rss": {
				entry("https://mako.example/1", "ee ff gg"),
			},
		}}
		runner, _ := newIngestOnlyRunner(t, sources, fetcher)

		result, err := runner.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, result.Counters.SourcesOK)
		assert.Equal(t, 1, result.Counters.StoriesNew)
		assert.Equal(t, 2, result.Counters.StoriesUpdated)
	})

	t.Run("story outside the candidate window", func(t *testing.T) {
		old := time.Now().Add(-72 * time.Hour).UTC()
		first := entry("https://ynet.example/old", "פיצוץ בנמל חיפה הבוקר")
		first.PublishedAt = &old
		first.DateConfidence = "high"

		fetcher := &stubFetcher{entries: map[string][]feed.Entry{
			"https://ynet.example/rss": {first},
			"https://mako.example/rss": {entry("https://mako.example/same", "פיצוץ בנמל חיפה הבוקר")},
		}}
		runner, db := newIngestOnlyRunner(t, sources, fetcher)

		result, err := runner.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Counters.StoriesNew)
		assert.Equal(t, 1, result.Counters.StoriesUpdated)

		counts, err := database.NewStoryRepository(db).CountByState(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, counts[database.StoryDraft])
	})
}
