package summary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lysyi3m/newshub/app/database"
)

const (
	MaxSummariesPerRun = 5
	MaxItemsPerStory   = 10
)

// Store is the persistence the pipeline needs.
type Store interface {
	StoriesNeedingSummary(ctx context.Context, limit int) ([]database.Story, error)
	ItemsForSummary(ctx context.Context, storyID string, limit int) ([]database.SummaryItem, error)
	SaveSummary(ctx context.Context, storyID, title, fullText, summaryHash string) (bool, error)
}

// ErrorRecorder persists isolated failures.
type ErrorRecorder interface {
	RecordError(ctx context.Context, event database.ErrorEvent) error
}

// Generator is satisfied by *Chain.
type Generator interface {
	Generate(ctx context.Context, items []database.SummaryItem, risk database.RiskLevel) (ChainResult, error)
}

type Counters struct {
	Attempted int
	Published int
	Skipped   int
	Failed    int
}

type Pipeline struct {
	store     Store
	errors    ErrorRecorder
	generator Generator
	minLen    int
	maxLen    int
}

func NewPipeline(store Store, errs ErrorRecorder, generator Generator, minLen, maxLen int) *Pipeline {
	return &Pipeline{store: store, errors: errs, generator: generator, minLen: minLen, maxLen: maxLen}
}

// Fingerprint identifies the exact input of a summary: the sorted item ids
// and the risk level.
func Fingerprint(items []database.SummaryItem, risk database.RiskLevel) string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",") + ":" + string(risk)))
	return hex.EncodeToString(sum[:])
}

// Run summarizes draft stories. hasTime is consulted before each story; a
// failure on one story is recorded and does not stop the others.
func (p *Pipeline) Run(ctx context.Context, runID string, hasTime func() bool) (Counters, error) {
	var counters Counters

	stories, err := p.store.StoriesNeedingSummary(ctx, MaxSummariesPerRun)
	if err != nil {
		return counters, fmt.Errorf("failed to select stories for summary: %w", err)
	}

	for _, story := range stories {
		if hasTime != nil && !hasTime() {
			slog.Info("Summary phase stopped by run budget", "remaining_stories", len(stories)-counters.Attempted)
			break
		}

		counters.Attempted++
		published, err := p.summarize(ctx, story)
		switch {
		case err != nil:
			counters.Failed++
			p.recordFailure(ctx, runID, story.ID, err)
		case published:
			counters.Published++
		default:
			counters.Skipped++
		}
	}

	return counters, nil
}

// summarize reports whether the story was published; false with a nil
// error means it was skipped.
func (p *Pipeline) summarize(ctx context.Context, story database.Story) (bool, error) {
	items, err := p.store.ItemsForSummary(ctx, story.ID, MaxItemsPerStory)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}

	fingerprint := Fingerprint(items, story.RiskLevel)
	if fingerprint == story.SummaryHash {
		slog.Debug("Summary unchanged, skipping", "story_id", story.ID)
		return false, nil
	}

	result, err := p.generator.Generate(ctx, items, story.RiskLevel)
	if err != nil {
		return false, err
	}

	sections, err := ParseSections(ApplyGlossary(result.Text))
	if err != nil {
		return false, err
	}

	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	if err := RunGuards(sections, titles, story.RiskLevel, p.minLen, p.maxLen, result.LastResort); err != nil {
		return false, err
	}

	saved, err := p.store.SaveSummary(ctx, story.ID, sections.Title, sections.Full(), fingerprint)
	if err != nil {
		return false, err
	}
	if saved {
		slog.Info("Story published", "story_id", story.ID, "provider", result.Provider, "items", len(items))
	}
	return saved, nil
}

func (p *Pipeline) recordFailure(ctx context.Context, runID, storyID string, err error) {
	code := "summary_failed"
	var guardErr *GuardError
	switch {
	case errors.Is(err, ErrParse):
		code = ErrParse.Error()
	case errors.As(err, &guardErr):
		code = "guard_failed"
	}

	slog.Warn("Summary failed", "story_id", storyID, "code", code, "error", err)

	event := database.ErrorEvent{RunID: runID, Phase: "summary", StoryID: storyID, Code: code, Message: err.Error()}
	if recErr := p.errors.RecordError(ctx, event); recErr != nil {
		slog.Error("Failed to record error event", "story_id", storyID, "error", recErr)
	}
}
