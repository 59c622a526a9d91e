package crosspost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/newshub/app/database"
)

const MaxPostsPerRun = 5

type Store interface {
	EligibleForSocial(ctx context.Context, limit int) ([]database.SocialCandidate, error)
	GetPublication(ctx context.Context, storyID string) (*database.Publication, error)
	MarkSocialPosted(ctx context.Context, storyID, postID string) (bool, error)
	MarkSocialFailed(ctx context.Context, storyID string, status database.SocialStatus, errorMsg string) (bool, error)
}

type ErrorRecorder interface {
	RecordError(ctx context.Context, event database.ErrorEvent) error
}

type Counters struct {
	Posted  int
	Failed  int
	Skipped int
	Halted  bool
}

type Policy struct {
	store       Store
	errors      ErrorRecorder
	poster      Poster
	siteBaseURL string
}

func NewPolicy(store Store, errs ErrorRecorder, poster Poster, siteBaseURL string) *Policy {
	return &Policy{store: store, errors: errs, poster: poster, siteBaseURL: siteBaseURL}
}

// Classify maps a posting failure to the social status it leaves behind.
func Classify(err error) database.SocialStatus {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return database.SocialFailed
	}

	switch {
	case apiErr.Code == 190 || apiErr.Code == 102 || apiErr.HTTPStatus == 401:
		return database.SocialAuthError
	case apiErr.Code == 4 || apiErr.Code == 32 || apiErr.HTTPStatus == 429:
		return database.SocialRateLimited
	default:
		return database.SocialFailed
	}
}

// Run posts eligible stories in order. An auth error ends the pass; other
// failures are recorded and the pass moves on.
func (p *Policy) Run(ctx context.Context, runID string, hasTime func() bool) (Counters, error) {
	var counters Counters

	candidates, err := p.store.EligibleForSocial(ctx, MaxPostsPerRun)
	if err != nil {
		return counters, fmt.Errorf("failed to select stories for crosspost: %w", err)
	}

	for _, c := range candidates {
		if hasTime != nil && !hasTime() {
			slog.Info("Crosspost stopped by run budget", "story_id", c.StoryID)
			break
		}

		pub, err := p.store.GetPublication(ctx, c.StoryID)
		if err != nil {
			return counters, fmt.Errorf("failed to read publication %s: %w", c.StoryID, err)
		}
		if pub == nil || pub.SocialPostID != "" {
			counters.Skipped++
			continue
		}

		link := StoryURL(p.siteBaseURL, c.StoryID)
		postID, err := p.poster.Post(ctx, BuildMessage(c.Title, c.Summary, link), link)
		if err == nil {
			if _, err := p.store.MarkSocialPosted(ctx, c.StoryID, postID); err != nil {
				return counters, fmt.Errorf("failed to mark story %s posted: %w", c.StoryID, err)
			}
			counters.Posted++
			slog.Info("Story crossposted", "story_id", c.StoryID, "post_id", postID)
			continue
		}

		counters.Failed++
		status := Classify(err)
		if _, markErr := p.store.MarkSocialFailed(ctx, c.StoryID, status, err.Error()); markErr != nil {
			slog.Error("Failed to record crosspost failure", "story_id", c.StoryID, "error", markErr)
		}
		p.recordFailure(ctx, runID, c.StoryID, status, err)

		if status == database.SocialAuthError {
			counters.Halted = true
			slog.Warn("Crosspost halted on auth error", "story_id", c.StoryID)
			break
		}
	}

	return counters, nil
}

func (p *Policy) recordFailure(ctx context.Context, runID, storyID string, status database.SocialStatus, err error) {
	slog.Warn("Crosspost failed", "story_id", storyID, "status", status, "error", err)

	event := database.ErrorEvent{RunID: runID, Phase: "crosspost", StoryID: storyID, Code: string(status), Message: err.Error()}
	if recErr := p.errors.RecordError(ctx, event); recErr != nil {
		slog.Error("Failed to record error event", "story_id", storyID, "error", recErr)
	}
}
