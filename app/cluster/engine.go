// Package cluster groups newly ingested headlines into stories by token set
// similarity.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/newshub/app/database"
)

const (
	// Window is how far back stories are considered for attachment.
	Window = 24 * time.Hour
	// Threshold must be strictly exceeded for an item to attach.
	Threshold = 0.25
	// MaxCandidates caps the stories loaded per run.
	MaxCandidates = 100
)

// Store is the persistence the engine needs.
type Store interface {
	RecentCandidates(ctx context.Context, since time.Time, limit int) ([]database.StoryCandidate, error)
	StoryForItem(ctx context.Context, itemID string) (string, bool, error)
	CreateStory(ctx context.Context, storyID string, startAt time.Time) error
	AttachItem(ctx context.Context, storyID, itemID string, addedAt time.Time) (bool, error)
	TouchStory(ctx context.Context, storyID string, at time.Time) error
}

// Item is one newly inserted headline.
type Item struct {
	ID          string
	Title       string
	PublishedAt *time.Time
}

type Result struct {
	StoriesNew     int
	StoriesUpdated int
}

// candidates is the run-local mapping from story id to token set. Iteration
// follows insertion order so ties resolve to the first-seen story.
type candidates struct {
	order  []string
	tokens map[string]TokenSet
}

func newCandidates() *candidates {
	return &candidates{tokens: make(map[string]TokenSet)}
}

func (c *candidates) add(storyID string, tokens TokenSet) {
	if _, exists := c.tokens[storyID]; !exists {
		c.order = append(c.order, storyID)
	}
	c.tokens[storyID] = tokens
}

// best returns the candidate with the highest score strictly above
// threshold, or "" when none qualifies.
func (c *candidates) best(item TokenSet, threshold float64) (string, float64) {
	bestID := ""
	bestScore := threshold
	for _, id := range c.order {
		if score := Jaccard(item, c.tokens[id]); score > bestScore {
			bestID, bestScore = id, score
		}
	}
	return bestID, bestScore
}

type Engine struct {
	store Store
	NewID func() string
	Now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, NewID: uuid.NewString, Now: time.Now}
}

// Session holds the candidate map of one run. It is seeded from the store on
// first use and then only grows: every attach widens a story's token set and
// every new story joins the map, so later batches of the same run see both.
// A Session is not safe for concurrent use.
type Session struct {
	engine *Engine
	cands  *candidates
}

// NewSession starts a run-scoped clustering session.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e}
}

func (s *Session) seed(ctx context.Context) error {
	if s.cands != nil {
		return nil
	}

	now := s.engine.Now().UTC()
	recent, err := s.engine.store.RecentCandidates(ctx, now.Add(-Window), MaxCandidates)
	if err != nil {
		return fmt.Errorf("failed to load candidate stories: %w", err)
	}

	cands := newCandidates()
	for _, story := range recent {
		cands.add(story.StoryID, Tokenize(story.FoundingTitle))
	}
	s.cands = cands
	slog.Debug("Clustering session seeded", "candidates", len(recent))
	return nil
}

// Cluster assigns items of a single batch using a fresh session.
func (e *Engine) Cluster(ctx context.Context, items []Item) (Result, error) {
	return e.NewSession().Cluster(ctx, items)
}

// Cluster assigns items, in the given order, to an existing or new story.
// Items already linked to a story are left untouched, so re-running a batch
// creates no new stories and no duplicate links.
func (s *Session) Cluster(ctx context.Context, items []Item) (Result, error) {
	var result Result
	if len(items) == 0 {
		return result, nil
	}

	if err := s.seed(ctx); err != nil {
		return result, err
	}

	store := s.engine.store
	now := s.engine.Now().UTC()

	for _, item := range items {
		if _, linked, err := store.StoryForItem(ctx, item.ID); err != nil {
			return result, err
		} else if linked {
			continue
		}

		tokens := Tokenize(item.Title)

		if storyID, score := s.cands.best(tokens, Threshold); storyID != "" {
			attached, err := store.AttachItem(ctx, storyID, item.ID, now)
			if err != nil {
				return result, err
			}
			if !attached {
				continue
			}
			if err := store.TouchStory(ctx, storyID, now); err != nil {
				return result, err
			}
			s.cands.tokens[storyID].union(tokens)
			result.StoriesUpdated++
			slog.Debug("Item attached to story", "item_id", item.ID, "story_id", storyID, "score", score)
			continue
		}

		storyID := s.engine.NewID()
		startAt := now
		if item.PublishedAt != nil {
			startAt = *item.PublishedAt
		}
		if err := store.CreateStory(ctx, storyID, startAt); err != nil {
			return result, err
		}
		if _, err := store.AttachItem(ctx, storyID, item.ID, now); err != nil {
			return result, err
		}
		s.cands.add(storyID, tokens.clone())
		result.StoriesNew++
		slog.Debug("Story created", "item_id", item.ID, "story_id", storyID)
	}

	return result, nil
}
