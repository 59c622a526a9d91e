package database

import (
	"context"
	"time"
)

type ItemStore interface {
	UpsertItems(ctx context.Context, sourceID string, items []FeedItem) (found int, newKeys []string, err error)
	GetItemCount(ctx context.Context) (int, error)
}

type StoryStore interface {
	RecentCandidates(ctx context.Context, since time.Time, limit int) ([]StoryCandidate, error)
	StoryForItem(ctx context.Context, itemID string) (string, bool, error)
	CreateStory(ctx context.Context, storyID string, startAt time.Time) error
	AttachItem(ctx context.Context, storyID, itemID string, addedAt time.Time) (bool, error)
	TouchStory(ctx context.Context, storyID string, at time.Time) error

	StoriesNeedingSummary(ctx context.Context, limit int) ([]Story, error)
	ItemsForSummary(ctx context.Context, storyID string, limit int) ([]SummaryItem, error)
	SaveSummary(ctx context.Context, storyID, title, fullText, summaryHash string) (bool, error)

	GetStory(ctx context.Context, storyID string) (*Story, error)
	CountByState(ctx context.Context) (map[StoryState]int, error)
}

type PublicationStore interface {
	EligibleForSocial(ctx context.Context, limit int) ([]SocialCandidate, error)
	GetPublication(ctx context.Context, storyID string) (*Publication, error)
	MarkSocialPosted(ctx context.Context, storyID, postID string) (bool, error)
	MarkSocialFailed(ctx context.Context, storyID string, status SocialStatus, errorMsg string) (bool, error)
	CountBySocialStatus(ctx context.Context) (map[SocialStatus]int, error)
}

type RunStore interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, duration time.Duration, counters RunCounters) error
	LastRun(ctx context.Context) (*Run, error)
}

type ErrorStore interface {
	RecordError(ctx context.Context, event ErrorEvent) error
	TopFailingSources(ctx context.Context, since time.Time, limit int) ([]FailingSource, error)
}

type LeaseStore interface {
	Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, owner string) error
}

var (
	_ ItemStore        = (*ItemRepository)(nil)
	_ StoryStore       = (*StoryRepository)(nil)
	_ PublicationStore = (*PublicationRepository)(nil)
	_ RunStore         = (*RunRepository)(nil)
	_ ErrorStore       = (*ErrorRepository)(nil)
	_ LeaseStore       = (*LeaseRepository)(nil)
)
