package database

import (
	"time"
)

type StoryState string

const (
	StoryDraft     StoryState = "draft"
	StoryPublished StoryState = "published"
	StoryHidden    StoryState = "hidden"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type SocialStatus string

const (
	SocialDisabled    SocialStatus = "disabled"
	SocialPending     SocialStatus = "pending"
	SocialPosted      SocialStatus = "posted"
	SocialFailed      SocialStatus = "failed"
	SocialAuthError   SocialStatus = "auth_error"
	SocialRateLimited SocialStatus = "rate_limited"
)

type RunStatus string

const (
	RunInProgress     RunStatus = "in_progress"
	RunSuccess        RunStatus = "success"
	RunPartialFailure RunStatus = "partial_failure"
	RunFailure        RunStatus = "failure"
)

// MaxSocialAttempts is the attempt ceiling after which a story is never
// crossposted automatically again.
const MaxSocialAttempts = 5

// FeedItem is a normalized entry ready for the deduplicating upsert.
type FeedItem struct {
	ItemKey        string // sha256 of the normalized URL
	SourceURL      string
	NormalizedURL  string
	Title          string
	Snippet        string
	TitleHash      string
	PublishedAt    *time.Time
	DateConfidence string // high, low
}

type Item struct {
	ID             string
	ItemKey        string
	SourceID       string
	SourceURL      string
	NormalizedURL  string
	Title          string
	Snippet        string
	TitleHash      string
	PublishedAt    *time.Time
	DateConfidence string
	IngestedAt     time.Time
}

type Story struct {
	ID             string
	StartAt        time.Time
	LastUpdateAt   time.Time
	State          StoryState
	EditorialHold  bool
	Category       string
	RiskLevel      RiskLevel
	Title          string
	Summary        string
	SummaryHash    string
	SummaryVersion int
}

// StoryCandidate is a recent story paired with the title of its founding item.
type StoryCandidate struct {
	StoryID       string
	LastUpdateAt  time.Time
	FoundingTitle string
}

// SummaryItem is one contributing item handed to summary generation.
type SummaryItem struct {
	ItemID      string
	SourceID    string
	Title       string
	PublishedAt *time.Time
}

type Publication struct {
	StoryID         string
	WebStatus       string
	WebPublishedAt  *time.Time
	SocialStatus    SocialStatus
	SocialPostID    string
	SocialAttempts  int
	SocialErrorLast string
	SocialPostedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SocialCandidate is a published story eligible for crossposting.
type SocialCandidate struct {
	StoryID string
	Title   string
	Summary string
}

type RunCounters struct {
	SourcesOK       int `json:"sources_ok"`
	SourcesFailed   int `json:"sources_failed"`
	ItemsFound      int `json:"items_found"`
	ItemsNew        int `json:"items_new"`
	StoriesNew      int `json:"stories_new"`
	StoriesUpdated  int `json:"stories_updated"`
	PublishedWeb    int `json:"published_web"`
	PublishedSocial int `json:"published_social"`
	ErrorsTotal     int `json:"errors_total"`
}

// Status derives the terminal run status from source outcomes.
func (c RunCounters) Status() RunStatus {
	switch {
	case c.SourcesFailed == 0:
		return RunSuccess
	case c.SourcesOK > 0:
		return RunPartialFailure
	default:
		return RunFailure
	}
}

type Run struct {
	ID         string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at"`
	Status     RunStatus   `json:"status"`
	Counters   RunCounters `json:"counters"`
	DurationMs int64       `json:"duration_ms"`
}

type ErrorEvent struct {
	RunID    string
	Phase    string
	SourceID string
	StoryID  string
	Code     string
	Message  string
}

type FailingSource struct {
	SourceID   string `json:"source_id"`
	ErrorCount int    `json:"error_count"`
}
