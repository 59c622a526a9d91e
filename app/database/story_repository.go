package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// StoryRepository handles database operations for stories and their items
type StoryRepository struct {
	db  *DB
	now func() time.Time
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db, now: time.Now}
}

// foundingTitle selects the title of the earliest attached item of s.
const foundingTitle = `COALESCE((
	SELECT i.title FROM story_items si
	JOIN items i ON i.item_id = si.item_id
	WHERE si.story_id = s.story_id
	ORDER BY si.added_at ASC, si.rowid ASC
	LIMIT 1
), '')`

// RecentCandidates returns non-hidden stories updated since the given time,
// most recent first, each with its founding item's title.
func (r *StoryRepository) RecentCandidates(ctx context.Context, since time.Time, limit int) ([]StoryCandidate, error) {
	query, args, err := qb.
		Select("s.story_id", "s.last_update_at", foundingTitle).
		From("stories s").
		Where(sq.GtOrEq{"s.last_update_at": formatTime(since)}).
		Where(sq.NotEq{"s.state": string(StoryHidden)}).
		OrderBy("s.last_update_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build candidates query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent stories: %w", err)
	}
	defer rows.Close()

	var candidates []StoryCandidate
	for rows.Next() {
		var c StoryCandidate
		var lastUpdate string
		if err := rows.Scan(&c.StoryID, &lastUpdate, &c.FoundingTitle); err != nil {
			return nil, fmt.Errorf("failed to scan story candidate: %w", err)
		}
		if c.LastUpdateAt, err = parseTime(lastUpdate); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story candidates: %w", err)
	}

	return candidates, nil
}

// StoryForItem returns the story an item is attached to, if any
func (r *StoryRepository) StoryForItem(ctx context.Context, itemID string) (string, bool, error) {
	var storyID string
	err := r.db.QueryRowContext(ctx,
		"SELECT story_id FROM story_items WHERE item_id = ?", itemID).Scan(&storyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up story for item: %w", err)
	}
	return storyID, true, nil
}

// CreateStory inserts a new draft story. An existing story with the same id
// is left unchanged.
func (r *StoryRepository) CreateStory(ctx context.Context, storyID string, startAt time.Time) error {
	start := formatTime(startAt)
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO stories (story_id, start_at, last_update_at, state, category, risk_level, created_at)
		VALUES (?, ?, ?, 'draft', 'other', 'low', ?)
	`, storyID, start, start, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// AttachItem links an item to a story. It reports false when the item was
// already linked (to this or any other story).
func (r *StoryRepository) AttachItem(ctx context.Context, storyID, itemID string, addedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO story_items (story_id, item_id, added_at, rank)
		VALUES (?, ?, ?, (SELECT COUNT(*) FROM story_items WHERE story_id = ?))
	`, storyID, itemID, formatTime(addedAt), storyID)
	if err != nil {
		return false, fmt.Errorf("failed to attach item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// TouchStory bumps last_update_at for a story that gained an item
func (r *StoryRepository) TouchStory(ctx context.Context, storyID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE stories SET last_update_at = ? WHERE story_id = ?", formatTime(at), storyID)
	if err != nil {
		return fmt.Errorf("failed to update story timestamp: %w", err)
	}
	return nil
}

var storyColumns = []string{
	"story_id", "start_at", "last_update_at", "state", "editorial_hold",
	"category", "risk_level", "COALESCE(title, '')", "COALESCE(summary, '')",
	"COALESCE(summary_hash, '')", "summary_version",
}

func scanStory(row interface{ Scan(...any) error }) (*Story, error) {
	var s Story
	var startAt, lastUpdate string
	err := row.Scan(&s.ID, &startAt, &lastUpdate, &s.State, &s.EditorialHold,
		&s.Category, &s.RiskLevel, &s.Title, &s.Summary, &s.SummaryHash, &s.SummaryVersion)
	if err != nil {
		return nil, err
	}
	if s.StartAt, err = parseTime(startAt); err != nil {
		return nil, err
	}
	if s.LastUpdateAt, err = parseTime(lastUpdate); err != nil {
		return nil, err
	}
	return &s, nil
}

// StoriesNeedingSummary returns draft stories not on editorial hold, most
// recently updated first.
func (r *StoryRepository) StoriesNeedingSummary(ctx context.Context, limit int) ([]Story, error) {
	query, args, err := qb.
		Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"state": string(StoryDraft), "editorial_hold": 0}).
		OrderBy("last_update_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build summary selection query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get stories needing summary: %w", err)
	}
	defer rows.Close()

	var stories []Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		stories = append(stories, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story rows: %w", err)
	}

	return stories, nil
}

// ItemsForSummary returns the items of a story, most recent first
func (r *StoryRepository) ItemsForSummary(ctx context.Context, storyID string, limit int) ([]SummaryItem, error) {
	query, args, err := qb.
		Select("i.item_id", "i.source_id", "i.title", "i.published_at").
		From("story_items si").
		Join("items i ON i.item_id = si.item_id").
		Where(sq.Eq{"si.story_id": storyID}).
		OrderBy("COALESCE(i.published_at, si.added_at) DESC", "i.item_id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build story items query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get story items: %w", err)
	}
	defer rows.Close()

	var items []SummaryItem
	for rows.Next() {
		var item SummaryItem
		var published sql.NullString
		if err := rows.Scan(&item.ItemID, &item.SourceID, &item.Title, &published); err != nil {
			return nil, fmt.Errorf("failed to scan story item: %w", err)
		}
		if item.PublishedAt, err = scanNullableTime(published); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story items: %w", err)
	}

	return items, nil
}

// SaveSummary stores a generated summary, moves the story from draft to
// published, and marks its publication as published on the web, all in one
// transaction. It reports false when the story was no longer a draft.
func (r *StoryRepository) SaveSummary(ctx context.Context, storyID, title, fullText, summaryHash string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin summary transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE stories
		SET title = ?, summary = ?, summary_hash = ?,
		    summary_version = summary_version + 1, state = 'published'
		WHERE story_id = ? AND state = 'draft'
	`, title, fullText, summaryHash, storyID)
	if err != nil {
		return false, fmt.Errorf("failed to update story summary: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	now := formatTime(r.now())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO publications (story_id, web_status, web_published_at, social_status, created_at, updated_at)
		VALUES (?, 'published', ?, 'disabled', ?, ?)
		ON CONFLICT (story_id) DO UPDATE SET
			web_status = 'published',
			web_published_at = excluded.web_published_at,
			updated_at = excluded.updated_at
	`, storyID, now, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to upsert publication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit summary: %w", err)
	}

	return true, nil
}

// GetStory returns a story by id, or nil when it does not exist
func (r *StoryRepository) GetStory(ctx context.Context, storyID string) (*Story, error) {
	query, args, err := qb.
		Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"story_id": storyID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build story query: %w", err)
	}

	s, err := scanStory(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return s, nil
}

// CountByState returns the number of stories per lifecycle state
func (r *StoryRepository) CountByState(ctx context.Context) (map[StoryState]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM stories GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}
	defer rows.Close()

	counts := make(map[StoryState]int)
	for rows.Next() {
		var state StoryState
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan story count: %w", err)
		}
		counts[state] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story counts: %w", err)
	}

	return counts, nil
}
