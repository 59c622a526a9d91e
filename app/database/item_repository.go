package database

import (
	"context"
	"fmt"
	"time"
)

// ItemRepository handles database operations for ingested items
type ItemRepository struct {
	db  *DB
	now func() time.Time
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db, now: time.Now}
}

// UpsertItems inserts every entry that is not stored yet. It returns the
// number of entries seen and the keys inserted by this call, in input order.
// Entries already present (by item key) are left untouched.
func (r *ItemRepository) UpsertItems(ctx context.Context, sourceID string, items []FeedItem) (int, []string, error) {
	if len(items) == 0 {
		return 0, nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO items (
			item_id, item_key, source_id, source_url, normalized_url,
			title, snippet, title_hash, published_at, date_confidence, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	ingestedAt := formatTime(r.now())
	var newKeys []string

	for _, item := range items {
		confidence := item.DateConfidence
		if confidence == "" {
			confidence = "low"
		}

		res, err := stmt.ExecContext(ctx,
			item.ItemKey, item.ItemKey, sourceID, item.SourceURL, item.NormalizedURL,
			item.Title, nullableString(item.Snippet), item.TitleHash,
			nullableTime(item.PublishedAt), confidence, ingestedAt,
		)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to insert item %s: %w", item.ItemKey, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected > 0 {
			newKeys = append(newKeys, item.ItemKey)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit upsert: %w", err)
	}

	return len(items), newKeys, nil
}

// GetItemCount returns the total number of stored items
func (r *ItemRepository) GetItemCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}
