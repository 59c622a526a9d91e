package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ErrorRepository stores error events for operational diagnosis
type ErrorRepository struct {
	db  *DB
	now func() time.Time
}

// NewErrorRepository creates a new error repository
func NewErrorRepository(db *DB) *ErrorRepository {
	return &ErrorRepository{db: db, now: time.Now}
}

// RecordError inserts one error event
func (r *ErrorRepository) RecordError(ctx context.Context, event ErrorEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO error_events (event_id, run_id, phase, source_id, story_id, code, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), event.RunID, event.Phase,
		nullableString(event.SourceID), nullableString(event.StoryID), nullableString(event.Code),
		event.Message, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("failed to record error event: %w", err)
	}
	return nil
}

// TopFailingSources returns the sources with the most error events since the
// given time, worst first.
func (r *ErrorRepository) TopFailingSources(ctx context.Context, since time.Time, limit int) ([]FailingSource, error) {
	query, args, err := qb.
		Select("source_id", "COUNT(*) AS error_count").
		From("error_events").
		Where(sq.Gt{"created_at": formatTime(since)}).
		Where(sq.NotEq{"source_id": nil}).
		GroupBy("source_id").
		OrderBy("error_count DESC", "source_id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build failing sources query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get failing sources: %w", err)
	}
	defer rows.Close()

	var sources []FailingSource
	for rows.Next() {
		var fs FailingSource
		if err := rows.Scan(&fs.SourceID, &fs.ErrorCount); err != nil {
			return nil, fmt.Errorf("failed to scan failing source: %w", err)
		}
		sources = append(sources, fs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failing sources: %w", err)
	}

	return sources, nil
}
