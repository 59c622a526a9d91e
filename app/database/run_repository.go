package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunRepository records one row per scheduled run
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// StartRun inserts an in-progress run row
func (r *RunRepository) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, started_at, status) VALUES (?, ?, 'in_progress')",
		runID, formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun writes the terminal status and counters of a run. The status is
// derived from the counters.
func (r *RunRepository) FinishRun(ctx context.Context, runID string, finishedAt time.Time, duration time.Duration, c RunCounters) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?, status = ?,
			sources_ok = ?, sources_failed = ?, items_found = ?, items_new = ?,
			stories_new = ?, stories_updated = ?, published_web = ?, published_social = ?,
			errors_total = ?, duration_ms = ?
		WHERE run_id = ? AND status = 'in_progress'
	`, formatTime(finishedAt), string(c.Status()),
		c.SourcesOK, c.SourcesFailed, c.ItemsFound, c.ItemsNew,
		c.StoriesNew, c.StoriesUpdated, c.PublishedWeb, c.PublishedSocial,
		c.ErrorsTotal, duration.Milliseconds(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when none exist
func (r *RunRepository) LastRun(ctx context.Context) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	c := &run.Counters

	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, status,
		       sources_ok, sources_failed, items_found, items_new,
		       stories_new, stories_updated, published_web, published_social,
		       errors_total, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&run.ID, &startedAt, &finishedAt, &run.Status,
		&c.SourcesOK, &c.SourcesFailed, &c.ItemsFound, &c.ItemsNew,
		&c.StoriesNew, &c.StoriesUpdated, &c.PublishedWeb, &c.PublishedSocial,
		&c.ErrorsTotal, &run.DurationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = scanNullableTime(finishedAt); err != nil {
		return nil, err
	}

	return &run, nil
}
