package database

import (
	"context"
	"fmt"
	"time"
)

// LeaseName is the single lock row guarding scheduled runs.
const LeaseName = "cron"

// LeaseRepository implements the run-level lease lock
type LeaseRepository struct {
	db  *DB
	now func() time.Time
}

// NewLeaseRepository creates a new lease repository
func NewLeaseRepository(db *DB) *LeaseRepository {
	return &LeaseRepository{db: db, now: time.Now}
}

// Acquire clears an expired lease and then tries to insert one owned by
// owner. It returns true iff the insert took effect.
func (r *LeaseRepository) Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	now := r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin lease transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM run_lock WHERE lock_name = ? AND lease_until < ?",
		LeaseName, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to clear expired lease: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO run_lock (lock_name, lease_owner, lease_until) VALUES (?, ?, ?)",
		LeaseName, owner, formatTime(now.Add(ttl)))
	if err != nil {
		return false, fmt.Errorf("failed to insert lease: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit lease: %w", err)
	}

	return affected > 0, nil
}

// Release drops the lease if owner still holds it
func (r *LeaseRepository) Release(ctx context.Context, owner string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM run_lock WHERE lock_name = ? AND lease_owner = ?", LeaseName, owner)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
