package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PublicationRepository handles web and social publication state per story
type PublicationRepository struct {
	db  *DB
	now func() time.Time
}

// NewPublicationRepository creates a new publication repository
func NewPublicationRepository(db *DB) *PublicationRepository {
	return &PublicationRepository{db: db, now: time.Now}
}

// EligibleForSocial returns published stories that may be crossposted:
// never attempted or transiently failed, below the attempt ceiling, and
// without a recorded post id.
func (r *PublicationRepository) EligibleForSocial(ctx context.Context, limit int) ([]SocialCandidate, error) {
	query, args, err := qb.
		Select("p.story_id", "s.title", "s.summary").
		From("publications p").
		Join("stories s ON s.story_id = p.story_id").
		Where(sq.Eq{
			"p.web_status":    "published",
			"p.social_status": []string{string(SocialDisabled), string(SocialFailed)},
			"p.social_post_id": nil,
		}).
		Where(sq.Lt{"p.social_attempts": MaxSocialAttempts}).
		Where(sq.NotEq{"s.title": nil, "s.summary": nil}).
		OrderBy("s.last_update_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build social eligibility query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get stories for social posting: %w", err)
	}
	defer rows.Close()

	var candidates []SocialCandidate
	for rows.Next() {
		var c SocialCandidate
		if err := rows.Scan(&c.StoryID, &c.Title, &c.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan social candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating social candidates: %w", err)
	}

	return candidates, nil
}

// GetPublication returns the publication row of a story, or nil when absent
func (r *PublicationRepository) GetPublication(ctx context.Context, storyID string) (*Publication, error) {
	query, args, err := qb.
		Select("story_id", "web_status", "web_published_at", "social_status",
			"COALESCE(social_post_id, '')", "social_attempts", "COALESCE(social_error_last, '')",
			"social_posted_at", "created_at", "updated_at").
		From("publications").
		Where(sq.Eq{"story_id": storyID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build publication query: %w", err)
	}

	var p Publication
	var webPublished, socialPosted sql.NullString
	var createdAt, updatedAt string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.StoryID, &p.WebStatus, &webPublished, &p.SocialStatus,
		&p.SocialPostID, &p.SocialAttempts, &p.SocialErrorLast,
		&socialPosted, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publication: %w", err)
	}

	if p.WebPublishedAt, err = scanNullableTime(webPublished); err != nil {
		return nil, err
	}
	if p.SocialPostedAt, err = scanNullableTime(socialPosted); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

// MarkSocialPosted records a successful crosspost. The post id is written
// only once; false means another attempt already recorded one.
func (r *PublicationRepository) MarkSocialPosted(ctx context.Context, storyID, postID string) (bool, error) {
	now := formatTime(r.now())
	res, err := r.db.ExecContext(ctx, `
		UPDATE publications
		SET social_status = 'posted', social_post_id = ?, social_posted_at = ?, updated_at = ?
		WHERE story_id = ? AND social_post_id IS NULL
	`, postID, now, now, storyID)
	if err != nil {
		return false, fmt.Errorf("failed to mark social posted: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// MarkSocialFailed records a failed crosspost attempt with its classified status
func (r *PublicationRepository) MarkSocialFailed(ctx context.Context, storyID string, status SocialStatus, errorMsg string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE publications
		SET social_status = ?, social_error_last = ?, social_attempts = social_attempts + 1, updated_at = ?
		WHERE story_id = ? AND social_post_id IS NULL
	`, string(status), errorMsg, formatTime(r.now()), storyID)
	if err != nil {
		return false, fmt.Errorf("failed to mark social failure: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// CountBySocialStatus returns the number of publications per social status
func (r *PublicationRepository) CountBySocialStatus(ctx context.Context) (map[SocialStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT social_status, COUNT(*) FROM publications GROUP BY social_status")
	if err != nil {
		return nil, fmt.Errorf("failed to count publications: %w", err)
	}
	defer rows.Close()

	counts := make(map[SocialStatus]int)
	for rows.Next() {
		var status SocialStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan publication count: %w", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating publication counts: %w", err)
	}

	return counts, nil
}
