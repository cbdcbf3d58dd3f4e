// Package topicstate implements the topic entity gateway used by the
// transition engine: loading the moderation-relevant slice of a topic and
// applying the state changes a fired timer demands. The rest of the topic
// (posts content, permissions, counters) is owned by other parts of the
// platform.
package topicstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/quorumforum/quorum-backend/internal/adapter/postgres"
	"github.com/quorumforum/quorum-backend/internal/domain"
)

// Repo provides topic state persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new topic state repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const topicColumns = `id, title, category_id, closed, visible, bumped_at, deleted_at, created_at, updated_at`

// Load returns the topic's moderation state.
// Returns domain.ErrNotFound if the topic does not exist.
func (r *Repo) Load(ctx context.Context, id uuid.UUID) (*domain.TopicState, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var t domain.TopicState
	err := q.QueryRow(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.CategoryID, &t.Closed, &t.Visible, &t.BumpedAt, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err, "topic", id)
	}
	return &t, nil
}

// SetClosed opens or closes a topic. Soft-deleted topics are not touched.
func (r *Repo) SetClosed(ctx context.Context, id uuid.UUID, closed bool) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE topics SET closed = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id, closed,
	)
	if err != nil {
		return postgres.MapError(err, "topic", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Publish moves a topic into a category and makes it visible.
func (r *Repo) Publish(ctx context.Context, id, categoryID uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE topics SET category_id = $2, visible = TRUE, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, categoryID,
	)
	if err != nil {
		return postgres.MapError(err, "topic", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SoftDelete marks the topic deleted. Idempotent: deleting an already
// deleted topic affects no rows and reports domain.ErrNotFound so the
// caller can distinguish.
func (r *Repo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE topics SET deleted_at = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return postgres.MapError(err, "topic", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Bump refreshes the topic's bump timestamp, floating it to the top of
// latest-activity listings.
func (r *Repo) Bump(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE topics SET bumped_at = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return postgres.MapError(err, "topic", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteReplies soft-deletes every reply (post_number > 1) of a topic.
// Returns the number of replies removed; 0 is a valid outcome.
func (r *Repo) DeleteReplies(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE posts SET deleted_at = $2
		 WHERE topic_id = $1 AND post_number > 1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return 0, postgres.MapError(err, "topic", id)
	}
	return tag.RowsAffected(), nil
}

// LastPostAt returns the creation time of the newest live post in the topic.
// Returns domain.ErrNotFound when the topic has no live posts at all.
func (r *Repo) LastPostAt(ctx context.Context, id uuid.UUID) (time.Time, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var at *time.Time
	err := q.QueryRow(ctx,
		`SELECT max(created_at) FROM posts WHERE topic_id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&at)
	if err != nil {
		return time.Time{}, postgres.MapError(err, "topic", id)
	}
	if at == nil {
		return time.Time{}, fmt.Errorf("topic %s has no posts: %w", id, domain.ErrNotFound)
	}
	return *at, nil
}
