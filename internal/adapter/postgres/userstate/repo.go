// Package userstate implements the user entity gateway for moderation
// timers: suspension and silencing windows that a timer lifts when it fires.
package userstate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/quorumforum/quorum-backend/internal/adapter/postgres"
	"github.com/quorumforum/quorum-backend/internal/domain"
)

// Repo provides user moderation state persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new user state repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Load returns the user's moderation state.
// Returns domain.ErrNotFound if the user does not exist.
func (r *Repo) Load(ctx context.Context, id uuid.UUID) (*domain.UserState, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var u domain.UserState
	err := q.QueryRow(ctx,
		`SELECT id, username, suspended_till, silenced_till, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.SuspendedTill, &u.SilencedTill, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err, "user", id)
	}
	return &u, nil
}

// ClearSuspension lifts the user's suspension window.
func (r *Repo) ClearSuspension(ctx context.Context, id uuid.UUID) error {
	return r.clearWindow(ctx, id, "suspended_till")
}

// ClearSilence lifts the user's silencing window.
func (r *Repo) ClearSilence(ctx context.Context, id uuid.UUID) error {
	return r.clearWindow(ctx, id, "silenced_till")
}

func (r *Repo) clearWindow(ctx context.Context, id uuid.UUID, column string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	// column is one of two compile-time constants, never caller input
	tag, err := q.Exec(ctx,
		`UPDATE users SET `+column+` = NULL, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return postgres.MapError(err, "user", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
