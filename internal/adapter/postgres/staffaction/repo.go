// Package staffaction implements the staff action log repository using
// PostgreSQL. It provides append-only records of moderation activity:
// timers scheduled, cancelled, and fired.
package staffaction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/quorumforum/quorum-backend/internal/adapter/postgres"
	"github.com/quorumforum/quorum-backend/internal/domain"
)

// Record is one staff action log entry.
type Record struct {
	ID           uuid.UUID
	ActingUserID uuid.UUID
	Action       string
	EntityKind   domain.EntityKind
	EntityID     uuid.UUID
	StatusType   *domain.StatusType
	Details      map[string]any
	CreatedAt    time.Time
}

// Repo provides staff action log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new staff action repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Log appends a staff action record (fire-and-forget for callers: the
// returned error is for logging, not for aborting the operation).
func (r *Repo) Log(ctx context.Context, rec Record) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var details []byte
	if rec.Details != nil {
		var err error
		details, err = json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("staff_action marshal details: %w", err)
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := q.Exec(ctx,
		`INSERT INTO staff_actions (id, acting_user_id, action, entity_kind, entity_id, status_type, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.ActingUserID, rec.Action, rec.EntityKind, rec.EntityID, rec.StatusType, details, rec.CreatedAt,
	)
	if err != nil {
		return postgres.MapError(err, "staff_action", rec.ID)
	}
	return nil
}

// GetByEntity returns the moderation history for one entity, newest first,
// limited to `limit` records.
func (r *Repo) GetByEntity(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, limit int) ([]Record, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx,
		`SELECT id, acting_user_id, action, entity_kind, entity_id, status_type, details, created_at
		 FROM staff_actions
		 WHERE entity_kind = $1 AND entity_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		kind, entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get staff_actions by entity: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// PurgeOlderThan removes staff action records created before the threshold.
// Returns how many rows went.
func (r *Repo) PurgeOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM staff_actions WHERE created_at < $1`,
		threshold,
	)
	if err != nil {
		return 0, fmt.Errorf("purge staff_actions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var (
			rec     Record
			details []byte
		)
		err := rows.Scan(&rec.ID, &rec.ActingUserID, &rec.Action, &rec.EntityKind,
			&rec.EntityID, &rec.StatusType, &details, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan staff_action: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &rec.Details); err != nil {
				return nil, fmt.Errorf("staff_action unmarshal details: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staff_actions: %w", err)
	}
	return records, nil
}
