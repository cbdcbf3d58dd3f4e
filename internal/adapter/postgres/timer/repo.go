// Package timer implements the timer record store using PostgreSQL.
// One row exists per (entity_kind, entity_id, slot); scheduling upserts it,
// cancellation and one-shot completion tombstone it by nulling execute_at,
// and sweep workers take exclusive claims through a conditional update so a
// due timer fires at most once even with several workers polling the same
// database.
package timer

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/quorumforum/quorum-backend/internal/adapter/postgres"
	"github.com/quorumforum/quorum-backend/internal/domain"
)

// Repo provides timer record persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new timer repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const timerColumns = `id, entity_kind, entity_id, status_type, slot, state,
execute_at, duration_minutes, based_on_last_post, category_id,
retry_count, last_error, claimed_at,
created_by, created_at, updated_at, last_executed_at`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetBySlot returns the timer record occupying the given slot for an entity.
// Returns domain.ErrNotFound if no record exists (an inert record is still
// returned, callers check IsActive themselves).
func (r *Repo) GetBySlot(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, slot domain.TimerSlot) (*domain.TimerRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	query, args, err := builder.
		Select(timerColumns).
		From("timers").
		Where(sq.Eq{"entity_kind": kind, "entity_id": entityID, "slot": slot}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get_by_slot: %w", err)
	}

	rec, err := scanTimer(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, postgres.MapError(err, "timer", entityID)
	}
	return rec, nil
}

// ListByEntity returns all timer records for an entity, optionally only the
// active (armed) ones, ordered by slot for stable output.
func (r *Repo) ListByEntity(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, onlyActive bool) ([]*domain.TimerRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sel := builder.
		Select(timerColumns).
		From("timers").
		Where(sq.Eq{"entity_kind": kind, "entity_id": entityID}).
		OrderBy("slot")
	if onlyActive {
		sel = sel.Where("execute_at IS NOT NULL")
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list_by_entity: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	return scanTimers(rows)
}

// ---------------------------------------------------------------------------
// Scheduling writes
// ---------------------------------------------------------------------------

// Upsert inserts the timer record or, when the (entity, slot) row already
// exists, overwrites it in place: the new schedule supersedes the old one
// atomically and resets execution bookkeeping (state, retries, claim).
func (r *Repo) Upsert(ctx context.Context, rec domain.TimerRecord) (*domain.TimerRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	query, args, err := builder.
		Insert("timers").
		Columns("entity_kind", "entity_id", "status_type", "slot", "state",
			"execute_at", "duration_minutes", "based_on_last_post", "category_id",
			"created_by").
		Values(rec.EntityKind, rec.EntityID, rec.StatusType, rec.Slot, domain.TimerStateScheduled,
			rec.ExecuteAt, rec.DurationMinutes, rec.BasedOnLastPost, rec.CategoryID,
			rec.CreatedBy).
		Suffix(`ON CONFLICT (entity_kind, entity_id, slot) DO UPDATE SET
			status_type = EXCLUDED.status_type,
			state = EXCLUDED.state,
			execute_at = EXCLUDED.execute_at,
			duration_minutes = EXCLUDED.duration_minutes,
			based_on_last_post = EXCLUDED.based_on_last_post,
			category_id = EXCLUDED.category_id,
			created_by = EXCLUDED.created_by,
			retry_count = 0,
			last_error = NULL,
			claimed_at = NULL,
			updated_at = now()
		RETURNING ` + timerColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w", err)
	}

	out, err := scanTimer(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, postgres.MapError(err, "timer", rec.EntityID)
	}
	return out, nil
}

// Clear tombstones the slot's record: execute_at and duration go NULL, the
// row stays for audit. The claim and state are reset too, so a sweep worker
// holding the claim finishes its in-flight firing but every follow-up write
// (complete, re-arm, retry) misses and the timer stays retired.
// Returns domain.ErrNotFound if the slot has no record.
func (r *Repo) Clear(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, slot domain.TimerSlot) (*domain.TimerRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	query, args, err := builder.
		Update("timers").
		Set("execute_at", nil).
		Set("duration_minutes", nil).
		Set("based_on_last_post", false).
		Set("state", domain.TimerStateScheduled).
		Set("claimed_at", nil).
		Set("retry_count", 0).
		Set("last_error", nil).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"entity_kind": kind, "entity_id": entityID, "slot": slot}).
		Suffix("RETURNING " + timerColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build clear: %w", err)
	}

	rec, err := scanTimer(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, postgres.MapError(err, "timer", entityID)
	}
	return rec, nil
}

// RecomputeFromLastPost shifts execute_at to lastPostAt + duration for every
// armed based-on-last-post timer on the entity. Repeated calls with the same
// timestamp land on the same execute_at, so the operation is idempotent.
// Returns the number of shifted records (0 is a valid no-op).
func (r *Repo) RecomputeFromLastPost(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, lastPostAt time.Time) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE timers
		SET execute_at = $1 + make_interval(mins => duration_minutes),
		    updated_at = now()
		WHERE entity_kind = $2
		  AND entity_id = $3
		  AND based_on_last_post
		  AND duration_minutes IS NOT NULL
		  AND execute_at IS NOT NULL
		  AND state = $4`,
		lastPostAt, kind, entityID, domain.TimerStateScheduled,
	)
	if err != nil {
		return 0, postgres.MapError(err, "timer", entityID)
	}
	return tag.RowsAffected(), nil
}

// PurgeForDeletedTopics removes timer rows whose parent topic was deleted
// before the threshold. Rows survive the entity by the retention period for
// audit, then go for good.
func (r *Repo) PurgeForDeletedTopics(ctx context.Context, deletedBefore time.Time) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		DELETE FROM timers
		WHERE entity_kind = $1
		  AND entity_id IN (
		      SELECT id FROM topics
		      WHERE deleted_at IS NOT NULL AND deleted_at < $2
		  )`,
		domain.EntityKindTopic, deletedBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("purge timers of deleted topics: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------------
// Sweep writes
// ---------------------------------------------------------------------------

// claimDueSQL takes exclusive claims on due timers. A row qualifies when it
// is armed, due, and either unclaimed or abandoned (claim older than the
// expiry cutoff). SKIP LOCKED keeps concurrent sweep transactions from
// blocking on each other; the state/claimed_at predicate is what guarantees
// a timer is handed to exactly one worker.
const claimDueSQL = `
UPDATE timers SET
    state = 'EXECUTING',
    claimed_at = $1,
    updated_at = now()
WHERE id IN (
    SELECT id FROM timers
    WHERE execute_at IS NOT NULL
      AND execute_at <= $1
      AND (state = 'SCHEDULED'
           OR (state = 'EXECUTING' AND claimed_at <= $2))
    ORDER BY execute_at
    LIMIT $3
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + timerColumns

// ClaimDue claims up to limit due timers as of now. claimCutoff is the
// abandoned-claim threshold (now minus the claim TTL); claims older than it
// are retaken so a crashed worker never strands a timer.
func (r *Repo) ClaimDue(ctx context.Context, now, claimCutoff time.Time, limit int) ([]*domain.TimerRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, claimDueSQL, now, claimCutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due timers: %w", err)
	}
	defer rows.Close()

	return scanTimers(rows)
}

// MarkCompleted retires a one-shot timer after a successful firing: the row
// goes inert with last_executed_at set. The EXECUTING guard makes the write
// miss once the record was cancelled or otherwise resolved; it does not
// identify the claim holder, so after a claim-TTL retake whichever worker
// writes second gets ErrClaimLost.
func (r *Repo) MarkCompleted(ctx context.Context, id uuid.UUID, executedAt time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE timers SET
		    state = $2,
		    execute_at = NULL,
		    claimed_at = NULL,
		    retry_count = 0,
		    last_error = NULL,
		    last_executed_at = $3,
		    updated_at = now()
		WHERE id = $1 AND state = $4`,
		id, domain.TimerStateCompleted, executedAt, domain.TimerStateExecuting,
	)
	if err != nil {
		return postgres.MapError(err, "timer", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timer %s: %w", id, domain.ErrClaimLost)
	}
	return nil
}

// RescheduleRepeat re-arms a repeating timer after a successful firing.
// If the record was cancelled while the firing was in flight (execute_at
// already NULL and claim released), no row matches and the timer stays
// retired; that is reported via domain.ErrClaimLost for the engine to log.
func (r *Repo) RescheduleRepeat(ctx context.Context, id uuid.UUID, nextAt, executedAt time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE timers SET
		    state = $2,
		    execute_at = $3,
		    claimed_at = NULL,
		    retry_count = 0,
		    last_error = NULL,
		    last_executed_at = $4,
		    updated_at = now()
		WHERE id = $1 AND state = $5 AND claimed_at IS NOT NULL`,
		id, domain.TimerStateScheduled, nextAt, executedAt, domain.TimerStateExecuting,
	)
	if err != nil {
		return postgres.MapError(err, "timer", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timer %s: %w", id, domain.ErrClaimLost)
	}
	return nil
}

// MarkRetry releases the claim and re-arms the timer at a backoff-adjusted
// future time, bumping the retry counter and recording the failure reason.
func (r *Repo) MarkRetry(ctx context.Context, id uuid.UUID, nextAt time.Time, reason string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE timers SET
		    state = $2,
		    execute_at = $3,
		    claimed_at = NULL,
		    retry_count = retry_count + 1,
		    last_error = $4,
		    updated_at = now()
		WHERE id = $1 AND state = $5`,
		id, domain.TimerStateScheduled, nextAt, reason, domain.TimerStateExecuting,
	)
	if err != nil {
		return postgres.MapError(err, "timer", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timer %s: %w", id, domain.ErrClaimLost)
	}
	return nil
}

// MarkTerminal gives up on a timer: entity gone, incompatible state, or the
// retry budget exhausted. The row goes inert with the reason recorded.
func (r *Repo) MarkTerminal(ctx context.Context, id uuid.UUID, reason string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE timers SET
		    state = $2,
		    execute_at = NULL,
		    claimed_at = NULL,
		    last_error = $3,
		    updated_at = now()
		WHERE id = $1 AND state = $4`,
		id, domain.TimerStateFailedTerminal, reason, domain.TimerStateExecuting,
	)
	if err != nil {
		return postgres.MapError(err, "timer", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timer %s: %w", id, domain.ErrClaimLost)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

func scanTimer(row pgx.Row) (*domain.TimerRecord, error) {
	var rec domain.TimerRecord
	err := row.Scan(
		&rec.ID, &rec.EntityKind, &rec.EntityID, &rec.StatusType, &rec.Slot, &rec.State,
		&rec.ExecuteAt, &rec.DurationMinutes, &rec.BasedOnLastPost, &rec.CategoryID,
		&rec.RetryCount, &rec.LastError, &rec.ClaimedAt,
		&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt, &rec.LastExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanTimers(rows pgx.Rows) ([]*domain.TimerRecord, error) {
	records := []*domain.TimerRecord{}
	for rows.Next() {
		rec, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timers: %w", err)
	}
	return records, nil
}
