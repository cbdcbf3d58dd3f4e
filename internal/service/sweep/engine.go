// Package sweep implements the execution engine: a recurring loop that
// claims due timers, fires their side effect exactly once, and records the
// outcome. Several workers may run the loop against one database; the
// store's conditional-update claim is what keeps a timer from double-firing,
// not anything in this package.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/quorumforum/quorum-backend/internal/config"
	"github.com/quorumforum/quorum-backend/internal/domain"
	"github.com/quorumforum/quorum-backend/internal/notify"
	"github.com/quorumforum/quorum-backend/internal/policy"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type timerStore interface {
	ClaimDue(ctx context.Context, now, claimCutoff time.Time, limit int) ([]*domain.TimerRecord, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, executedAt time.Time) error
	RescheduleRepeat(ctx context.Context, id uuid.UUID, nextAt, executedAt time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, nextAt time.Time, reason string) error
	MarkTerminal(ctx context.Context, id uuid.UUID, reason string) error
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Engine is one sweep worker.
type Engine struct {
	log      *slog.Logger
	store    timerStore
	registry *policy.Registry
	clock    clockwork.Clock
	hook     notify.Hook
	cfg      config.TimersConfig
}

// NewEngine creates a sweep worker.
func NewEngine(
	logger *slog.Logger,
	store timerStore,
	registry *policy.Registry,
	clock clockwork.Clock,
	hook notify.Hook,
	cfg config.TimersConfig,
) *Engine {
	if hook == nil {
		hook = notify.Nop{}
	}
	return &Engine{
		log:      logger.With("service", "sweep"),
		store:    store,
		registry: registry,
		clock:    clock,
		hook:     hook,
		cfg:      cfg,
	}
}

// Run polls for due timers until the context is cancelled. One sweep happens
// immediately on start so a restarted worker catches up without waiting a
// full interval.
func (e *Engine) Run(ctx context.Context) error {
	e.log.InfoContext(ctx, "sweep loop starting",
		slog.Duration("interval", e.cfg.SweepInterval),
		slog.Int("batch_size", e.cfg.SweepBatchSize),
	)

	ticker := e.clock.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		if n, err := e.SweepOnce(ctx); err != nil {
			e.log.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
		} else if n > 0 {
			e.log.InfoContext(ctx, "sweep finished", slog.Int("fired", n))
		}

		select {
		case <-ctx.Done():
			e.log.InfoContext(ctx, "sweep loop stopping")
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// SweepOnce claims one batch of due timers and fires them sequentially.
// Returns how many firings were attempted.
func (e *Engine) SweepOnce(ctx context.Context) (int, error) {
	now := e.clock.Now().UTC()
	cutoff := now.Add(-e.cfg.ClaimTTL)

	recs, err := e.store.ClaimDue(ctx, now, cutoff, e.cfg.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due timers: %w", err)
	}

	for _, rec := range recs {
		e.fire(ctx, *rec)
	}
	return len(recs), nil
}

// fire runs one claimed timer to an outcome. Never returns an error: every
// failure path ends in a store write (retry or terminal) and a log line.
func (e *Engine) fire(ctx context.Context, rec domain.TimerRecord) {
	pol, err := e.registry.For(rec.StatusType)
	if err != nil {
		// a row with a status type this binary does not know; retrying
		// cannot help
		e.finish(ctx, rec, domain.FireOutcomeTerminal, err,
			e.store.MarkTerminal(ctx, rec.ID, err.Error()))
		return
	}

	applyCtx, cancel := context.WithTimeout(ctx, e.cfg.SideEffectTimeout)
	applyErr := pol.Applier.Apply(applyCtx, rec)
	cancel()

	executedAt := e.clock.Now().UTC()

	switch {
	case applyErr == nil && pol.Repeating && rec.DurationMinutes == nil:
		// no interval means no next fire time; scheduling rejects these,
		// a stray row is surfaced instead of retired as one-shot
		reason := fmt.Sprintf("repeating %s timer carries no interval", rec.StatusType)
		e.finish(ctx, rec, domain.FireOutcomeTerminal, errors.New(reason),
			e.store.MarkTerminal(ctx, rec.ID, reason))

	case applyErr == nil && pol.Repeating:
		nextAt := executedAt.Add(rec.Offset())
		e.finish(ctx, rec, domain.FireOutcomeRescheduled, nil,
			e.store.RescheduleRepeat(ctx, rec.ID, nextAt, executedAt))

	case applyErr == nil:
		e.finish(ctx, rec, domain.FireOutcomeCompleted, nil,
			e.store.MarkCompleted(ctx, rec.ID, executedAt))

	case errors.Is(applyErr, domain.ErrEntityGone) || errors.Is(applyErr, domain.ErrIncompatibleEntityState):
		e.finish(ctx, rec, domain.FireOutcomeTerminal, applyErr,
			e.store.MarkTerminal(ctx, rec.ID, applyErr.Error()))

	case rec.RetryCount >= e.cfg.MaxRetries:
		reason := fmt.Sprintf("retries exhausted: %s", applyErr)
		e.finish(ctx, rec, domain.FireOutcomeTerminal, applyErr,
			e.store.MarkTerminal(ctx, rec.ID, reason))

	default:
		nextAt := executedAt.Add(e.backoff(rec.RetryCount))
		e.finish(ctx, rec, domain.FireOutcomeRetrying, applyErr,
			e.store.MarkRetry(ctx, rec.ID, nextAt, applyErr.Error()))
	}
}

// finish handles the bookkeeping write's result and invokes the hook. A
// claim lost on the write means the timer was cancelled or superseded while
// the side effect ran; the firing stands, the record stays as the concurrent
// writer left it, and no hook fires for it.
func (e *Engine) finish(ctx context.Context, rec domain.TimerRecord, outcome domain.FireOutcome, fireErr, writeErr error) {
	if writeErr != nil {
		if errors.Is(writeErr, domain.ErrClaimLost) {
			e.log.DebugContext(ctx, "claim lost during firing",
				slog.String("timer_id", rec.ID.String()),
				slog.String("outcome", outcome.String()),
			)
			return
		}
		e.log.ErrorContext(ctx, "timer bookkeeping write failed",
			slog.String("timer_id", rec.ID.String()),
			slog.String("outcome", outcome.String()),
			slog.String("error", writeErr.Error()),
		)
		return
	}

	e.hook.OnFired(ctx, rec, outcome, fireErr)
}

// backoff returns the delay before retry attempt n+1: base doubled per
// failed attempt, bounded by the configured maximum.
func (e *Engine) backoff(retryCount int) time.Duration {
	d := e.cfg.RetryBackoffBase
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= e.cfg.RetryBackoffMax {
			return e.cfg.RetryBackoffMax
		}
	}
	if d > e.cfg.RetryBackoffMax {
		return e.cfg.RetryBackoffMax
	}
	return d
}
