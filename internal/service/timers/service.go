// Package timers implements the scheduling API: setting, replacing,
// cancelling, and recomputing deferred state transition timers on topics
// and users. Side effects never happen here; they happen when the sweep
// engine fires the record.
package timers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/quorumforum/quorum-backend/internal/domain"
	"github.com/quorumforum/quorum-backend/internal/notify"
	"github.com/quorumforum/quorum-backend/internal/policy"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type timerStore interface {
	Upsert(ctx context.Context, rec domain.TimerRecord) (*domain.TimerRecord, error)
	Clear(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, slot domain.TimerSlot) (*domain.TimerRecord, error)
	GetBySlot(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, slot domain.TimerSlot) (*domain.TimerRecord, error)
	ListByEntity(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, onlyActive bool) ([]*domain.TimerRecord, error)
	RecomputeFromLastPost(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, lastPostAt time.Time) (int64, error)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements timer scheduling.
type Service struct {
	log         *slog.Logger
	store       timerStore
	registry    *policy.Registry
	clock       clockwork.Clock
	hook        notify.Hook
	durationCap int
}

// NewService creates the scheduling service. durationCapMinutes <= 0 falls
// back to the built-in twenty-year cap.
func NewService(
	logger *slog.Logger,
	store timerStore,
	registry *policy.Registry,
	clock clockwork.Clock,
	hook notify.Hook,
	durationCapMinutes int,
) *Service {
	if hook == nil {
		hook = notify.Nop{}
	}
	return &Service{
		log:         logger.With("service", "timers"),
		store:       store,
		registry:    registry,
		clock:       clock,
		hook:        hook,
		durationCap: durationCapMinutes,
	}
}
