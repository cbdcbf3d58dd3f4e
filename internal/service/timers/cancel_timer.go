package timers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// CancelTimer clears the timer in the status type's slot. Cancelling a slot
// with nothing scheduled is a no-op, not an error. Safe to call while a
// sweep worker holds the claim: the in-flight firing completes, every later
// fire is prevented.
func (s *Service) CancelTimer(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, st domain.StatusType) (*domain.TimerRecord, error) {
	pol, err := s.registry.For(st)
	if err != nil {
		return nil, err
	}
	return s.clearSlot(ctx, kind, entityID, pol.Slot)
}

// clearSlot tombstones the slot's record. A missing record is not an error.
func (s *Service) clearSlot(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, slot domain.TimerSlot) (*domain.TimerRecord, error) {
	rec, err := s.store.Clear(ctx, kind, entityID, slot)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("clear timer: %w", err)
	}

	s.log.InfoContext(ctx, "timer cleared",
		slog.String("entity_kind", kind.String()),
		slog.String("entity_id", entityID.String()),
		slog.String("slot", slot.String()),
	)

	s.hook.OnCancelled(ctx, *rec)
	return rec, nil
}
