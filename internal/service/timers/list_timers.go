package timers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// GetTimer returns the status type's slot record, armed or tombstoned.
// Returns domain.ErrNotFound when the slot never held a timer.
func (s *Service) GetTimer(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, st domain.StatusType) (*domain.TimerRecord, error) {
	pol, err := s.registry.For(st)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetBySlot(ctx, kind, entityID, pol.Slot)
	if err != nil {
		return nil, fmt.Errorf("get timer: %w", err)
	}
	return rec, nil
}

// ListTimers returns the entity's timer records, armed only or all.
func (s *Service) ListTimers(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, onlyActive bool) ([]*domain.TimerRecord, error) {
	recs, err := s.store.ListByEntity(ctx, kind, entityID, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	return recs, nil
}
