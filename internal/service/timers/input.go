package timers

import (
	"time"

	"github.com/google/uuid"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// SetTimerInput holds the parameters for scheduling or clearing a timer.
// Exactly one of ExecuteAt and DurationMinutes arms the timer; both absent
// means "clear the slot".
type SetTimerInput struct {
	EntityKind domain.EntityKind
	EntityID   uuid.UUID
	StatusType domain.StatusType

	ExecuteAt       *time.Time
	DurationMinutes *int

	BasedOnLastPost bool
	CategoryID      *uuid.UUID
}

// IsClear reports whether the input requests clearing instead of scheduling.
func (i *SetTimerInput) IsClear() bool {
	return i.ExecuteAt == nil && i.DurationMinutes == nil
}

// Validate checks the shape of the input. Policy-dependent checks (category,
// based-on-last-post, duration cap, future time) happen in SetTimer after
// the status type is resolved.
func (i *SetTimerInput) Validate() error {
	if i.EntityID == uuid.Nil {
		return domain.NewValidationError("entity_id", "required")
	}
	if !i.EntityKind.IsValid() {
		return domain.NewValidationError("entity_kind", "unknown value")
	}
	if i.ExecuteAt != nil && i.DurationMinutes != nil {
		return domain.NewValidationError("execute_at", "provide either execute_at or duration_minutes, not both")
	}
	return nil
}
