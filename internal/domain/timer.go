package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxDurationMinutes caps relative timers at roughly 20 years. Anything
// longer is treated as a caller mistake.
const MaxDurationMinutes = 20 * 365 * 1440

// TimerRecord is one scheduled state transition bound to an entity. There is
// at most one record per (entity_kind, entity_id, slot); rescheduling mutates
// the record in place, cancellation and one-shot completion tombstone it by
// nulling ExecuteAt. Rows are never deleted while the entity exists, so the
// history of who scheduled what survives for audit.
type TimerRecord struct {
	ID         uuid.UUID
	EntityKind EntityKind
	EntityID   uuid.UUID
	StatusType StatusType
	Slot       TimerSlot
	State      TimerState

	// ExecuteAt is the absolute fire time. Nil means the record is inert:
	// cancelled, completed, or never armed.
	ExecuteAt *time.Time

	// DurationMinutes is set for relative timers ("N minutes from now" or
	// "N minutes from last activity"). ExecuteAt is derived from it.
	DurationMinutes *int

	// BasedOnLastPost marks timers whose ExecuteAt slides forward whenever a
	// qualifying new post arrives on the entity.
	BasedOnLastPost bool

	// CategoryID is set only for PUBLISH_TO_CATEGORY timers.
	CategoryID *uuid.UUID

	RetryCount int
	LastError  *string

	// ClaimedAt is the sweep worker's exclusive lease marker. A claim older
	// than the configured TTL is considered abandoned and may be retaken.
	ClaimedAt *time.Time

	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastExecutedAt *time.Time
}

// IsActive reports whether the timer is armed.
func (t *TimerRecord) IsActive() bool {
	return t.ExecuteAt != nil
}

// Offset returns the relative duration of the timer, or zero if it is
// an absolute-time timer.
func (t *TimerRecord) Offset() time.Duration {
	if t.DurationMinutes == nil {
		return 0
	}
	return time.Duration(*t.DurationMinutes) * time.Minute
}

// ValidateDuration checks a relative duration in minutes against the given
// cap. A non-positive cap falls back to MaxDurationMinutes.
func ValidateDuration(minutes, capMinutes int) error {
	if capMinutes <= 0 {
		capMinutes = MaxDurationMinutes
	}
	if minutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be positive (got %d)", ErrInvalidDuration, minutes)
	}
	if minutes > capMinutes {
		return fmt.Errorf("%w: duration_minutes %d exceeds cap %d", ErrInvalidDuration, minutes, capMinutes)
	}
	return nil
}
