package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserState is the slice of a user account involved in moderation timers:
// suspension and silencing windows that expire.
type UserState struct {
	ID            uuid.UUID
	Username      string
	SuspendedTill *time.Time
	SilencedTill  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsSuspended reports whether the suspension window is still open at now.
func (u *UserState) IsSuspended(now time.Time) bool {
	return u.SuspendedTill != nil && u.SuspendedTill.After(now)
}

// IsSilenced reports whether the silencing window is still open at now.
func (u *UserState) IsSilenced(now time.Time) bool {
	return u.SilencedTill != nil && u.SilencedTill.After(now)
}
