package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopicState is the slice of a topic the transition engine cares about.
// The full topic (posts, participants, permissions) is owned elsewhere.
type TopicState struct {
	ID         uuid.UUID
	Title      string
	CategoryID *uuid.UUID
	Closed     bool
	Visible    bool
	BumpedAt   time.Time
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsDeleted reports whether the topic has been soft-deleted.
func (t *TopicState) IsDeleted() bool {
	return t.DeletedAt != nil
}
