// Package notify defines the hook invoked around timer lifecycle events.
// Hooks observe scheduling and firing; they never fail the operation that
// triggered them, so implementations swallow and log their own errors.
package notify

import (
	"context"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// Hook receives timer lifecycle notifications.
type Hook interface {
	// OnScheduled fires after a timer record is created or superseded.
	OnScheduled(ctx context.Context, rec domain.TimerRecord)
	// OnCancelled fires after a scheduled timer is cleared. rec is the
	// tombstoned record.
	OnCancelled(ctx context.Context, rec domain.TimerRecord)
	// OnFired fires after a sweep worker finishes one firing attempt,
	// whatever the outcome. fireErr is non-nil for RETRYING and TERMINAL.
	OnFired(ctx context.Context, rec domain.TimerRecord, outcome domain.FireOutcome, fireErr error)
}

// Multi fans a notification out to several hooks in order.
type Multi []Hook

func (m Multi) OnScheduled(ctx context.Context, rec domain.TimerRecord) {
	for _, h := range m {
		h.OnScheduled(ctx, rec)
	}
}

func (m Multi) OnCancelled(ctx context.Context, rec domain.TimerRecord) {
	for _, h := range m {
		h.OnCancelled(ctx, rec)
	}
}

func (m Multi) OnFired(ctx context.Context, rec domain.TimerRecord, outcome domain.FireOutcome, fireErr error) {
	for _, h := range m {
		h.OnFired(ctx, rec, outcome, fireErr)
	}
}

// Nop is the hook used when no observer is configured.
type Nop struct{}

func (Nop) OnScheduled(context.Context, domain.TimerRecord)                        {}
func (Nop) OnCancelled(context.Context, domain.TimerRecord)                        {}
func (Nop) OnFired(context.Context, domain.TimerRecord, domain.FireOutcome, error) {}
