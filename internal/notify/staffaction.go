package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/staffaction"
	"github.com/quorumforum/quorum-backend/internal/domain"
	"github.com/quorumforum/quorum-backend/pkg/ctxutil"
)

// staffActionStore is the slice of the staff action repo this hook needs.
type staffActionStore interface {
	Log(ctx context.Context, rec staffaction.Record) error
}

// StaffActionRecorder persists one staff action record per schedule,
// cancel, and fire. Write failures are logged and dropped: the audit trail must
// never block or fail moderation itself.
type StaffActionRecorder struct {
	store   staffActionStore
	log     *slog.Logger
	timeout time.Duration
}

// NewStaffActionRecorder creates the audit hook. timeout bounds each write.
func NewStaffActionRecorder(store staffActionStore, log *slog.Logger, timeout time.Duration) *StaffActionRecorder {
	return &StaffActionRecorder{store: store, log: log, timeout: timeout}
}

func (h *StaffActionRecorder) OnScheduled(ctx context.Context, rec domain.TimerRecord) {
	details := map[string]any{
		"slot":               rec.Slot.String(),
		"based_on_last_post": rec.BasedOnLastPost,
	}
	if rec.ExecuteAt != nil {
		details["execute_at"] = rec.ExecuteAt.UTC().Format(time.RFC3339)
	}
	if rec.DurationMinutes != nil {
		details["duration_minutes"] = *rec.DurationMinutes
	}
	h.write(ctx, rec.CreatedBy, rec, "timer_scheduled", details)
}

func (h *StaffActionRecorder) OnCancelled(ctx context.Context, rec domain.TimerRecord) {
	// the canceller, when known, is not the scheduler on record
	actor, ok := ctxutil.ActingUserFromCtx(ctx)
	if !ok {
		actor = rec.CreatedBy
	}
	h.write(ctx, actor, rec, "timer_cancelled", map[string]any{
		"slot": rec.Slot.String(),
	})
}

func (h *StaffActionRecorder) OnFired(ctx context.Context, rec domain.TimerRecord, outcome domain.FireOutcome, fireErr error) {
	details := map[string]any{
		"outcome":     outcome.String(),
		"retry_count": rec.RetryCount,
	}
	if fireErr != nil {
		details["error"] = fireErr.Error()
	}
	h.write(ctx, rec.CreatedBy, rec, "timer_fired", details)
}

func (h *StaffActionRecorder) write(ctx context.Context, actor uuid.UUID, rec domain.TimerRecord, action string, details map[string]any) {
	// detach from the caller's cancellation but keep its values
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	st := rec.StatusType
	err := h.store.Log(wctx, staffaction.Record{
		ActingUserID: actor,
		Action:       action,
		EntityKind:   rec.EntityKind,
		EntityID:     rec.EntityID,
		StatusType:   &st,
		Details:      details,
	})
	if err != nil {
		h.log.WarnContext(ctx, "staff action write failed",
			slog.String("action", action),
			slog.String("timer_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
