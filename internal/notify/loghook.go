package notify

import (
	"context"
	"log/slog"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// LogHook writes timer lifecycle events to the structured log.
type LogHook struct {
	log *slog.Logger
}

// NewLogHook creates a log-backed hook.
func NewLogHook(log *slog.Logger) *LogHook {
	return &LogHook{log: log}
}

func (h *LogHook) OnScheduled(ctx context.Context, rec domain.TimerRecord) {
	h.log.InfoContext(ctx, "timer scheduled",
		slog.String("timer_id", rec.ID.String()),
		slog.String("entity_kind", rec.EntityKind.String()),
		slog.String("entity_id", rec.EntityID.String()),
		slog.String("status_type", rec.StatusType.String()),
		slog.Any("execute_at", rec.ExecuteAt),
		slog.Bool("based_on_last_post", rec.BasedOnLastPost),
	)
}

func (h *LogHook) OnCancelled(ctx context.Context, rec domain.TimerRecord) {
	h.log.InfoContext(ctx, "timer cancelled",
		slog.String("timer_id", rec.ID.String()),
		slog.String("entity_kind", rec.EntityKind.String()),
		slog.String("entity_id", rec.EntityID.String()),
		slog.String("status_type", rec.StatusType.String()),
	)
}

func (h *LogHook) OnFired(ctx context.Context, rec domain.TimerRecord, outcome domain.FireOutcome, fireErr error) {
	attrs := []any{
		slog.String("timer_id", rec.ID.String()),
		slog.String("entity_kind", rec.EntityKind.String()),
		slog.String("entity_id", rec.EntityID.String()),
		slog.String("status_type", rec.StatusType.String()),
		slog.String("outcome", outcome.String()),
		slog.Int("retry_count", rec.RetryCount),
	}
	if fireErr != nil {
		attrs = append(attrs, slog.String("error", fireErr.Error()))
		h.log.WarnContext(ctx, "timer fired", attrs...)
		return
	}
	h.log.InfoContext(ctx, "timer fired", attrs...)
}
