package timers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// RecomputeFromLastPost shifts every armed last-post timer on the entity to
// lastPostAt + its duration. Called by the content pipeline whenever a
// qualifying post lands. Idempotent: repeating the call with the same
// timestamp leaves execute_at unchanged. Fixed-time timers are untouched.
func (s *Service) RecomputeFromLastPost(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, lastPostAt time.Time) error {
	n, err := s.store.RecomputeFromLastPost(ctx, kind, entityID, lastPostAt.UTC())
	if err != nil {
		return fmt.Errorf("recompute timers: %w", err)
	}
	if n > 0 {
		s.log.DebugContext(ctx, "timers recomputed from last post",
			slog.String("entity_kind", kind.String()),
			slog.String("entity_id", entityID.String()),
			slog.Int64("count", n),
		)
	}
	return nil
}
