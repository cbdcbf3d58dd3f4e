package timers

import (
	"context"
	"fmt"
	"time"

	"github.com/quorumforum/quorum-backend/internal/domain"
	"github.com/quorumforum/quorum-backend/pkg/ctxutil"
)

// SetTimer schedules, replaces, or clears the timer in the status type's
// slot. Replacing is an in-place overwrite: two calls on the same (entity,
// slot) leave exactly one record. Both time fields absent clears the slot
// (no-op when nothing is scheduled). Returns the resulting record snapshot;
// callers must treat it as authoritative since fields may be normalized on
// the way in.
func (s *Service) SetTimer(ctx context.Context, input SetTimerInput) (*domain.TimerRecord, error) {
	input = normalize(input)

	pol, err := s.registry.For(input.StatusType)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.EntityKind != pol.EntityKind {
		return nil, domain.NewValidationError("entity_kind",
			fmt.Sprintf("%s timers apply to %s entities", input.StatusType, pol.EntityKind))
	}

	if input.IsClear() {
		return s.clearSlot(ctx, input.EntityKind, input.EntityID, pol.Slot)
	}

	if pol.RequiresCategory && input.CategoryID == nil {
		return nil, fmt.Errorf("%s: %w", input.StatusType, domain.ErrMissingCategory)
	}
	if input.BasedOnLastPost && !pol.AcceptsBasedOnLastPost {
		return nil, domain.NewValidationError("based_on_last_post",
			fmt.Sprintf("not supported for %s", input.StatusType))
	}
	if input.BasedOnLastPost && input.DurationMinutes == nil {
		return nil, domain.NewValidationError("duration_minutes", "required for last-post timers")
	}
	if pol.Repeating && input.DurationMinutes == nil {
		// a repeating timer re-arms at executed_at + duration, so an
		// absolute-time schedule has no next fire time
		return nil, domain.NewValidationError("duration_minutes",
			fmt.Sprintf("required for repeating %s timers", input.StatusType))
	}

	now := s.clock.Now().UTC()

	var executeAt time.Time
	switch {
	case input.DurationMinutes != nil:
		if err := domain.ValidateDuration(*input.DurationMinutes, s.durationCap); err != nil {
			return nil, err
		}
		executeAt = now.Add(time.Duration(*input.DurationMinutes) * time.Minute)
	default:
		executeAt = input.ExecuteAt.UTC()
		if !executeAt.After(now) {
			return nil, fmt.Errorf("%w: execute_at %s is not in the future", domain.ErrInvalidExecutionTime, executeAt)
		}
	}

	actor, _ := ctxutil.ActingUserFromCtx(ctx)

	rec, err := s.store.Upsert(ctx, domain.TimerRecord{
		EntityKind:      input.EntityKind,
		EntityID:        input.EntityID,
		StatusType:      input.StatusType,
		Slot:            pol.Slot,
		ExecuteAt:       &executeAt,
		DurationMinutes: input.DurationMinutes,
		BasedOnLastPost: input.BasedOnLastPost,
		CategoryID:      input.CategoryID,
		CreatedBy:       actor,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert timer: %w", err)
	}

	s.hook.OnScheduled(ctx, *rec)
	return rec, nil
}

// normalize coerces the service-level aliases callers are allowed to use:
// CLOSE with based_on_last_post set means CLOSE_AFTER_LAST_POST, and
// CLOSE_AFTER_LAST_POST always tracks last-post activity.
func normalize(input SetTimerInput) SetTimerInput {
	if input.StatusType == domain.StatusTypeClose && input.BasedOnLastPost {
		input.StatusType = domain.StatusTypeCloseAfterLastPost
	}
	if input.StatusType == domain.StatusTypeCloseAfterLastPost {
		input.BasedOnLastPost = true
	}
	return input
}
