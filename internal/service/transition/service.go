// Package transition implements the side effects that fire when a timer
// comes due: closing, opening, publishing, deleting, bumping topics and
// lifting user suspensions and silencings.
//
// Every applier re-validates the entity before acting. A missing or deleted
// entity yields domain.ErrEntityGone and a state the transition cannot apply
// to yields domain.ErrIncompatibleEntityState; the sweep engine treats both
// as terminal. Any other error is considered transient and retried.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/quorumforum/quorum-backend/internal/domain"
	"github.com/quorumforum/quorum-backend/internal/policy"
)

type topicGateway interface {
	Load(ctx context.Context, id uuid.UUID) (*domain.TopicState, error)
	SetClosed(ctx context.Context, id uuid.UUID, closed bool) error
	Publish(ctx context.Context, id, categoryID uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Bump(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteReplies(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
}

type userGateway interface {
	Load(ctx context.Context, id uuid.UUID) (*domain.UserState, error)
	ClearSuspension(ctx context.Context, id uuid.UUID) error
	ClearSilence(ctx context.Context, id uuid.UUID) error
}

// Service bundles the transition appliers over the entity gateways.
type Service struct {
	topics topicGateway
	users  userGateway
	clock  clockwork.Clock
	log    *slog.Logger
}

// New creates the transition service.
func New(topics topicGateway, users userGateway, clock clockwork.Clock, log *slog.Logger) *Service {
	return &Service{
		topics: topics,
		users:  users,
		clock:  clock,
		log:    log,
	}
}

// Appliers wires the service methods into the policy registry's slots.
func (s *Service) Appliers() policy.Appliers {
	return policy.Appliers{
		CloseTopic:        policy.ApplierFunc(s.closeTopic),
		OpenTopic:         policy.ApplierFunc(s.openTopic),
		PublishToCategory: policy.ApplierFunc(s.publishToCategory),
		DeleteTopic:       policy.ApplierFunc(s.deleteTopic),
		BumpTopic:         policy.ApplierFunc(s.bumpTopic),
		DeleteReplies:     policy.ApplierFunc(s.deleteReplies),
		UnsuspendUser:     policy.ApplierFunc(s.unsuspendUser),
		UnsilenceUser:     policy.ApplierFunc(s.unsilenceUser),
	}
}

// liveTopic loads the topic and maps missing/deleted to ErrEntityGone.
func (s *Service) liveTopic(ctx context.Context, id uuid.UUID) (*domain.TopicState, error) {
	topic, err := s.topics.Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("topic %s: %w", id, domain.ErrEntityGone)
		}
		return nil, fmt.Errorf("load topic %s: %w", id, err)
	}
	if topic.IsDeleted() {
		return nil, fmt.Errorf("topic %s is deleted: %w", id, domain.ErrEntityGone)
	}
	return topic, nil
}

func (s *Service) closeTopic(ctx context.Context, rec domain.TimerRecord) error {
	topic, err := s.liveTopic(ctx, rec.EntityID)
	if err != nil {
		return err
	}
	if topic.Closed {
		// desired state already holds
		return nil
	}
	return s.topics.SetClosed(ctx, rec.EntityID, true)
}

func (s *Service) openTopic(ctx context.Context, rec domain.TimerRecord) error {
	topic, err := s.liveTopic(ctx, rec.EntityID)
	if err != nil {
		return err
	}
	if !topic.Closed {
		return nil
	}
	return s.topics.SetClosed(ctx, rec.EntityID, false)
}

func (s *Service) publishToCategory(ctx context.Context, rec domain.TimerRecord) error {
	if rec.CategoryID == nil {
		return fmt.Errorf("timer %s has no category: %w", rec.ID, domain.ErrIncompatibleEntityState)
	}
	if _, err := s.liveTopic(ctx, rec.EntityID); err != nil {
		return err
	}
	return s.topics.Publish(ctx, rec.EntityID, *rec.CategoryID)
}

func (s *Service) deleteTopic(ctx context.Context, rec domain.TimerRecord) error {
	if _, err := s.liveTopic(ctx, rec.EntityID); err != nil {
		return err
	}
	return s.topics.SoftDelete(ctx, rec.EntityID, s.clock.Now().UTC())
}

func (s *Service) bumpTopic(ctx context.Context, rec domain.TimerRecord) error {
	if _, err := s.liveTopic(ctx, rec.EntityID); err != nil {
		return err
	}
	return s.topics.Bump(ctx, rec.EntityID, s.clock.Now().UTC())
}

func (s *Service) deleteReplies(ctx context.Context, rec domain.TimerRecord) error {
	if _, err := s.liveTopic(ctx, rec.EntityID); err != nil {
		return err
	}
	n, err := s.topics.DeleteReplies(ctx, rec.EntityID, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "replies removed",
		slog.String("topic_id", rec.EntityID.String()),
		slog.Int64("count", n),
	)
	return nil
}

// liveUser loads the user and maps missing to ErrEntityGone.
func (s *Service) liveUser(ctx context.Context, id uuid.UUID) (*domain.UserState, error) {
	user, err := s.users.Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrEntityGone)
		}
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return user, nil
}

func (s *Service) unsuspendUser(ctx context.Context, rec domain.TimerRecord) error {
	user, err := s.liveUser(ctx, rec.EntityID)
	if err != nil {
		return err
	}
	if user.SuspendedTill == nil {
		return nil
	}
	return s.users.ClearSuspension(ctx, rec.EntityID)
}

func (s *Service) unsilenceUser(ctx context.Context, rec domain.TimerRecord) error {
	user, err := s.liveUser(ctx, rec.EntityID)
	if err != nil {
		return err
	}
	if user.SilencedTill == nil {
		return nil
	}
	return s.users.ClearSilence(ctx, rec.EntityID)
}
