// Package policy defines the transition policy registry: the pure, immutable
// lookup from a status type to the rules that govern it: which
// mutual-exclusion slot it occupies, whether it may track last-post activity,
// whether it needs a category, whether it repeats, and which side-effect
// applier fires it.
package policy

import (
	"context"
	"fmt"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// Applier performs the domain side effect of one status type when its timer
// fires. Implementations live next to the entity gateways; the engine only
// sees this interface.
type Applier interface {
	Apply(ctx context.Context, rec domain.TimerRecord) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, rec domain.TimerRecord) error

func (f ApplierFunc) Apply(ctx context.Context, rec domain.TimerRecord) error {
	return f(ctx, rec)
}

// Policy is the rule set for one status type.
type Policy struct {
	StatusType domain.StatusType
	EntityKind domain.EntityKind
	Slot       domain.TimerSlot

	// AcceptsBasedOnLastPost allows the timer's fire time to slide with new
	// activity on the entity.
	AcceptsBasedOnLastPost bool

	// RequiresCategory demands a category_id at schedule time.
	RequiresCategory bool

	// Repeating timers re-arm after a successful firing instead of retiring.
	Repeating bool

	Applier Applier
}

// Registry maps status types to their policies. It is built once at startup
// and read-only afterwards, so concurrent lookups need no locking.
type Registry struct {
	policies map[domain.StatusType]Policy
}

// Appliers carries one side-effect implementation per status type. All fields
// are required; NewRegistry rejects a nil applier so a miswired binary fails
// at startup rather than at fire time.
type Appliers struct {
	CloseTopic        Applier
	OpenTopic         Applier
	PublishToCategory Applier
	DeleteTopic       Applier
	BumpTopic         Applier
	DeleteReplies     Applier
	UnsuspendUser     Applier
	UnsilenceUser     Applier
}

// NewRegistry builds the registry from the fixed policy table.
func NewRegistry(ap Appliers) (*Registry, error) {
	table := []Policy{
		{
			StatusType: domain.StatusTypeClose,
			EntityKind: domain.EntityKindTopic,
			Slot:       domain.SlotClose,
			Applier:    ap.CloseTopic,
		},
		{
			StatusType:             domain.StatusTypeCloseAfterLastPost,
			EntityKind:             domain.EntityKindTopic,
			Slot:                   domain.SlotClose,
			AcceptsBasedOnLastPost: true,
			Applier:                ap.CloseTopic,
		},
		{
			StatusType: domain.StatusTypeOpen,
			EntityKind: domain.EntityKindTopic,
			Slot:       domain.SlotOpen,
			Applier:    ap.OpenTopic,
		},
		{
			StatusType:       domain.StatusTypePublishToCategory,
			EntityKind:       domain.EntityKindTopic,
			Slot:             domain.SlotPublish,
			RequiresCategory: true,
			Applier:          ap.PublishToCategory,
		},
		{
			StatusType: domain.StatusTypeDelete,
			EntityKind: domain.EntityKindTopic,
			Slot:       domain.SlotDelete,
			Applier:    ap.DeleteTopic,
		},
		{
			StatusType: domain.StatusTypeBump,
			EntityKind: domain.EntityKindTopic,
			Slot:       domain.SlotBump,
			Repeating:  true,
			Applier:    ap.BumpTopic,
		},
		{
			StatusType: domain.StatusTypeDeleteReplies,
			EntityKind: domain.EntityKindTopic,
			Slot:       domain.SlotDeleteReplies,
			Applier:    ap.DeleteReplies,
		},
		{
			StatusType: domain.StatusTypeUnsuspend,
			EntityKind: domain.EntityKindUser,
			Slot:       domain.SlotUnsuspend,
			Applier:    ap.UnsuspendUser,
		},
		{
			StatusType: domain.StatusTypeUnsilence,
			EntityKind: domain.EntityKindUser,
			Slot:       domain.SlotUnsilence,
			Applier:    ap.UnsilenceUser,
		},
	}

	policies := make(map[domain.StatusType]Policy, len(table))
	for _, p := range table {
		if p.Applier == nil {
			return nil, fmt.Errorf("policy %s: nil applier", p.StatusType)
		}
		if _, dup := policies[p.StatusType]; dup {
			return nil, fmt.Errorf("policy %s: duplicate registration", p.StatusType)
		}
		policies[p.StatusType] = p
	}

	return &Registry{policies: policies}, nil
}

// For returns the policy for the given status type.
// Returns domain.ErrUnknownStatusType for unregistered values; there is no
// default policy.
func (r *Registry) For(st domain.StatusType) (Policy, error) {
	p, ok := r.policies[st]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", domain.ErrUnknownStatusType, st)
	}
	return p, nil
}

// StatusTypes returns all registered status types, for diagnostics.
func (r *Registry) StatusTypes() []domain.StatusType {
	out := make([]domain.StatusType, 0, len(r.policies))
	for st := range r.policies {
		out = append(out, st)
	}
	return out
}
