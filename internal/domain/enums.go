package domain

// EntityKind identifies the kind of entity a timer acts on.
type EntityKind string

const (
	EntityKindTopic EntityKind = "TOPIC"
	EntityKindUser  EntityKind = "USER"
)

func (k EntityKind) String() string { return string(k) }

func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindTopic, EntityKindUser:
		return true
	}
	return false
}

// StatusType is the kind of state transition a timer performs when it fires.
type StatusType string

const (
	StatusTypeClose              StatusType = "CLOSE"
	StatusTypeCloseAfterLastPost StatusType = "CLOSE_AFTER_LAST_POST"
	StatusTypeOpen               StatusType = "OPEN"
	StatusTypePublishToCategory  StatusType = "PUBLISH_TO_CATEGORY"
	StatusTypeDelete             StatusType = "DELETE"
	StatusTypeBump               StatusType = "BUMP"
	StatusTypeDeleteReplies      StatusType = "DELETE_REPLIES"
	StatusTypeUnsuspend          StatusType = "UNSUSPEND"
	StatusTypeUnsilence          StatusType = "UNSILENCE"
)

func (s StatusType) String() string { return string(s) }

func (s StatusType) IsValid() bool {
	switch s {
	case StatusTypeClose, StatusTypeCloseAfterLastPost, StatusTypeOpen,
		StatusTypePublishToCategory, StatusTypeDelete, StatusTypeBump,
		StatusTypeDeleteReplies, StatusTypeUnsuspend, StatusTypeUnsilence:
		return true
	}
	return false
}

// TimerSlot is a mutual-exclusion group of status types. At most one active
// timer exists per (entity, slot); setting a new timer for a slot supersedes
// the previous one atomically.
type TimerSlot string

const (
	SlotClose         TimerSlot = "CLOSE"
	SlotOpen          TimerSlot = "OPEN"
	SlotPublish       TimerSlot = "PUBLISH"
	SlotDelete        TimerSlot = "DELETE"
	SlotBump          TimerSlot = "BUMP"
	SlotDeleteReplies TimerSlot = "DELETE_REPLIES"
	SlotUnsuspend     TimerSlot = "UNSUSPEND"
	SlotUnsilence     TimerSlot = "UNSILENCE"
)

func (s TimerSlot) String() string { return string(s) }

// TimerState tracks execution progress of a timer record.
type TimerState string

const (
	// TimerStateScheduled means the timer is waiting for its execute_at.
	// Inert records (execute_at IS NULL) also carry this state; the due
	// lookup never selects them.
	TimerStateScheduled TimerState = "SCHEDULED"
	// TimerStateExecuting means a sweep worker holds the claim.
	TimerStateExecuting TimerState = "EXECUTING"
	// TimerStateCompleted means a one-shot timer fired successfully.
	TimerStateCompleted TimerState = "COMPLETED"
	// TimerStateFailedTerminal means the timer gave up: the entity is gone,
	// in an incompatible state, or the retry budget is exhausted.
	TimerStateFailedTerminal TimerState = "FAILED_TERMINAL"
)

func (s TimerState) String() string { return string(s) }

func (s TimerState) IsValid() bool {
	switch s {
	case TimerStateScheduled, TimerStateExecuting, TimerStateCompleted, TimerStateFailedTerminal:
		return true
	}
	return false
}

// FireOutcome is reported to the notification hook after a firing attempt.
type FireOutcome string

const (
	FireOutcomeCompleted   FireOutcome = "COMPLETED"
	FireOutcomeRescheduled FireOutcome = "RESCHEDULED"
	FireOutcomeRetrying    FireOutcome = "RETRYING"
	FireOutcomeTerminal    FireOutcome = "TERMINAL"
)

func (o FireOutcome) String() string { return string(o) }
