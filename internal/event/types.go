package event

import (
	"time"

	"github.com/Iron-Ham/quorum/internal/lifecycle"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTaskRegistered        = "task.registered"
	TypeTaskStatusChanged     = "task.status_changed"
	TypeExecutionStarted      = "execution.started"
	TypeExecutionFinished     = "execution.finished"
	TypeConsensusOpened       = "consensus.opened"
	TypeVoteReceived          = "consensus.vote_received"
	TypeConsensusResolved     = "consensus.resolved"
	TypeSnapshotPersistFailed = "snapshot.persist_failed"
	TypeVoteRejected          = "inbox.vote_rejected"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskRegisteredEvent is emitted when a new task enters the registry.
type TaskRegisteredEvent struct {
	baseEvent
	TaskID string
	Title  string
	RunID  string
}

// NewTaskRegisteredEvent creates a TaskRegisteredEvent.
func NewTaskRegisteredEvent(taskID, title, runID string) TaskRegisteredEvent {
	return TaskRegisteredEvent{
		baseEvent: newBaseEvent(TypeTaskRegistered),
		TaskID:    taskID,
		Title:     title,
		RunID:     runID,
	}
}

// TaskStatusChangedEvent is emitted after every registry status mutation.
type TaskStatusChangedEvent struct {
	baseEvent
	TaskID string
	From   lifecycle.Status
	To     lifecycle.Status
}

// NewTaskStatusChangedEvent creates a TaskStatusChangedEvent.
func NewTaskStatusChangedEvent(taskID string, from, to lifecycle.Status) TaskStatusChangedEvent {
	return TaskStatusChangedEvent{
		baseEvent: newBaseEvent(TypeTaskStatusChanged),
		TaskID:    taskID,
		From:      from,
		To:        to,
	}
}

// -----------------------------------------------------------------------------
// Execution Events
// -----------------------------------------------------------------------------

// ExecutionStartedEvent is emitted once an invocation holds a pool permit.
type ExecutionStartedEvent struct {
	baseEvent
	TaskID    string
	Role      lifecycle.Role
	AdapterID string
}

// NewExecutionStartedEvent creates an ExecutionStartedEvent.
func NewExecutionStartedEvent(taskID string, role lifecycle.Role, adapterID string) ExecutionStartedEvent {
	return ExecutionStartedEvent{
		baseEvent: newBaseEvent(TypeExecutionStarted),
		TaskID:    taskID,
		Role:      role,
		AdapterID: adapterID,
	}
}

// ExecutionFinishedEvent is emitted when an invocation returns, fails or panics.
type ExecutionFinishedEvent struct {
	baseEvent
	TaskID    string
	Role      lifecycle.Role
	AdapterID string
	Success   bool
	Duration  time.Duration
	Error     string
}

// NewExecutionFinishedEvent creates an ExecutionFinishedEvent.
func NewExecutionFinishedEvent(taskID string, role lifecycle.Role, adapterID string, success bool, d time.Duration, errMsg string) ExecutionFinishedEvent {
	return ExecutionFinishedEvent{
		baseEvent: newBaseEvent(TypeExecutionFinished),
		TaskID:    taskID,
		Role:      role,
		AdapterID: adapterID,
		Success:   success,
		Duration:  d,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Consensus Events
// -----------------------------------------------------------------------------

// ConsensusOpenedEvent is emitted when a voting session opens.
type ConsensusOpenedEvent struct {
	baseEvent
	TaskID        string
	ArtifactType  string
	Strategy      string
	RequiredVotes int
}

// NewConsensusOpenedEvent creates a ConsensusOpenedEvent.
func NewConsensusOpenedEvent(taskID, artifactType, strategy string, required int) ConsensusOpenedEvent {
	return ConsensusOpenedEvent{
		baseEvent:     newBaseEvent(TypeConsensusOpened),
		TaskID:        taskID,
		ArtifactType:  artifactType,
		Strategy:      strategy,
		RequiredVotes: required,
	}
}

// VoteReceivedEvent is emitted for every vote accepted into a session,
// including votes buffered before the session opens.
type VoteReceivedEvent struct {
	baseEvent
	TaskID   string
	VoterID  string
	Approved bool
	Buffered bool
}

// NewVoteReceivedEvent creates a VoteReceivedEvent.
func NewVoteReceivedEvent(taskID, voterID string, approved, buffered bool) VoteReceivedEvent {
	return VoteReceivedEvent{
		baseEvent: newBaseEvent(TypeVoteReceived),
		TaskID:    taskID,
		VoterID:   voterID,
		Approved:  approved,
		Buffered:  buffered,
	}
}

// ConsensusResolvedEvent is emitted exactly once per session.
type ConsensusResolvedEvent struct {
	baseEvent
	TaskID    string
	Approved  bool
	TimedOut  bool
	VoteCount int
	Strategy  string
}

// NewConsensusResolvedEvent creates a ConsensusResolvedEvent.
func NewConsensusResolvedEvent(taskID string, approved, timedOut bool, voteCount int, strategy string) ConsensusResolvedEvent {
	return ConsensusResolvedEvent{
		baseEvent: newBaseEvent(TypeConsensusResolved),
		TaskID:    taskID,
		Approved:  approved,
		TimedOut:  timedOut,
		VoteCount: voteCount,
		Strategy:  strategy,
	}
}

// -----------------------------------------------------------------------------
// Persistence and Inbox Events
// -----------------------------------------------------------------------------

// SnapshotPersistFailedEvent is emitted when a write-through to the
// snapshot store fails. The in-memory registry is unaffected.
type SnapshotPersistFailedEvent struct {
	baseEvent
	TaskID  string
	Version uint64
	Error   string
}

// NewSnapshotPersistFailedEvent creates a SnapshotPersistFailedEvent.
func NewSnapshotPersistFailedEvent(taskID string, version uint64, errMsg string) SnapshotPersistFailedEvent {
	return SnapshotPersistFailedEvent{
		baseEvent: newBaseEvent(TypeSnapshotPersistFailed),
		TaskID:    taskID,
		Version:   version,
		Error:     errMsg,
	}
}

// VoteRejectedEvent is emitted when an inbox file cannot be parsed into a vote.
type VoteRejectedEvent struct {
	baseEvent
	Path   string
	Reason string
}

// NewVoteRejectedEvent creates a VoteRejectedEvent.
func NewVoteRejectedEvent(path, reason string) VoteRejectedEvent {
	return VoteRejectedEvent{
		baseEvent: newBaseEvent(TypeVoteRejected),
		Path:      path,
		Reason:    reason,
	}
}
