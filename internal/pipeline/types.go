package pipeline

import (
	"context"
	"time"

	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/executor"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/registry"
)

// DefaultArtifactType labels consensus sessions for tasks that do not set one.
const DefaultArtifactType = "change"

// Task is one manifest entry.
type Task struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	WorkDir     string `yaml:"work_dir,omitempty"`

	// Adapter pins every role execution to one adapter.
	Adapter string `yaml:"adapter,omitempty"`

	// Strategy and RequiredVotes override the runner's consensus defaults.
	Strategy      string `yaml:"strategy,omitempty"`
	RequiredVotes int    `yaml:"required_votes,omitempty"`
	ArtifactType  string `yaml:"artifact_type,omitempty"`
}

// Outcome is what RunTask reports for one task.
type Outcome struct {
	TaskID string
	Status lifecycle.Status

	// Skipped is set when the task was already terminal, for example after
	// recovery from a previous run.
	Skipped bool

	// Consensus is the review result, if the task reached one.
	Consensus *consensus.Result

	// Reason explains a Blocked status.
	Reason string

	// Err is set when the task stopped early without reaching a terminal
	// status, typically because the run was cancelled.
	Err error
}

// Executor runs one role request. *executor.Pool implements it.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) (executor.Result, error)
}

// Consensus is the subset of *consensus.Engine the runner uses.
type Consensus interface {
	OpenSession(taskID, artifactType string, requiredVotes int, strategy consensus.Strategy) error
	SubmitVote(taskID string, v consensus.Vote)
	Await(ctx context.Context, taskID string) (consensus.Result, error)
	Prune(age time.Duration) int
}

// SnapshotLoader supplies persisted snapshots for recovery. Every store
// backend implements it.
type SnapshotLoader interface {
	LoadAll(ctx context.Context) ([]registry.Snapshot, error)
}

// ContextSource supplies extra context for a role, such as retrieved
// memory. An empty string adds nothing.
type ContextSource interface {
	Retrieve(ctx context.Context, taskID string, role lifecycle.Role) (string, error)
}

// ContextSourceFunc adapts a function to ContextSource.
type ContextSourceFunc func(ctx context.Context, taskID string, role lifecycle.Role) (string, error)

// Retrieve calls f.
func (f ContextSourceFunc) Retrieve(ctx context.Context, taskID string, role lifecycle.Role) (string, error) {
	return f(ctx, taskID, role)
}
