package registry

import (
	"context"
	"slices"
	"time"

	"github.com/Iron-Ham/quorum/internal/lifecycle"
)

// Snapshot is the state of one task at a point in time. Values returned by
// the Registry are copies; mutating them has no effect on the registry.
type Snapshot struct {
	TaskID       string           `json:"task_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	Status       lifecycle.Status `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	RunID        string           `json:"run_id,omitempty"`
	PlanOutput   string           `json:"plan_output,omitempty"`
	BuildOutput  string           `json:"build_output,omitempty"`
	VerifyOutput string           `json:"verify_output,omitempty"`
	ReviewOutput string           `json:"review_output,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	Error        string           `json:"error,omitempty"`
	Artifacts    []string         `json:"artifacts,omitempty"`

	// Version increases by one on every registry mutation. Stores use it to
	// discard writes that arrive out of order.
	Version uint64 `json:"version"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	s.Artifacts = slices.Clone(s.Artifacts)
	return s
}

// Output returns the recorded output for role, or "" if none.
func (s Snapshot) Output(role lifecycle.Role) string {
	switch role {
	case lifecycle.RolePlanner:
		return s.PlanOutput
	case lifecycle.RoleBuilder:
		return s.BuildOutput
	case lifecycle.RoleVerifier:
		return s.VerifyOutput
	case lifecycle.RoleReviewer:
		return s.ReviewOutput
	default:
		return ""
	}
}

func (s *Snapshot) setOutput(role lifecycle.Role, text string) {
	switch role {
	case lifecycle.RolePlanner:
		s.PlanOutput = text
	case lifecycle.RoleBuilder:
		s.BuildOutput = text
	case lifecycle.RoleVerifier:
		s.VerifyOutput = text
	case lifecycle.RoleReviewer:
		s.ReviewOutput = text
	}
}

// TaskAssigned is the message that introduces a task to the registry.
type TaskAssigned struct {
	TaskID      string
	Title       string
	Description string
	RunID       string
}

// Persister is the write-through port. Implementations must tolerate
// concurrent calls and may receive snapshots for one task out of order.
type Persister interface {
	WriteSnapshot(ctx context.Context, snap Snapshot) error
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(ctx context.Context, snap Snapshot) error

// WriteSnapshot calls f(ctx, snap).
func (f PersisterFunc) WriteSnapshot(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}
