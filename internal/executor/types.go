package executor

import (
	"context"
	"time"

	"github.com/Iron-Ham/quorum/internal/lifecycle"
)

// Concurrency bounds for a Pool.
const (
	MinConcurrency     = 1
	MaxConcurrency     = 32
	DefaultConcurrency = 4
)

// ClampConcurrency forces n into [MinConcurrency, MaxConcurrency].
func ClampConcurrency(n int) int {
	return min(max(n, MinConcurrency), MaxConcurrency)
}

// Request is one role execution for one task. The caller has already
// cleared it with any sandbox policy.
type Request struct {
	TaskID      string
	Role        lifecycle.Role
	Title       string
	Description string
	// Context is prior role output and any retrieved memory.
	Context string
	// WorkDir is where the adapter runs. Empty means the current directory.
	WorkDir string
	// AdapterID selects a specific adapter instead of the first available one.
	AdapterID string
}

// Output is what an adapter returns.
type Output struct {
	Text string
}

// Adapter runs one role invocation against an agent backend.
type Adapter interface {
	// ID is the adapter's configuration name, e.g. "claude".
	ID() string
	// Available reports whether the adapter can run in this environment.
	Available() bool
	// Invoke runs the request and must return promptly once ctx is done.
	Invoke(ctx context.Context, req Request) (Output, error)
}

// Result describes a finished execution, successful or not.
type Result struct {
	TaskID    string
	Role      lifecycle.Role
	AdapterID string
	Output    string
	Success   bool
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Limit     int
	InFlight  int
	Started   int64
	Succeeded int64
	Failed    int64
	Panicked  int64
}
