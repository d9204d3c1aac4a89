package lifecycle

import "fmt"

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusQueued indicates the task has been assigned but no work started.
	StatusQueued Status = "queued"

	// StatusPlanning indicates the planner role is producing a plan.
	StatusPlanning Status = "planning"

	// StatusBuilding indicates the builder role is producing the change.
	StatusBuilding Status = "building"

	// StatusVerifying indicates the verifier role is checking the build.
	StatusVerifying Status = "verifying"

	// StatusReviewing indicates the reviewer role and the quorum vote are in progress.
	StatusReviewing Status = "reviewing"

	// StatusDone indicates the task passed review.
	StatusDone Status = "done"

	// StatusBlocked indicates a step failed or review was rejected.
	StatusBlocked Status = "blocked"
)

// order is the successful path through the lifecycle.
var order = []Status{
	StatusQueued,
	StatusPlanning,
	StatusBuilding,
	StatusVerifying,
	StatusReviewing,
	StatusDone,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for Done and Blocked.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusBlocked
}

// IsValid reports whether s is one of the declared statuses.
func (s Status) IsValid() bool {
	if s == StatusBlocked {
		return true
	}
	for _, st := range order {
		if st == s {
			return true
		}
	}
	return false
}

// Role returns the role that performs work while a task is in this status.
// Queued and the terminal statuses have no role.
func (s Status) Role() (Role, bool) {
	switch s {
	case StatusPlanning:
		return RolePlanner, true
	case StatusBuilding:
		return RoleBuilder, true
	case StatusVerifying:
		return RoleVerifier, true
	case StatusReviewing:
		return RoleReviewer, true
	default:
		return "", false
	}
}

// ParseStatus converts a string to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return st, nil
}

// Statuses returns every declared status in lifecycle order, Blocked last.
func Statuses() []Status {
	out := make([]Status, 0, len(order)+1)
	out = append(out, order...)
	return append(out, StatusBlocked)
}

// Next returns the status that follows current.
//
// A successful step moves one position along the linear path; a failed
// step moves to Blocked from any non-terminal status. Next panics if
// current is terminal or not a declared status: callers must stop
// advancing a task once it reaches Done or Blocked.
func Next(current Status, success bool) Status {
	if !current.IsValid() {
		panic(fmt.Sprintf("lifecycle: Next called with unknown status %q", current))
	}
	if current.IsTerminal() {
		panic(fmt.Sprintf("lifecycle: Next called on terminal status %q", current))
	}
	if !success {
		return StatusBlocked
	}
	for i, st := range order {
		if st == current {
			return order[i+1]
		}
	}
	// Unreachable: every valid non-terminal status is in order.
	panic(fmt.Sprintf("lifecycle: no successor for %q", current))
}
