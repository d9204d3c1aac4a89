package consensus

import (
	"slices"
	"time"
)

// Vote is a single reviewer's verdict on a task's artifact.
type Vote struct {
	VoterID    string  `json:"voter_id"`
	Approved   bool    `json:"approved"`
	Confidence float64 `json:"confidence"`
	Comment    string  `json:"comment,omitempty"`
}

// Weight is the vote's confidence clamped below at zero. NaN counts as zero.
// There is no upper bound.
func (v Vote) Weight() float64 {
	if !(v.Confidence > 0) {
		return 0
	}
	return v.Confidence
}

// Result is the single outcome of a consensus session.
type Result struct {
	TaskID        string    `json:"task_id"`
	ArtifactType  string    `json:"artifact_type"`
	Approved      bool      `json:"approved"`
	Votes         []Vote    `json:"votes"`
	Strategy      Strategy  `json:"strategy"`
	RequiredVotes int       `json:"required_votes"`
	TimedOut      bool      `json:"timed_out"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// Clone returns a copy of r that shares no memory with it.
func (r Result) Clone() Result {
	r.Votes = slices.Clone(r.Votes)
	return r
}

// Phase is where a session is in its lifecycle.
type Phase string

const (
	// PhaseNone means no vote or open request has been seen.
	PhaseNone Phase = ""
	// PhaseBuffering holds votes that arrived before the session opened.
	PhaseBuffering Phase = "buffering"
	// PhaseOpen accepts votes and resolves once quorum is met or time runs out.
	PhaseOpen Phase = "open"
	// PhaseResolved has emitted its result and ignores further input.
	PhaseResolved Phase = "resolved"
)

// String returns the phase name, "none" for PhaseNone.
func (p Phase) String() string {
	if p == PhaseNone {
		return "none"
	}
	return string(p)
}
