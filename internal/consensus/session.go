package consensus

import (
	"slices"
	"time"
)

// MessageKind tags the input to Reduce.
type MessageKind int

const (
	// MsgOpen requests a session for an artifact.
	MsgOpen MessageKind = iota
	// MsgVote delivers one vote.
	MsgVote
	// MsgTimeout reports that the session deadline passed.
	MsgTimeout
)

func (k MessageKind) String() string {
	switch k {
	case MsgOpen:
		return "open"
	case MsgVote:
		return "vote"
	case MsgTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Message is one input to a session. Only the fields for its Kind are read.
type Message struct {
	Kind MessageKind

	// MsgOpen
	ArtifactType  string
	RequiredVotes int
	Strategy      Strategy

	// MsgVote
	Vote Vote
}

// Session is the aggregation state for one task's vote.
type Session struct {
	TaskID        string
	ArtifactType  string
	RequiredVotes int
	Strategy      Strategy
	Votes         []Vote
	Phase         Phase
	OpenedAt      time.Time
	ResolvedAt    time.Time
}

// Reduce applies msg to s and returns the next state plus the result, if
// this message resolved the session. It never mutates s, and it returns a
// non-nil result at most once over any sequence of messages: a resolved
// session ignores everything.
//
// Open parameters are assumed valid; the Engine checks them.
func Reduce(s Session, msg Message, now time.Time) (Session, *Result) {
	switch msg.Kind {
	case MsgOpen:
		switch s.Phase {
		case PhaseNone, PhaseBuffering:
			next := s
			next.ArtifactType = msg.ArtifactType
			next.RequiredVotes = msg.RequiredVotes
			next.Strategy = msg.Strategy
			next.Phase = PhaseOpen
			next.OpenedAt = now
			return next.tryResolve(false, now)
		}

	case MsgVote:
		switch s.Phase {
		case PhaseNone, PhaseBuffering:
			next := s
			next.Votes = append(slices.Clip(s.Votes), msg.Vote)
			next.Phase = PhaseBuffering
			return next, nil
		case PhaseOpen:
			next := s
			next.Votes = append(slices.Clip(s.Votes), msg.Vote)
			return next.tryResolve(false, now)
		}

	case MsgTimeout:
		if s.Phase == PhaseOpen {
			return s.tryResolve(true, now)
		}
	}
	return s, nil
}

// tryResolve resolves an open session if quorum is met or force is set.
func (s Session) tryResolve(force bool, now time.Time) (Session, *Result) {
	if !force && len(s.Votes) < s.RequiredVotes {
		return s, nil
	}
	s.Phase = PhaseResolved
	s.ResolvedAt = now
	votes := make([]Vote, len(s.Votes))
	copy(votes, s.Votes)
	return s, &Result{
		TaskID:        s.TaskID,
		ArtifactType:  s.ArtifactType,
		Approved:      s.Strategy.Decide(s.Votes),
		Votes:         votes,
		Strategy:      s.Strategy,
		RequiredVotes: s.RequiredVotes,
		TimedOut:      force,
		ResolvedAt:    now,
	}
}
