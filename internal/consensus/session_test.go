package consensus

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func open(required int, s Strategy) Message {
	return Message{Kind: MsgOpen, ArtifactType: "code", RequiredVotes: required, Strategy: s}
}

func vote(approved bool, confidence float64) Message {
	return Message{Kind: MsgVote, Vote: Vote{VoterID: "v", Approved: approved, Confidence: confidence}}
}

var timeout = Message{Kind: MsgTimeout}

// run feeds msgs to a fresh session and collects every emitted result.
func run(msgs ...Message) (Session, []Result) {
	s := Session{TaskID: "t"}
	var results []Result
	for _, m := range msgs {
		var res *Result
		s, res = Reduce(s, m, t0)
		if res != nil {
			results = append(results, *res)
		}
	}
	return s, results
}

func TestReduce_MajorityScenario(t *testing.T) {
	s, results := run(open(3, Majority), vote(true, 1), vote(false, 1), vote(true, 1))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if !r.Approved || len(r.Votes) != 3 || r.TimedOut {
		t.Errorf("result = %+v, want approved with 3 votes", r)
	}
	if s.Phase != PhaseResolved {
		t.Errorf("Phase = %s, want resolved", s.Phase)
	}
}

func TestReduce_WeightedScenario(t *testing.T) {
	_, results := run(open(2, Weighted), vote(true, -1), vote(false, 0.5))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Approved {
		t.Error("approved = true, want false (0.0 vs 0.5)")
	}
	if results[0].Votes[0].Confidence != -1 {
		t.Error("recorded vote was altered")
	}
}

func TestReduce_SingleVoteQuorum(t *testing.T) {
	for _, st := range Strategies() {
		t.Run(st.String(), func(t *testing.T) {
			_, results := run(open(1, st), vote(true, 1))
			if len(results) != 1 || !results[0].Approved {
				t.Errorf("results = %+v, want one approval", results)
			}
		})
	}
}

func TestReduce_TimeoutWithNoVotes(t *testing.T) {
	for _, st := range Strategies() {
		t.Run(st.String(), func(t *testing.T) {
			_, results := run(open(3, st), timeout)
			if len(results) != 1 {
				t.Fatalf("results = %d, want 1", len(results))
			}
			r := results[0]
			if r.Approved {
				t.Error("approved with zero votes")
			}
			if r.Votes == nil || len(r.Votes) != 0 {
				t.Errorf("Votes = %#v, want empty non-nil list", r.Votes)
			}
			if !r.TimedOut {
				t.Error("TimedOut = false")
			}
		})
	}
}

func TestReduce_TimeoutWithPartialVotes(t *testing.T) {
	_, results := run(open(5, Majority), vote(true, 1), vote(true, 1), vote(false, 1), timeout)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if !results[0].Approved || len(results[0].Votes) != 3 {
		t.Errorf("result = %+v, want approved with 3 votes", results[0])
	}
}

func TestReduce_BufferedVotesFoldIntoSession(t *testing.T) {
	s, results := run(vote(true, 1), vote(false, 1))
	if s.Phase != PhaseBuffering || len(s.Votes) != 2 {
		t.Fatalf("session = %+v, want buffering with 2 votes", s)
	}
	if len(results) != 0 {
		t.Fatal("buffering session resolved")
	}

	s, res := Reduce(s, open(3, Majority), t0)
	if res != nil {
		t.Fatal("resolved with 2 of 3 votes")
	}
	if s.Phase != PhaseOpen {
		t.Errorf("Phase = %s, want open", s.Phase)
	}

	s, res = Reduce(s, vote(true, 1), t0)
	if res == nil {
		t.Fatal("no result after third vote")
	}
	if res.Votes[0].Approved != true || res.Votes[1].Approved != false {
		t.Errorf("buffered order not preserved: %+v", res.Votes)
	}
}

func TestReduce_BufferedQuorumResolvesOnOpen(t *testing.T) {
	_, results := run(vote(true, 1), vote(true, 1), vote(false, 1), open(2, Unanimous))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Approved {
		t.Error("unanimous approved despite a buffered rejection")
	}
	if len(results[0].Votes) != 3 {
		t.Errorf("Votes = %d, want all 3 buffered votes", len(results[0].Votes))
	}
}

func TestReduce_UnanimousWaitsForQuorum(t *testing.T) {
	s, results := run(open(3, Unanimous), vote(false, 1))
	if len(results) != 0 {
		t.Fatal("unanimous short-circuited on a rejection")
	}
	if s.Phase != PhaseOpen {
		t.Errorf("Phase = %s, want open", s.Phase)
	}
}

func TestReduce_ResolvedIgnoresEverything(t *testing.T) {
	s, results := run(open(1, Majority), vote(true, 1), vote(false, 1), timeout, open(5, Weighted))
	if len(results) != 1 {
		t.Fatalf("results = %d, want exactly 1", len(results))
	}
	if len(s.Votes) != 1 || s.Strategy != Majority || s.RequiredVotes != 1 {
		t.Errorf("resolved session changed: %+v", s)
	}
}

func TestReduce_TimeoutIgnoredUnlessOpen(t *testing.T) {
	s, results := run(timeout)
	if len(results) != 0 || s.Phase != PhaseNone {
		t.Errorf("timeout on empty session: phase %s, %d results", s.Phase, len(results))
	}
	s, results = run(vote(true, 1), timeout)
	if len(results) != 0 || s.Phase != PhaseBuffering {
		t.Errorf("timeout on buffering session: phase %s, %d results", s.Phase, len(results))
	}
}

func TestReduce_DuplicateOpenIsNoop(t *testing.T) {
	s, _ := run(open(3, Majority), open(1, Weighted))
	if s.RequiredVotes != 3 || s.Strategy != Majority {
		t.Errorf("second open changed the session: %+v", s)
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s, _ := run(open(3, Majority), vote(true, 1))
	votes := make([]Vote, len(s.Votes), 8)
	copy(votes, s.Votes)
	s.Votes = votes

	a, _ := Reduce(s, vote(false, 1), t0)
	b, _ := Reduce(s, vote(true, 2), t0)

	if len(s.Votes) != 1 {
		t.Errorf("input votes changed: %+v", s.Votes)
	}
	if a.Votes[1].Approved || !b.Votes[1].Approved {
		t.Errorf("derived sessions share storage: a=%+v b=%+v", a.Votes, b.Votes)
	}
}

func TestReduce_ExactlyOnceUnderAllOrderings(t *testing.T) {
	msgs := []Message{open(2, Majority), vote(true, 1), vote(true, 1), vote(false, 1), timeout}

	var permute func([]Message, int)
	count := 0
	permute = func(m []Message, k int) {
		if k == len(m) {
			count++
			s, results := run(m...)
			sawOpen := false
			for _, msg := range m {
				if msg.Kind == MsgOpen {
					sawOpen = true
				}
			}
			if sawOpen && len(results) != 1 {
				t.Errorf("ordering %v produced %d results", kinds(m), len(results))
			}
			if s.Phase != PhaseResolved {
				t.Errorf("ordering %v ended in %s", kinds(m), s.Phase)
			}
			return
		}
		for i := k; i < len(m); i++ {
			m[k], m[i] = m[i], m[k]
			permute(m, k+1)
			m[k], m[i] = m[i], m[k]
		}
	}
	permute(msgs, 0)
	if count != 120 {
		t.Fatalf("checked %d orderings, want 120", count)
	}
}

func kinds(m []Message) []string {
	out := make([]string, len(m))
	for i, msg := range m {
		out[i] = msg.Kind.String()
	}
	return out
}
