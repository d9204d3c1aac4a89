package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/quorum/internal/adapter"
	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/registry"
)

// review opens the task's consensus session, runs any automatic
// reviewers, and waits for the result.
func (r *Runner) review(ctx context.Context, t Task, snap registry.Snapshot) (stepResult, error) {
	log := r.logger.WithTask(t.ID)
	strategy, required := r.quorumFor(t)
	artifactType := t.ArtifactType
	if artifactType == "" {
		artifactType = DefaultArtifactType
	}

	if err := r.engine.OpenSession(t.ID, artifactType, required, strategy); err != nil {
		next, cerr := r.commit(t.ID, snap.Status, false, "", fmt.Sprintf("open consensus session: %v", err))
		return stepResult{snap: next}, cerr
	}

	if r.autoReviewers > 0 {
		r.runReviewers(ctx, t, snap)
	}

	log.Info("awaiting consensus", "strategy", strategy.String(), "required_votes", required)
	res, err := r.engine.Await(ctx, t.ID)
	if err != nil {
		return stepResult{}, err
	}
	if r.retention > 0 {
		if n := r.engine.Prune(r.retention); n > 0 {
			log.Debug("pruned resolved sessions", "count", n)
		}
	}

	summary, reason := describeResult(res)
	next, err := r.commit(t.ID, snap.Status, res.Approved, summary, reason)
	return stepResult{snap: next, consensus: &res}, err
}

// quorumFor returns the task's strategy and quorum, falling back to the
// runner defaults. Manifest validation has already rejected bad strategies.
func (r *Runner) quorumFor(t Task) (consensus.Strategy, int) {
	strategy, required := r.strategy, r.requiredVotes
	if t.Strategy != "" {
		strategy = consensus.Strategy(t.Strategy)
	}
	if t.RequiredVotes > 0 {
		required = t.RequiredVotes
	}
	return strategy, required
}

// runReviewers executes the reviewer role autoReviewers times in parallel
// and submits each parsed verdict as a vote as soon as it is available.
// The combined reviewer output is recorded on the task.
func (r *Runner) runReviewers(ctx context.Context, t Task, snap registry.Snapshot) {
	log := r.logger.WithTask(t.ID).WithRole(lifecycle.RoleReviewer.String())
	outputs := make([]string, r.autoReviewers)

	p := pool.New()
	for i := range r.autoReviewers {
		p.Go(func() {
			res, err := r.execute(ctx, t, snap, lifecycle.RoleReviewer)
			if err != nil {
				log.Warn("automatic reviewer failed", "reviewer", i+1, "error", err.Error())
				return
			}
			voter := fmt.Sprintf("%s-reviewer-%d", res.AdapterID, i+1)
			outputs[i] = fmt.Sprintf("### %s\n\n%s", voter, strings.TrimSpace(res.Output))

			verdict, err := adapter.ParseVerdict(res.Output)
			if err != nil {
				log.Warn("reviewer output has no usable verdict", "voter_id", voter, "error", err.Error())
				return
			}
			r.engine.SubmitVote(t.ID, consensus.Vote{
				VoterID:    voter,
				Approved:   verdict.Approved,
				Confidence: verdict.Confidence,
				Comment:    verdict.Comment,
			})
		})
	}
	p.Wait()

	var parts []string
	for _, o := range outputs {
		if o != "" {
			parts = append(parts, o)
		}
	}
	if len(parts) > 0 {
		if _, err := r.registry.SetRoleOutput(t.ID, lifecycle.RoleReviewer, strings.Join(parts, "\n\n")); err != nil {
			log.Warn("failed to record reviewer output", "error", err.Error())
		}
	}
}

// describeResult renders the Done summary or the Blocked reason.
func describeResult(res consensus.Result) (summary, reason string) {
	approvals := 0
	for _, v := range res.Votes {
		if v.Approved {
			approvals++
		}
	}
	tally := fmt.Sprintf("%d of %d votes approved, %d required", approvals, len(res.Votes), res.RequiredVotes)

	if res.TimedOut {
		tally += ", timed out"
	}

	switch {
	case res.Approved:
		return fmt.Sprintf("approved by %s consensus (%s)", res.Strategy, tally), ""
	case res.TimedOut:
		return "", fmt.Sprintf("consensus not reached before the deadline (%s)", tally)
	default:
		return "", fmt.Sprintf("rejected by %s consensus (%s)", res.Strategy, tally)
	}
}
