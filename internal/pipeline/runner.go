package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/quorum/internal/artifact"
	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/executor"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/logging"
	"github.com/Iron-Ham/quorum/internal/registry"
)

// Runner drives tasks from registration to Done or Blocked.
type Runner struct {
	registry *registry.Registry
	engine   Consensus
	exec     Executor

	runID           string
	strategy        consensus.Strategy
	requiredVotes   int
	autoReviewers   int
	retention       time.Duration
	sandbox         Sandbox
	contextSource   ContextSource
	collector       *artifact.Collector
	taskConcurrency int
	logger          *logging.Logger
}

// NewRunner wires a runner to its registry, consensus engine and executor.
func NewRunner(reg *registry.Registry, engine Consensus, exec Executor, opts ...Option) (*Runner, error) {
	if reg == nil {
		return nil, errors.New("pipeline: registry is required")
	}
	if engine == nil {
		return nil, errors.New("pipeline: consensus engine is required")
	}
	if exec == nil {
		return nil, errors.New("pipeline: executor is required")
	}

	r := &Runner{
		registry:      reg,
		engine:        engine,
		exec:          exec,
		runID:         uuid.NewString(),
		strategy:      consensus.Majority,
		requiredVotes: 1,
		sandbox:       AllowAll{},
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.strategy.IsValid() {
		return nil, fmt.Errorf("pipeline: default strategy: %w", errors.ErrUnknownStrategy)
	}
	if r.requiredVotes < 1 {
		return nil, fmt.Errorf("pipeline: default quorum: %w", errors.ErrInvalidQuorum)
	}
	r.logger = r.logger.WithRun(r.runID).WithComponent("pipeline")
	return r, nil
}

// RunID returns the ID recorded on tasks this runner registers.
func (r *Runner) RunID() string { return r.runID }

// Recover imports persisted snapshots into the registry and returns how
// many were added. Recovered tasks resume from their recorded status.
func (r *Runner) Recover(ctx context.Context, loader SnapshotLoader) (int, error) {
	snaps, err := loader.LoadAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "load snapshots")
	}
	n := r.registry.ImportSnapshots(snaps)
	r.logger.Info("recovered snapshots", "loaded", len(snaps), "imported", n)
	return n, nil
}

// RunAll drives every task concurrently and returns their outcomes in
// input order. It returns ctx's error if the run was cancelled.
func (r *Runner) RunAll(ctx context.Context, tasks []Task) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tasks))

	p := pool.New()
	if r.taskConcurrency > 0 {
		p = p.WithMaxGoroutines(r.taskConcurrency)
	}
	for i, t := range tasks {
		p.Go(func() {
			out, err := r.RunTask(ctx, t)
			if err != nil && out.Err == nil {
				out.Err = err
			}
			outcomes[i] = out
		})
	}
	p.Wait()

	return outcomes, ctx.Err()
}

// RunTask registers t if needed and advances it until it is terminal or
// ctx ends. A task already terminal is skipped. The returned error is
// non-nil only when the task stopped before reaching a terminal status.
func (r *Runner) RunTask(ctx context.Context, t Task) (Outcome, error) {
	log := r.logger.WithTask(t.ID)

	snap, created, err := r.registry.Register(registry.TaskAssigned{
		TaskID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
		RunID:       r.runID,
	})
	if err != nil {
		return Outcome{TaskID: t.ID, Err: err}, err
	}
	if snap.Status.IsTerminal() {
		log.Info("task already finished, skipping", "status", snap.Status.String())
		return Outcome{TaskID: t.ID, Status: snap.Status, Skipped: true, Reason: snap.Error}, nil
	}
	if !created {
		log.Info("resuming task", "status", snap.Status.String())
	}

	out := Outcome{TaskID: t.ID}
	for !snap.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			out.Status, out.Err = snap.Status, err
			return out, err
		}

		step, err := r.step(ctx, t, snap)
		if err != nil {
			out.Status, out.Err = snap.Status, err
			log.Warn("task interrupted", "status", snap.Status.String(), "error", err.Error())
			return out, err
		}
		if step.consensus != nil {
			out.Consensus = step.consensus
		}
		snap = step.snap
	}

	out.Status = snap.Status
	out.Reason = snap.Error
	log.Info("task finished", "status", snap.Status.String())
	return out, nil
}

type stepResult struct {
	snap      registry.Snapshot
	consensus *consensus.Result
}

// step performs the work for snap's status and commits the next status.
// It returns an error only for interruptions that leave the status as is.
func (r *Runner) step(ctx context.Context, t Task, snap registry.Snapshot) (stepResult, error) {
	role, hasRole := snap.Status.Role()
	if !hasRole {
		// Queued has no work.
		next, err := r.commit(t.ID, snap.Status, true, "", "")
		return stepResult{snap: next}, err
	}

	if role == lifecycle.RoleReviewer {
		return r.review(ctx, t, snap)
	}

	res, err := r.execute(ctx, t, snap, role)
	if ctx.Err() != nil {
		return stepResult{}, ctx.Err()
	}
	if res.Output != "" {
		if _, setErr := r.registry.SetRoleOutput(t.ID, role, res.Output); setErr != nil {
			return stepResult{}, setErr
		}
	}
	if err != nil {
		next, cerr := r.commit(t.ID, snap.Status, false, "", fmt.Sprintf("%s failed: %v", role, err))
		return stepResult{snap: next}, cerr
	}

	if role == lifecycle.RoleBuilder {
		r.collectArtifacts(ctx, t)
	}
	next, err := r.commit(t.ID, snap.Status, true, "", "")
	return stepResult{snap: next}, err
}

// commit applies lifecycle.Next and records the summary or failure reason
// for terminal outcomes.
func (r *Runner) commit(taskID string, from lifecycle.Status, success bool, summary, reason string) (registry.Snapshot, error) {
	switch lifecycle.Next(from, success) {
	case lifecycle.StatusDone:
		return r.registry.MarkDone(taskID, summary)
	case lifecycle.StatusBlocked:
		r.logger.WithTask(taskID).Warn("task blocked", "from", from.String(), "reason", reason)
		return r.registry.MarkFailed(taskID, reason)
	default:
		return r.registry.Advance(taskID, success)
	}
}

// execute runs role for the task after the sandbox check.
func (r *Runner) execute(ctx context.Context, t Task, snap registry.Snapshot, role lifecycle.Role) (executor.Result, error) {
	req := executor.Request{
		TaskID:      t.ID,
		Role:        role,
		Title:       snap.Title,
		Description: snap.Description,
		Context:     r.buildContext(ctx, snap, role),
		WorkDir:     t.WorkDir,
		AdapterID:   t.Adapter,
	}
	if err := r.sandbox.Check(req); err != nil {
		return executor.Result{TaskID: t.ID, Role: role, Err: err}, err
	}
	return r.exec.Execute(ctx, req)
}

// buildContext joins the outputs of earlier roles with any retrieved
// context.
func (r *Runner) buildContext(ctx context.Context, snap registry.Snapshot, role lifecycle.Role) string {
	var parts []string
	for _, prior := range lifecycle.Roles() {
		if prior == role {
			break
		}
		if out := strings.TrimSpace(snap.Output(prior)); out != "" {
			parts = append(parts, fmt.Sprintf("### %s output\n\n%s", prior, out))
		}
	}

	if r.contextSource != nil {
		extra, err := r.contextSource.Retrieve(ctx, snap.TaskID, role)
		if err != nil {
			r.logger.WithTask(snap.TaskID).Warn("context retrieval failed", "role", role.String(), "error", err.Error())
		} else if extra = strings.TrimSpace(extra); extra != "" {
			parts = append(parts, "### Retrieved context\n\n"+extra)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (r *Runner) collectArtifacts(ctx context.Context, t Task) {
	if r.collector == nil || t.WorkDir == "" {
		return
	}
	log := r.logger.WithTask(t.ID)
	paths, err := r.collector.Collect(ctx, t.WorkDir)
	if err != nil {
		log.Warn("artifact collection failed", "work_dir", t.WorkDir, "error", err.Error())
		return
	}
	if len(paths) == 0 {
		return
	}
	if _, err := r.registry.AddArtifacts(t.ID, paths...); err != nil {
		log.Warn("recording artifacts failed", "count", len(paths), "error", err.Error())
	}
}
