package pipeline

import (
	"time"

	"github.com/Iron-Ham/quorum/internal/artifact"
	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// Option configures a Runner.
type Option func(*Runner)

// WithRunID sets the run ID recorded on every registered task. By default
// a random UUID is used.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// WithDefaults sets the consensus strategy and quorum for tasks that do
// not override them.
func WithDefaults(strategy consensus.Strategy, requiredVotes int) Option {
	return func(r *Runner) {
		r.strategy = strategy
		r.requiredVotes = requiredVotes
	}
}

// WithAutoReviewers runs n reviewer executions at Reviewing and casts their
// verdicts as votes. Zero leaves voting to external voters.
func WithAutoReviewers(n int) Option {
	return func(r *Runner) { r.autoReviewers = max(n, 0) }
}

// WithRetention prunes resolved consensus sessions older than d after
// each review. Zero keeps them.
func WithRetention(d time.Duration) Option {
	return func(r *Runner) { r.retention = d }
}

// WithSandbox sets the policy checked before every execution.
func WithSandbox(s Sandbox) Option {
	return func(r *Runner) {
		if s != nil {
			r.sandbox = s
		}
	}
}

// WithContextSource adds retrieved context to every role prompt.
func WithContextSource(src ContextSource) Option {
	return func(r *Runner) { r.contextSource = src }
}

// WithCollector records the files in a task's work directory as artifacts
// after the builder role succeeds.
func WithCollector(c *artifact.Collector) Option {
	return func(r *Runner) { r.collector = c }
}

// WithTaskConcurrency bounds how many tasks RunAll drives at once. Role
// executions stay bounded by the executor. Zero means no bound.
func WithTaskConcurrency(n int) Option {
	return func(r *Runner) { r.taskConcurrency = max(n, 0) }
}

// WithLogger sets the runner's logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}
