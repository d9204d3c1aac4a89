// Package pipeline drives tasks through the lifecycle.
//
// A [Runner] owns no task state itself. For each task it reads the current
// snapshot from the [registry.Registry], dispatches the role for that
// status to the bounded executor, records the output and applies
// [lifecycle.Next]. At Reviewing it opens a consensus session, optionally
// runs automatic reviewers whose verdicts become votes, and waits for the
// session's single result before deciding between Done and Blocked.
//
// Tasks come from a YAML run manifest:
//
//	work_dir: ./service
//	tasks:
//	  - id: retries
//	    title: Add retry with backoff to the HTTP client
//	    required_votes: 2
//	  - title: Document the retry policy
//
// # Usage
//
//	m, _ := pipeline.LoadManifest("run.yaml")
//	r, _ := pipeline.NewRunner(reg, engine, pool,
//	    pipeline.WithDefaults(consensus.Majority, 3),
//	    pipeline.WithAutoReviewers(1),
//	)
//	outcomes, err := r.RunAll(ctx, m.Tasks)
package pipeline
