package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <manifest.yaml>",
	Short: "Drive the tasks in a manifest to done or blocked",
	Long: `Run registers every task in the manifest and drives each one through
planning, building, verifying and reviewing. A task is done only when its
consensus session approves it; votes come from automatic reviewers and
from files dropped into the vote inbox (see 'quorum vote').

Tasks already finished in an earlier run are skipped; unfinished ones
resume from their recorded status.

Examples:
  # Run with configured adapters
  quorum run tasks.yaml

  # Dry run with the echo adapter and one auto reviewer
  quorum run tasks.yaml --dry-run --auto-reviewers 1`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runConcurrency   int
	runAutoReviewers int
	runDryRun        bool
	runNoInbox       bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max concurrent agent executions (default: pool.max_concurrency)")
	runCmd.Flags().IntVar(&runAutoReviewers, "auto-reviewers", -1, "reviewer executions that vote automatically (default: consensus.auto_reviewers)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use the echo adapter instead of agent CLIs")
	runCmd.Flags().BoolVar(&runNoInbox, "no-inbox", false, "do not watch the vote inbox")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	manifest, err := pipeline.LoadManifest(args[0])
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	a, err := newApp(cfg, cwd, appOptions{
		concurrency:   runConcurrency,
		autoReviewers: runAutoReviewers,
		dryRun:        runDryRun,
		noInbox:       runNoInbox,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &syncWriter{w: cmd.OutOrStdout()}
	subscribeProgress(a.bus, out)

	recovered, err := a.runner.Recover(ctx, a.store)
	if err != nil {
		return err
	}
	printf(out, "%s run %s: %d tasks, %d recovered from %s store\n",
		color.New(color.Bold).Sprint("quorum"), a.runner.RunID(), len(manifest.Tasks), recovered, a.store.Backend())
	if a.inbox != nil {
		a.inbox.Start()
		printf(out, "watching %s for votes\n", a.inbox.Dir())
	}

	outcomes, runErr := a.runner.RunAll(ctx, manifest.Tasks)
	blocked := printSummary(out, outcomes)

	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if blocked > 0 {
		return fmt.Errorf("%d of %d tasks blocked", blocked, len(outcomes))
	}
	return nil
}

// subscribeProgress prints a line for every status change and consensus
// result.
func subscribeProgress(bus *event.Bus, w io.Writer) {
	bus.Subscribe(event.TypeTaskStatusChanged, func(e event.Event) {
		ev := e.(event.TaskStatusChangedEvent)
		printf(w, "%s %-24s %s → %s\n",
			statusMarker(ev.To),
			truncate(ev.TaskID, 24),
			ev.From,
			statusColor(ev.To).Sprint(ev.To))
	})
	bus.Subscribe(event.TypeConsensusResolved, func(e event.Event) {
		ev := e.(event.ConsensusResolvedEvent)
		verdict := color.GreenString("approved")
		if !ev.Approved {
			verdict = color.RedString("rejected")
		}
		if ev.TimedOut {
			verdict += color.YellowString(" (timed out)")
		}
		printf(w, "  %-24s consensus %s with %d votes (%s)\n", truncate(ev.TaskID, 24), verdict, ev.VoteCount, ev.Strategy)
	})
}

// printSummary prints one line per outcome and returns the blocked count.
func printSummary(w io.Writer, outcomes []pipeline.Outcome) int {
	printf(w, "\n%s\n", color.New(color.Bold).Sprint("Summary"))
	blocked := 0
	for _, o := range outcomes {
		line := fmt.Sprintf("%s %-24s %s", statusMarker(o.Status), truncate(o.TaskID, 24), statusColor(o.Status).Sprint(o.Status))
		switch {
		case o.Skipped:
			line += color.HiBlackString(" (already finished)")
		case o.Err != nil:
			line += color.YellowString(" (interrupted: %v)", o.Err)
		case o.Reason != "":
			line += " " + o.Reason
		}
		printf(w, "%s\n", line)
		if o.Status == lifecycle.StatusBlocked {
			blocked++
		}
	}
	return blocked
}

// runContext is cmd.Context or Background when the command runs outside
// Execute, as in tests.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// syncWriter serializes writes from event handlers running on task
// goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
