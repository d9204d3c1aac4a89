package cmd

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/quorum/internal/adapter"
	"github.com/Iron-Ham/quorum/internal/artifact"
	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/executor"
	"github.com/Iron-Ham/quorum/internal/inbox"
	"github.com/Iron-Ham/quorum/internal/logging"
	"github.com/Iron-Ham/quorum/internal/pipeline"
	"github.com/Iron-Ham/quorum/internal/registry"
	"github.com/Iron-Ham/quorum/internal/store"
)

// appOptions are the command-line overrides applied on top of config.
type appOptions struct {
	concurrency   int // 0 keeps pool.max_concurrency
	autoReviewers int // negative keeps consensus.auto_reviewers
	dryRun        bool
	noInbox       bool
}

// app is the set of components wired for one run.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	store    store.Store
	registry *registry.Registry
	engine   *consensus.Engine
	pool     *executor.Pool
	runner   *pipeline.Runner
	inbox    *inbox.Watcher
}

// newApp builds every component from cfg. baseDir resolves relative paths.
// The inbox watcher is created but not started.
func newApp(cfg *config.Config, baseDir string, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	dataDir := cfg.Paths.ResolveDataDir(baseDir)
	a.logger = logging.NopLogger()
	if cfg.Logging.Enabled {
		a.logger, err = logging.NewLoggerWithRotation(dataDir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return a, fmt.Errorf("open log: %w", err)
		}
	}
	a.bus = event.NewBus(event.WithLogger(a.logger))

	a.store, err = store.Open(cfg, baseDir)
	if err != nil {
		return a, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	a.registry = registry.New(
		registry.WithPersister(a.store),
		registry.WithPersistTimeout(cfg.Store.PersistTimeout()),
		registry.WithEventBus(a.bus),
		registry.WithLogger(a.logger),
	)
	a.engine = consensus.NewEngine(
		consensus.WithTimeout(cfg.Consensus.Timeout()),
		consensus.WithEventBus(a.bus),
		consensus.WithLogger(a.logger),
	)

	concurrency := cfg.Pool.MaxConcurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	a.pool = executor.NewPool(concurrency, adapter.FromConfig(cfg, opts.dryRun),
		executor.WithEventBus(a.bus),
		executor.WithLogger(a.logger),
	)

	strategy, err := consensus.ParseStrategy(cfg.Consensus.Strategy)
	if err != nil {
		return a, err
	}
	collector, err := artifact.FromConfig(cfg.Artifacts)
	if err != nil {
		return a, err
	}
	autoReviewers := cfg.Consensus.AutoReviewers
	if opts.autoReviewers >= 0 {
		autoReviewers = opts.autoReviewers
	}

	runnerOpts := []pipeline.Option{
		pipeline.WithDefaults(strategy, cfg.Consensus.RequiredVotes),
		pipeline.WithAutoReviewers(autoReviewers),
		pipeline.WithRetention(cfg.Consensus.Retention()),
		pipeline.WithCollector(collector),
		pipeline.WithLogger(a.logger),
	}
	if root := cfg.ResolveSandboxRoot(baseDir); root != "" {
		sb, err := pipeline.NewRootSandbox(root)
		if err != nil {
			return a, err
		}
		runnerOpts = append(runnerOpts, pipeline.WithSandbox(sb))
	}
	a.runner, err = pipeline.NewRunner(a.registry, a.engine, a.pool, runnerOpts...)
	if err != nil {
		return a, err
	}

	if cfg.Inbox.Enabled && !opts.noInbox {
		a.inbox, err = inbox.NewWatcher(cfg.ResolveInboxDir(baseDir), a.engine,
			inbox.WithEventBus(a.bus),
			inbox.WithLogger(a.logger),
		)
		if err != nil {
			return a, fmt.Errorf("start inbox: %w", err)
		}
	}
	return a, nil
}

// Close stops background work, waits for pending snapshot writes and
// releases the store and log.
func (a *app) Close() {
	if a.inbox != nil {
		a.inbox.Stop()
	}
	if a.engine != nil {
		a.engine.Stop()
	}
	if a.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Store.PersistTimeout())
		if err := a.registry.Flush(ctx); err != nil {
			a.logger.Warn("pending snapshot writes abandoned", "error", err.Error())
		}
		cancel()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}
