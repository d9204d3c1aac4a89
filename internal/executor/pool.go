package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// Pool admits at most Limit concurrent adapter invocations.
//
// Callers beyond the limit block in Execute until a permit frees up or
// their context ends. Every acquired permit is released exactly once,
// whether the adapter returns, fails, panics or is cancelled.
type Pool struct {
	sem   *semaphore.Weighted
	limit int

	adapters map[string]Adapter
	order    []string

	inflight  atomic.Int64
	started   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64

	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithOrder sets the adapter preference order by ID. IDs with no
// registered adapter are skipped at selection time.
func WithOrder(ids ...string) Option {
	return func(p *Pool) { p.order = slices.Clone(ids) }
}

// WithEventBus publishes execution events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(p *Pool) { p.bus = bus }
}

// WithLogger sets the pool logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l.WithComponent("executor")
		}
	}
}

// NewPool creates a Pool with limit permits, clamped to
// [MinConcurrency, MaxConcurrency]. Adapters are preferred in the order
// given unless WithOrder says otherwise.
func NewPool(limit int, adapters []Adapter, opts ...Option) *Pool {
	limit = ClampConcurrency(limit)
	p := &Pool{
		sem:      semaphore.NewWeighted(int64(limit)),
		limit:    limit,
		adapters: make(map[string]Adapter, len(adapters)),
		logger:   logging.NopLogger(),
	}
	for _, a := range adapters {
		if a == nil {
			panic("executor: nil adapter")
		}
		if _, dup := p.adapters[a.ID()]; !dup {
			p.order = append(p.order, a.ID())
		}
		p.adapters[a.ID()] = a
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute acquires a permit, runs req on the selected adapter and releases
// the permit before returning.
//
// If the adapter fails or panics, the returned Result has Success=false
// and the error is an *errors.ExecutionError matching ErrAdapterFailed.
// If ctx ends while waiting for a permit, no adapter runs and the context
// error is returned.
func (p *Pool) Execute(ctx context.Context, req Request) (Result, error) {
	log := p.logger.WithTask(req.TaskID).WithRole(req.Role.String())

	if err := p.sem.Acquire(ctx, 1); err != nil {
		err = errors.Wrapf(errors.FromContext(err), "acquire permit for %s/%s", req.TaskID, req.Role)
		log.Debug("permit wait abandoned", "error", err.Error())
		return Result{TaskID: req.TaskID, Role: req.Role, Err: err}, err
	}
	defer p.sem.Release(1)

	adapter, err := p.selectAdapter(req.AdapterID)
	if err != nil {
		log.Warn("no adapter for execution", "override", req.AdapterID, "error", err.Error())
		return Result{TaskID: req.TaskID, Role: req.Role, Err: err}, err
	}

	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	p.started.Add(1)

	res := Result{
		TaskID:    req.TaskID,
		Role:      req.Role,
		AdapterID: adapter.ID(),
		StartedAt: time.Now(),
	}
	log = log.With("adapter", adapter.ID())
	log.Info("execution started")
	p.bus.Publish(event.NewExecutionStartedEvent(req.TaskID, req.Role, adapter.ID()))

	out, invokeErr := p.invoke(ctx, adapter, req)
	res.Duration = time.Since(res.StartedAt)
	res.Output = out.Text

	if invokeErr != nil {
		p.failed.Add(1)
		execErr := errors.NewExecutionError("invocation failed", invokeErr).
			WithTaskID(req.TaskID).
			WithRole(req.Role.String()).
			WithAdapter(adapter.ID()).
			WithRetryable(errors.IsRetryable(invokeErr))
		res.Err = execErr
		log.Log(errors.GetSeverity(execErr).Level(), "execution failed",
			"duration_ms", res.Duration.Milliseconds(),
			"retryable", execErr.IsRetryable(),
			"error", invokeErr.Error())
		p.bus.Publish(event.NewExecutionFinishedEvent(req.TaskID, req.Role, adapter.ID(), false, res.Duration, invokeErr.Error()))
		return res, execErr
	}

	p.succeeded.Add(1)
	res.Success = true
	log.Info("execution finished",
		"duration_ms", res.Duration.Milliseconds(),
		"output_bytes", len(out.Text))
	p.bus.Publish(event.NewExecutionFinishedEvent(req.TaskID, req.Role, adapter.ID(), true, res.Duration, ""))
	return res, nil
}

// invoke calls the adapter, converting a panic into an error.
func (p *Pool) invoke(ctx context.Context, a Adapter, req Request) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.WithTask(req.TaskID).Error("adapter panicked",
				"adapter", a.ID(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			out = Output{}
			err = fmt.Errorf("adapter %s panicked: %v", a.ID(), r)
		}
	}()
	out, err = a.Invoke(ctx, req)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return out, errors.FromContext(err)
}

// selectAdapter returns the override if set, else the first available
// adapter in preference order.
func (p *Pool) selectAdapter(override string) (Adapter, error) {
	if override != "" {
		a, ok := p.adapters[override]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errors.ErrUnknownAdapter, override)
		}
		if !a.Available() {
			return nil, fmt.Errorf("%w: %s is not available", errors.ErrNoAdapter, override)
		}
		return a, nil
	}
	for _, id := range p.order {
		if a, ok := p.adapters[id]; ok && a.Available() {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: tried %v", errors.ErrNoAdapter, p.order)
}

// Select reports which adapter Execute would use for override.
func (p *Pool) Select(override string) (string, error) {
	a, err := p.selectAdapter(override)
	if err != nil {
		return "", err
	}
	return a.ID(), nil
}

// Limit returns the number of permits.
func (p *Pool) Limit() int { return p.limit }

// InFlight returns the number of adapter invocations currently running.
func (p *Pool) InFlight() int { return int(p.inflight.Load()) }

// Stats returns counters since the pool was created.
func (p *Pool) Stats() Stats {
	return Stats{
		Limit:     p.limit,
		InFlight:  p.InFlight(),
		Started:   p.started.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Panicked:  p.panicked.Load(),
	}
}
