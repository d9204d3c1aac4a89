package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// DefaultTimeout is how long an open session waits for votes.
const DefaultTimeout = 5 * time.Minute

// Engine runs one consensus session per task ID.
//
// Every input for a task is applied under that task's lock, in arrival
// order, through Reduce. Inputs for different tasks do not contend beyond
// the short map lookup. Events and results for a task are queued under
// the task lock and published after it is released, in the order the
// inputs were applied.
type Engine struct {
	mu    sync.Mutex
	slots map[string]*slot

	scheduler Scheduler
	timeout   time.Duration
	onResult  func(Result)
	bus       *event.Bus
	logger    *logging.Logger
	now       func() time.Time
}

type slot struct {
	mu        sync.Mutex
	session   Session
	stopTimer func() bool
	result    *Result
	done      chan struct{}

	// outbox holds event deliveries in apply order. The goroutine that
	// finds draining unset publishes them; others only append.
	outbox   []func()
	draining bool

	// waiters counts Await calls; guarded by Engine.mu.
	waiters int
	// dead is set under both locks when the slot leaves the map.
	dead bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the timer used for session deadlines.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithTimeout sets the session deadline measured from OpenSession.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithResultHandler registers a function called once per resolved session.
// It runs on the goroutine delivering the task's events, after the
// consensus.resolved event.
func WithResultHandler(fn func(Result)) Option {
	return func(e *Engine) { e.onResult = fn }
}

// WithEventBus publishes session events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.WithComponent("consensus")
		}
	}
}

// WithClock overrides time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine with wall-clock timeouts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		slots:     make(map[string]*slot),
		scheduler: WallClock,
		timeout:   DefaultTimeout,
		logger:    logging.NopLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenSession opens the session for taskID. Votes already buffered for the
// task count immediately, which may resolve the session before this call
// returns. Opening an open or resolved session does nothing.
//
// An unknown strategy or a quorum below one is rejected and no session is
// created.
func (e *Engine) OpenSession(taskID, artifactType string, requiredVotes int, strategy Strategy) error {
	if !strategy.IsValid() {
		return errors.NewConsensusError("cannot open session", errors.ErrUnknownStrategy).
			WithTaskID(taskID).WithStrategy(strategy.String())
	}
	if requiredVotes < 1 {
		return errors.NewConsensusError("cannot open session", errors.ErrInvalidQuorum).
			WithTaskID(taskID).WithStrategy(strategy.String())
	}

	s := e.lockSlot(taskID, true)
	before := s.session.Phase
	next, res := Reduce(s.session, Message{
		Kind:          MsgOpen,
		ArtifactType:  artifactType,
		RequiredVotes: requiredVotes,
		Strategy:      strategy,
	}, e.now())
	s.session = next
	opened := before != PhaseOpen && before != PhaseResolved
	if opened && res == nil {
		s.stopTimer = e.scheduler.AfterFunc(e.timeout, func() { e.Timeout(taskID) })
	}
	if res != nil {
		s.resolve(res)
	}
	drain := false
	if opened {
		drain = s.enqueue(func() {
			e.bus.Publish(event.NewConsensusOpenedEvent(taskID, artifactType, strategy.String(), requiredVotes))
		})
		if res != nil {
			s.enqueue(e.emitter(res))
		}
	}
	s.mu.Unlock()

	if !opened {
		e.logger.WithTask(taskID).Debug("session already opened", "phase", before.String())
		return nil
	}
	e.logger.WithTask(taskID).Info("consensus session opened",
		"artifact_type", artifactType,
		"strategy", strategy.String(),
		"required_votes", requiredVotes,
		"buffered_votes", len(next.Votes))
	if drain {
		s.drain()
	}
	return nil
}

// SubmitVote records a vote for taskID. Votes for a task with no session
// are buffered; votes for a resolved session are dropped.
func (e *Engine) SubmitVote(taskID string, v Vote) {
	s := e.lockSlot(taskID, true)
	before := s.session.Phase
	next, res := Reduce(s.session, Message{Kind: MsgVote, Vote: v}, e.now())
	s.session = next
	if res != nil {
		s.resolve(res)
	}
	buffered := next.Phase == PhaseBuffering
	drain := false
	if before != PhaseResolved {
		drain = s.enqueue(func() {
			e.bus.Publish(event.NewVoteReceivedEvent(taskID, v.VoterID, v.Approved, buffered))
		})
		if res != nil {
			s.enqueue(e.emitter(res))
		}
	}
	s.mu.Unlock()

	log := e.logger.WithTask(taskID)
	if before == PhaseResolved {
		log.Debug("late vote ignored", "voter_id", v.VoterID)
		return
	}
	log.Debug("vote received",
		"voter_id", v.VoterID,
		"approved", v.Approved,
		"confidence", v.Confidence,
		"buffered", buffered)
	if drain {
		s.drain()
	}
}

// Timeout forces an open session to resolve with the votes it has. It is
// what the session timer calls, and tests may call it directly. It does
// nothing for unknown, buffering or resolved sessions.
func (e *Engine) Timeout(taskID string) {
	s := e.lockSlot(taskID, false)
	if s == nil {
		return
	}
	next, res := Reduce(s.session, Message{Kind: MsgTimeout}, e.now())
	s.session = next
	drain := false
	if res != nil {
		s.resolve(res)
		drain = s.enqueue(e.emitter(res))
	}
	s.mu.Unlock()

	if res == nil {
		return
	}
	e.logger.WithTask(taskID).Warn("consensus session timed out", "votes", len(res.Votes))
	if drain {
		s.drain()
	}
}

// resolve records res and wakes waiters. Must be called with s.mu held.
func (s *slot) resolve(res *Result) {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.result = res
	close(s.done)
}

// enqueue appends a delivery and reports whether the caller must drain.
// Must be called with s.mu held.
func (s *slot) enqueue(fn func()) bool {
	s.outbox = append(s.outbox, fn)
	if s.draining {
		return false
	}
	s.draining = true
	return true
}

// drain runs queued deliveries until the outbox is empty. Deliveries
// queued by handlers it calls run on this goroutine, after the current one.
func (s *slot) drain() {
	for {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		fn := s.outbox[0]
		s.outbox[0] = nil
		s.outbox = s.outbox[1:]
		s.mu.Unlock()
		fn()
	}
}

// emitter returns the delivery for a resolved session.
func (e *Engine) emitter(res *Result) func() {
	return func() {
		e.logger.WithTask(res.TaskID).Info("consensus resolved",
			"approved", res.Approved,
			"votes", len(res.Votes),
			"strategy", res.Strategy.String(),
			"timed_out", res.TimedOut)
		e.bus.Publish(event.NewConsensusResolvedEvent(res.TaskID, res.Approved, res.TimedOut, len(res.Votes), res.Strategy.String()))
		if e.onResult != nil {
			e.onResult(res.Clone())
		}
	}
}

// slot returns the slot for taskID, creating it if create is set.
func (e *Engine) slot(taskID string, create bool) *slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[taskID]
	if !ok && create {
		s = newSlot(taskID)
		e.slots[taskID] = s
	}
	return s
}

// lockSlot returns taskID's slot with its lock held, retrying if the slot
// was removed between lookup and locking.
func (e *Engine) lockSlot(taskID string, create bool) *slot {
	for {
		s := e.slot(taskID, create)
		if s == nil {
			return nil
		}
		s.mu.Lock()
		if !s.dead {
			return s
		}
		s.mu.Unlock()
	}
}

func newSlot(taskID string) *slot {
	return &slot{
		session: Session{TaskID: taskID},
		done:    make(chan struct{}),
	}
}

// Await blocks until taskID's session resolves or ctx ends. It may be
// called before the session exists; a task known only to abandoned
// waiters is forgotten when the last of them returns.
func (e *Engine) Await(ctx context.Context, taskID string) (Result, error) {
	e.mu.Lock()
	s, ok := e.slots[taskID]
	if !ok {
		s = newSlot(taskID)
		e.slots[taskID] = s
	}
	s.waiters++
	e.mu.Unlock()
	defer e.release(taskID, s)

	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result.Clone(), nil
	case <-ctx.Done():
		return Result{}, errors.Wrapf(errors.FromContext(ctx.Err()), "await consensus for %s", taskID)
	}
}

// release drops a waiter and forgets the slot if nothing but waiters
// ever touched it.
func (e *Engine) release(taskID string, s *slot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s.waiters--
	if s.waiters > 0 || e.slots[taskID] != s {
		return
	}
	s.mu.Lock()
	if s.session.Phase == PhaseNone {
		s.dead = true
		delete(e.slots, taskID)
	}
	s.mu.Unlock()
}

// Result returns the session's result if it has resolved.
func (e *Engine) Result(taskID string) (Result, bool) {
	s := e.slot(taskID, false)
	if s == nil {
		return Result{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return s.result.Clone(), true
}

// Phase returns the session's phase, PhaseNone if the task is unknown.
func (e *Engine) Phase(taskID string) Phase {
	s := e.slot(taskID, false)
	if s == nil {
		return PhaseNone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Phase
}

// Session returns a copy of the session state for taskID. An unknown
// task yields a NotFoundError matching errors.ErrSessionNotFound.
func (e *Engine) Session(taskID string) (Session, error) {
	s := e.slot(taskID, false)
	if s == nil {
		return Session{}, errors.NewNotFoundError("session", taskID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.session
	out.Votes = append([]Vote(nil), s.session.Votes...)
	return out, nil
}

// Prune forgets sessions resolved more than age ago and returns how many
// were removed. A vote for a pruned task starts a new buffering session.
func (e *Engine) Prune(age time.Duration) int {
	cutoff := e.now().Add(-age)

	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, s := range e.slots {
		s.mu.Lock()
		if s.session.Phase == PhaseResolved && s.session.ResolvedAt.Before(cutoff) {
			s.dead = true
			delete(e.slots, id)
			removed++
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		e.logger.Debug("pruned resolved sessions", "count", removed)
	}
	return removed
}

// Len returns the number of tracked sessions, resolved ones included.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.slots)
}

// Stop cancels every pending session timer. Sessions stay open and can
// still resolve by quorum or an explicit Timeout.
func (e *Engine) Stop() {
	e.mu.Lock()
	slots := make([]*slot, 0, len(e.slots))
	for _, s := range e.slots {
		slots = append(slots, s)
	}
	e.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.stopTimer != nil {
			s.stopTimer()
			s.stopTimer = nil
		}
		s.mu.Unlock()
	}
}
