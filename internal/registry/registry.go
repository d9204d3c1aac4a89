package registry

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/logging"
)

// DefaultPersistTimeout bounds a single write-through call.
const DefaultPersistTimeout = 10 * time.Second

// Registry is the in-memory table of task snapshots.
//
// The table itself is guarded by an RWMutex held only for lookups and
// inserts; each task has its own mutex, so mutations to different tasks
// never contend. Every mutation is written through to the Persister on a
// background goroutine; failures are logged and never returned.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	persister      Persister
	persistTimeout time.Duration
	bus            *event.Bus
	logger         *logging.Logger
	now            func() time.Time

	// pending counts write-through goroutines; idle is closed when it
	// drops to zero.
	pendingMu sync.Mutex
	pending   int
	idle      chan struct{}
}

type entry struct {
	mu   sync.Mutex
	snap Snapshot
}

// Option configures a Registry.
type Option func(*Registry)

// WithPersister sets the write-through port. Without one, snapshots are
// kept in memory only.
func WithPersister(p Persister) Option {
	return func(r *Registry) { r.persister = p }
}

// WithPersistTimeout bounds each write-through call.
func WithPersistTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.persistTimeout = d
		}
	}
}

// WithEventBus publishes registration and status change events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.WithComponent("registry")
		}
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:        make(map[string]*entry),
		persistTimeout: DefaultPersistTimeout,
		logger:         logging.NopLogger(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a Queued snapshot for msg.TaskID if none exists.
// Re-registering a known task changes nothing and returns the existing
// snapshot with created=false.
func (r *Registry) Register(msg TaskAssigned) (snap Snapshot, created bool, err error) {
	if msg.TaskID == "" {
		return Snapshot{}, false, errors.NewValidationError("task ID is required").WithField("task_id")
	}

	r.mu.Lock()
	if e, ok := r.entries[msg.TaskID]; ok {
		r.mu.Unlock()
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.snap.Clone(), false, nil
	}

	now := r.now()
	e := &entry{snap: Snapshot{
		TaskID:      msg.TaskID,
		Title:       msg.Title,
		Description: msg.Description,
		RunID:       msg.RunID,
		Status:      lifecycle.StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}}
	r.entries[msg.TaskID] = e
	snap = e.snap.Clone()
	r.mu.Unlock()

	r.logger.WithTask(msg.TaskID).Info("task registered", "title", msg.Title)
	r.bus.Publish(event.NewTaskRegisteredEvent(msg.TaskID, msg.Title, msg.RunID))
	r.persist(snap)
	return snap, true, nil
}

// Transition sets the task's status.
func (r *Registry) Transition(taskID string, status lifecycle.Status) (Snapshot, error) {
	if !status.IsValid() {
		return Snapshot{}, fmt.Errorf("transition %s to %q: %w", taskID, status, errors.ErrInvalidStatus)
	}
	return r.update(taskID, func(s *Snapshot) error {
		s.Status = status
		return nil
	})
}

// Advance applies lifecycle.Next to the task's current status. It refuses
// to advance a terminal task instead of panicking.
func (r *Registry) Advance(taskID string, success bool) (Snapshot, error) {
	return r.update(taskID, func(s *Snapshot) error {
		if s.Status.IsTerminal() {
			return fmt.Errorf("advance %s from terminal status %s: %w", taskID, s.Status, errors.ErrInvalidStatus)
		}
		s.Status = lifecycle.Next(s.Status, success)
		return nil
	})
}

// SetRoleOutput records the output text produced by role.
func (r *Registry) SetRoleOutput(taskID string, role lifecycle.Role, text string) (Snapshot, error) {
	if !role.IsValid() {
		return Snapshot{}, fmt.Errorf("set output for %s role %q: %w", taskID, role, errors.ErrInvalidRole)
	}
	return r.update(taskID, func(s *Snapshot) error {
		s.setOutput(role, text)
		return nil
	})
}

// MarkDone moves the task to Done and records summary.
func (r *Registry) MarkDone(taskID, summary string) (Snapshot, error) {
	return r.update(taskID, func(s *Snapshot) error {
		s.Status = lifecycle.StatusDone
		s.Summary = summary
		return nil
	})
}

// MarkFailed moves the task to Blocked and records the failure reason.
func (r *Registry) MarkFailed(taskID, reason string) (Snapshot, error) {
	return r.update(taskID, func(s *Snapshot) error {
		s.Status = lifecycle.StatusBlocked
		s.Error = reason
		return nil
	})
}

// AddArtifacts appends paths not already recorded, preserving order.
func (r *Registry) AddArtifacts(taskID string, paths ...string) (Snapshot, error) {
	return r.update(taskID, func(s *Snapshot) error {
		for _, p := range paths {
			if !slices.Contains(s.Artifacts, p) {
				s.Artifacts = append(s.Artifacts, p)
			}
		}
		return nil
	})
}

// update applies fn to a private copy of the task's snapshot under the
// task's lock and commits it only if fn succeeds.
func (r *Registry) update(taskID string, fn func(*Snapshot) error) (Snapshot, error) {
	e, ok := r.lookup(taskID)
	if !ok {
		return Snapshot{}, errors.NewNotFoundError("task", taskID)
	}

	e.mu.Lock()
	next := e.snap.Clone()
	from := next.Status
	if err := fn(&next); err != nil {
		e.mu.Unlock()
		return Snapshot{}, err
	}
	next.UpdatedAt = r.now()
	next.Version = e.snap.Version + 1
	e.snap = next
	out := next.Clone()
	e.mu.Unlock()

	if from != out.Status {
		r.logger.WithTask(taskID).Info("task status changed",
			"from", from.String(),
			"to", out.Status.String())
		r.bus.Publish(event.NewTaskStatusChangedEvent(taskID, from, out.Status))
	}
	r.persist(out)
	return out, nil
}

func (r *Registry) lookup(taskID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[taskID]
	return e, ok
}

// persist writes snap through to the Persister without blocking the caller.
func (r *Registry) persist(snap Snapshot) {
	if r.persister == nil {
		return
	}
	r.pendingMu.Lock()
	if r.pending == 0 {
		r.idle = make(chan struct{})
	}
	r.pending++
	r.pendingMu.Unlock()

	go func() {
		defer r.persistDone()

		ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
		defer cancel()

		if err := r.persister.WriteSnapshot(ctx, snap); err != nil {
			r.logger.WithTask(snap.TaskID).Log(errors.GetSeverity(err).Level(), "snapshot write-through failed",
				"version", snap.Version,
				"error", err.Error())
			r.bus.Publish(event.NewSnapshotPersistFailedEvent(snap.TaskID, snap.Version, err.Error()))
		}
	}()
}

func (r *Registry) persistDone() {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	r.pending--
	if r.pending == 0 {
		close(r.idle)
	}
}

// Get returns a copy of the task's snapshot.
func (r *Registry) Get(taskID string) (Snapshot, bool) {
	e, ok := r.lookup(taskID)
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone(), true
}

// List returns copies of all snapshots ordered by creation time, then ID.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.snap.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ImportSnapshots adds snapshots whose task ID is not yet registered and
// returns how many were added. Tasks already in memory are never
// overwritten. Imported snapshots are not written back to the Persister.
func (r *Registry) ImportSnapshots(snaps []Snapshot) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, s := range snaps {
		if s.TaskID == "" {
			continue
		}
		if _, ok := r.entries[s.TaskID]; ok {
			continue
		}
		r.entries[s.TaskID] = &entry{snap: s.Clone()}
		added++
	}
	if added > 0 {
		r.logger.Info("imported snapshots", "added", added, "offered", len(snaps))
	}
	return added
}

// Flush waits until no write-through call is in flight, or ctx ends. It
// may run concurrently with mutations; writes started while it waits
// extend the wait.
func (r *Registry) Flush(ctx context.Context) error {
	r.pendingMu.Lock()
	if r.pending == 0 {
		r.pendingMu.Unlock()
		return nil
	}
	idle := r.idle
	r.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
