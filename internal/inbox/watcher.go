// Package inbox turns vote files dropped into a directory into consensus
// votes.
//
// A vote file is a JSON document named *.json:
//
//	{"task_id": "t1", "voter_id": "alice", "approved": true, "confidence": 0.8}
//
// Accepted files are moved to processed/ and malformed ones to rejected/.
// Files already present when the watcher starts are processed first.
// Writers should create the file under another name and rename it into
// place, as WriteVote does.
package inbox

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
)

const (
	voteFileExt     = ".json"
	processedDir    = "processed"
	rejectedDir     = "rejected"
	defaultDebounce = 50 * time.Millisecond
)

// VoteSink receives votes read from the inbox. *consensus.Engine
// implements it.
type VoteSink interface {
	SubmitVote(taskID string, v consensus.Vote)
}

// Stats counts the files the watcher has handled.
type Stats struct {
	Processed int
	Rejected  int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithEventBus publishes inbox.vote_rejected events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(w *Watcher) { w.bus = bus }
}

// WithLogger sets the watcher's logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the watcher waits after the last event for a
// file before reading it.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher feeds vote files from a directory into a VoteSink.
type Watcher struct {
	dir      string
	sink     VoteSink
	watcher  *fsnotify.Watcher
	bus      *event.Bus
	logger   *logging.Logger
	debounce time.Duration

	// mu serializes file handling so a file seen by both the start-up scan
	// and an event is submitted once.
	mu    sync.Mutex
	stats Stats

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewWatcher creates dir and its processed/ and rejected/ subdirectories
// and begins watching dir. Call Start to process files.
func NewWatcher(dir string, sink VoteSink, opts ...Option) (*Watcher, error) {
	if sink == nil {
		panic("inbox: nil VoteSink")
	}
	for _, d := range []string{dir, filepath.Join(dir, processedDir), filepath.Join(dir, rejectedDir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, err
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		sink:     sink,
		watcher:  fw,
		logger:   logging.NopLogger(),
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("inbox")
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Start processes the files already in the directory, then handles new
// ones in the background until Stop. Start must be called at most once.
func (w *Watcher) Start() {
	w.started.Store(true)
	w.scan()
	go w.watchLoop()
}

// Stop ends the watch loop and releases the fsnotify watcher. It is safe to
// call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.done
	}
}

// Stats returns the counts of handled files.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to scan inbox", "dir", w.dir, "error", err.Error())
		return
	}
	for _, e := range entries {
		if !e.IsDir() && isVoteFile(e.Name()) {
			w.handle(filepath.Join(w.dir, e.Name()))
		}
	}
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	// Debounce events; writers that do not rename produce several per file.
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	pending := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(ev.Name) != filepath.Clean(w.dir) || !isVoteFile(filepath.Base(ev.Name)) {
				continue
			}
			pending[ev.Name] = struct{}{}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			for path := range pending {
				w.handle(path)
			}
			pending = make(map[string]struct{})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", "error", err.Error())
		}
	}
}

// handle submits the vote in path and moves the file out of the inbox.
func (w *Watcher) handle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		w.reject(path, err.Error())
		return
	}

	taskID, vote, err := ParseVoteFile(data)
	if err != nil {
		w.reject(path, err.Error())
		return
	}

	w.sink.SubmitVote(taskID, vote)
	w.stats.Processed++
	w.logger.WithTask(taskID).Info("vote accepted from inbox",
		"voter_id", vote.VoterID,
		"approved", vote.Approved,
		"file", filepath.Base(path),
	)
	w.move(path, processedDir)
}

func (w *Watcher) reject(path, reason string) {
	w.stats.Rejected++
	w.logger.Warn("vote file rejected", "file", filepath.Base(path), "reason", reason)
	if w.bus != nil {
		w.bus.Publish(event.NewVoteRejectedEvent(path, reason))
	}
	w.move(path, rejectedDir)
}

func (w *Watcher) move(path, sub string) {
	target := filepath.Join(w.dir, sub, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		// Leaving the file would resubmit it on the next scan.
		w.logger.Error("failed to move vote file", "file", path, "error", err.Error())
		_ = os.Remove(path)
	}
}

func isVoteFile(name string) bool {
	return strings.HasSuffix(name, voteFileExt) && !strings.HasPrefix(name, ".")
}
