package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/registry"
)

// JSONStore keeps one indented JSON file per task in a directory. Writes
// go to a temporary file that is renamed into place while the directory
// lock is held.
type JSONStore struct {
	dir string
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore creates dir if needed and returns a store rooted there.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStoreError("create snapshot dir", err).WithBackend(BackendJSON)
	}
	return &JSONStore{dir: dir}, nil
}

// Dir returns the directory holding the snapshot files.
func (s *JSONStore) Dir() string { return s.dir }

func (s *JSONStore) Backend() string { return BackendJSON }

func (s *JSONStore) Close() error { return nil }

// path maps a task ID to a file name that cannot escape the directory.
func (s *JSONStore) path(taskID string) string {
	return filepath.Join(s.dir, url.PathEscape(taskID)+".json")
}

// WriteSnapshot stores snap unless the stored copy has the same or a newer
// version.
func (s *JSONStore) WriteSnapshot(ctx context.Context, snap registry.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStoreError("write snapshot", err).WithBackend(BackendJSON).WithTaskID(snap.TaskID)
	}

	fl := newFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return errors.NewStoreError("acquire lock", err).WithBackend(BackendJSON).WithTaskID(snap.TaskID)
	}
	defer func() { _ = fl.Unlock() }()

	target := s.path(snap.TaskID)
	if existing, err := readSnapshotFile(target); err == nil && existing.Version >= snap.Version {
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.NewStoreError("marshal snapshot", err).WithBackend(BackendJSON).WithTaskID(snap.TaskID)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.NewStoreError("write temp file", err).WithBackend(BackendJSON).WithTaskID(snap.TaskID)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return errors.NewStoreError("rename temp file", err).WithBackend(BackendJSON).WithTaskID(snap.TaskID)
	}
	return nil
}

// Load reads the snapshot for taskID.
func (s *JSONStore) Load(ctx context.Context, taskID string) (registry.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return registry.Snapshot{}, err
	}
	snap, err := readSnapshotFile(s.path(taskID))
	if os.IsNotExist(err) {
		return registry.Snapshot{}, errors.NewNotFoundError("task", taskID)
	}
	if err != nil {
		return registry.Snapshot{}, errors.NewStoreError("read snapshot", err).WithBackend(BackendJSON).WithTaskID(taskID)
	}
	return snap, nil
}

// LoadAll reads every snapshot file. Files that fail to parse are skipped.
func (s *JSONStore) LoadAll(ctx context.Context) ([]registry.Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewStoreError("read snapshot dir", err).WithBackend(BackendJSON)
	}

	var snaps []registry.Snapshot
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		snap, err := readSnapshotFile(filepath.Join(s.dir, e.Name()))
		if err != nil || snap.TaskID == "" {
			continue
		}
		snaps = append(snaps, snap)
	}
	sortSnapshots(snaps)
	return snaps, nil
}

func readSnapshotFile(path string) (registry.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return registry.Snapshot{}, err
	}
	var snap registry.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return registry.Snapshot{}, fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

// sortSnapshots orders by creation time, then task ID.
func sortSnapshots(snaps []registry.Snapshot) {
	slices.SortFunc(snaps, func(a, b registry.Snapshot) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.TaskID, b.TaskID)
	})
}
