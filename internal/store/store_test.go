package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/registry"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(id string, version uint64, status lifecycle.Status) registry.Snapshot {
	return registry.Snapshot{
		TaskID:    id,
		Title:     "task " + id,
		Status:    status,
		CreatedAt: base,
		UpdatedAt: base.Add(time.Duration(version) * time.Second),
		RunID:     "run-1",
		Version:   version,
	}
}

// backends returns a fresh instance of every persistent backend.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	js, err := NewJSONStore(filepath.Join(dir, "json"))
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	sq, err := NewSQLiteStore(filepath.Join(dir, "sqlite", "quorum.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Store{BackendJSON: js, BackendSQLite: sq}
}

func TestStore_WriteAndLoad(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := snapshot("t1", 3, lifecycle.StatusBuilding)
			want.PlanOutput = "1. do it"
			want.Artifacts = []string{"main.go"}

			if err := s.WriteSnapshot(ctx, want); err != nil {
				t.Fatalf("WriteSnapshot() error = %v", err)
			}
			got, err := s.Load(ctx, "t1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Version != 3 || got.Status != lifecycle.StatusBuilding || got.PlanOutput != "1. do it" {
				t.Errorf("Load() = %+v", got)
			}
			if len(got.Artifacts) != 1 || got.Artifacts[0] != "main.go" {
				t.Errorf("Artifacts = %v", got.Artifacts)
			}
			if !got.CreatedAt.Equal(want.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
			}
		})
	}
}

func TestStore_IgnoresStaleVersions(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.WriteSnapshot(ctx, snapshot("t1", 5, lifecycle.StatusReviewing)); err != nil {
				t.Fatalf("WriteSnapshot(v5) error = %v", err)
			}
			if err := s.WriteSnapshot(ctx, snapshot("t1", 2, lifecycle.StatusPlanning)); err != nil {
				t.Fatalf("WriteSnapshot(v2) error = %v", err)
			}
			if err := s.WriteSnapshot(ctx, snapshot("t1", 5, lifecycle.StatusBlocked)); err != nil {
				t.Fatalf("WriteSnapshot(v5 again) error = %v", err)
			}

			got, err := s.Load(ctx, "t1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Version != 5 || got.Status != lifecycle.StatusReviewing {
				t.Errorf("Load() = v%d %s, want v5 reviewing", got.Version, got.Status)
			}

			if err := s.WriteSnapshot(ctx, snapshot("t1", 6, lifecycle.StatusDone)); err != nil {
				t.Fatalf("WriteSnapshot(v6) error = %v", err)
			}
			got, _ = s.Load(ctx, "t1")
			if got.Version != 6 || got.Status != lifecycle.StatusDone {
				t.Errorf("Load() = v%d %s, want v6 done", got.Version, got.Status)
			}
		})
	}
}

func TestStore_ConcurrentOutOfOrderWrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const n = 20
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for v := n; v >= 1; v-- {
				wg.Add(1)
				go func(v uint64) {
					defer wg.Done()
					errs <- s.WriteSnapshot(ctx, snapshot("t1", v, lifecycle.StatusBuilding))
				}(uint64(v))
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("WriteSnapshot() error = %v", err)
				}
			}

			got, err := s.Load(ctx, "t1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Version != n {
				t.Errorf("Version = %d, want %d", got.Version, n)
			}
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	all := backends(t)
	all[BackendNone] = NopStore{}
	for name, s := range all {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "nope")
			if !errors.Is(err, errors.ErrTaskNotFound) {
				t.Errorf("Load() error = %v, want ErrTaskNotFound", err)
			}
		})
	}
}

func TestStore_LoadAllOrdered(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i, id := range []string{"c", "a", "b"} {
				snap := snapshot(id, 1, lifecycle.StatusQueued)
				snap.CreatedAt = base.Add(time.Duration(2-i) * time.Minute)
				if err := s.WriteSnapshot(ctx, snap); err != nil {
					t.Fatalf("WriteSnapshot(%s) error = %v", id, err)
				}
			}
			snaps, err := s.LoadAll(ctx)
			if err != nil {
				t.Fatalf("LoadAll() error = %v", err)
			}
			var ids []string
			for _, snap := range snaps {
				ids = append(ids, snap.TaskID)
			}
			if fmt.Sprint(ids) != "[b a c]" {
				t.Errorf("LoadAll() order = %v, want [b a c]", ids)
			}
		})
	}
}

func TestJSONStore_UnsafeTaskID(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.WriteSnapshot(ctx, snapshot("../escape/x", 1, lifecycle.StatusQueued)); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape")); !os.IsNotExist(err) {
		t.Error("task ID escaped the store directory")
	}
	got, err := s.Load(ctx, "../escape/x")
	if err != nil || got.TaskID != "../escape/x" {
		t.Errorf("Load() = %+v, %v", got, err)
	}
}

func TestJSONStore_LoadAllSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteSnapshot(context.Background(), snapshot("ok", 1, lifecycle.StatusQueued)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	snaps, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].TaskID != "ok" {
		t.Errorf("LoadAll() = %v", snaps)
	}
}

func TestJSONStore_CanceledContext(t *testing.T) {
	s, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.WriteSnapshot(ctx, snapshot("t1", 1, lifecycle.StatusQueued))
	var storeErr *errors.StoreError
	if !errors.As(err, &storeErr) || storeErr.Backend != BackendJSON {
		t.Errorf("WriteSnapshot() error = %v, want StoreError", err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{BackendSQLite, BackendSQLite, false},
		{BackendJSON, BackendJSON, false},
		{BackendNone, BackendNone, false},
		{"redis", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.Default()
			cfg.Store.Backend = tt.backend
			cfg.Paths.DataDir = "data"

			s, err := Open(cfg, dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Open() error = nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() { _ = s.Close() }()
			if s.Backend() != tt.want {
				t.Errorf("Backend() = %s, want %s", s.Backend(), tt.want)
			}
		})
	}
}

func TestOpen_SQLiteLocation(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = "data"

	s, err := Open(cfg, dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	sq, ok := s.(*SQLiteStore)
	if !ok {
		t.Fatalf("Open() = %T, want *SQLiteStore", s)
	}
	if want := filepath.Join(dir, "data", "quorum.db"); sq.Path() != want {
		t.Errorf("Path() = %s, want %s", sq.Path(), want)
	}
}

func TestRegistryWriteThrough(t *testing.T) {
	s, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reg := registry.New(registry.WithPersister(s))
	if _, _, err := reg.Register(registry.TaskAssigned{TaskID: "t1", Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Transition("t1", lifecycle.StatusPlanning); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.MarkDone("t1", "shipped"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got, err := s.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want, _ := reg.Get("t1")
	if got.Version != want.Version || got.Status != lifecycle.StatusDone || got.Summary != "shipped" {
		t.Errorf("persisted = v%d %s %q, want v%d done", got.Version, got.Status, got.Summary, want.Version)
	}
}
