// Package store persists task snapshots written through by the registry
// and reads them back for start-up recovery and the tasks command.
//
// Three backends are provided:
//   - SQLiteStore: one row per task in a SQLite database (default)
//   - JSONStore: one JSON file per task, guarded by an flock(2) lock
//   - NopStore: discards writes
//
// Every backend keeps the highest snapshot version it has seen for a task
// and ignores older writes, so asynchronous write-through that completes
// out of order never regresses persisted state.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/registry"
)

// Backend names accepted by store.backend.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendNone   = "none"
)

const (
	sqliteFileName = "quorum.db"
	jsonDirName    = "snapshots"
)

// Store is a snapshot persistence backend.
type Store interface {
	registry.Persister

	// Load returns the stored snapshot for taskID or a NotFoundError.
	Load(ctx context.Context, taskID string) (registry.Snapshot, error)

	// LoadAll returns every stored snapshot ordered by creation time.
	LoadAll(ctx context.Context) ([]registry.Snapshot, error)

	// Backend returns the backend name.
	Backend() string

	Close() error
}

// Open constructs the backend selected by cfg.Store.Backend under the
// resolved data directory. baseDir resolves a relative data_dir.
func Open(cfg *config.Config, baseDir string) (Store, error) {
	dataDir := cfg.Paths.ResolveDataDir(baseDir)

	switch cfg.Store.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(filepath.Join(dataDir, sqliteFileName))
	case BackendJSON:
		return NewJSONStore(filepath.Join(dataDir, jsonDirName))
	case BackendNone:
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
