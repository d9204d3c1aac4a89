package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/registry"
)

// SQLiteStore keeps one row per task. The full snapshot is stored as a JSON
// document next to the columns used for ordering and version checks.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewStoreError("create data dir", err).WithBackend(BackendSQLite)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, errors.NewStoreError("open database", err).WithBackend(BackendSQLite)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError("migrate", err).WithBackend(BackendSQLite)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		task_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		status TEXT NOT NULL,
		run_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		data_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at, task_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Backend() string { return BackendSQLite }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteSnapshot upserts snap. A row with the same or a newer version is
// left untouched.
func (s *SQLiteStore) WriteSnapshot(ctx context.Context, snap registry.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.NewStoreError("marshal snapshot", err).WithBackend(BackendSQLite).WithTaskID(snap.TaskID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (task_id, version, status, run_id, created_at, updated_at, data_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			version = excluded.version,
			status = excluded.status,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at,
			data_json = excluded.data_json
		WHERE excluded.version > snapshots.version
	`, snap.TaskID, int64(snap.Version), string(snap.Status), snap.RunID,
		snap.CreatedAt.UnixNano(), snap.UpdatedAt.UnixNano(), string(data))
	if err != nil {
		return errors.NewStoreError("upsert snapshot", err).WithBackend(BackendSQLite).WithTaskID(snap.TaskID)
	}
	return nil
}

// Load returns the snapshot for taskID.
func (s *SQLiteStore) Load(ctx context.Context, taskID string) (registry.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data_json FROM snapshots WHERE task_id = ?`, taskID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Snapshot{}, errors.NewNotFoundError("task", taskID)
	}
	if err != nil {
		return registry.Snapshot{}, errors.NewStoreError("query snapshot", err).WithBackend(BackendSQLite).WithTaskID(taskID)
	}

	var snap registry.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return registry.Snapshot{}, errors.NewStoreError("unmarshal snapshot", err).WithBackend(BackendSQLite).WithTaskID(taskID)
	}
	return snap, nil
}

// LoadAll returns every snapshot ordered by creation time. Rows whose
// document fails to parse are skipped.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]registry.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data_json FROM snapshots ORDER BY created_at, task_id`)
	if err != nil {
		return nil, errors.NewStoreError("query snapshots", err).WithBackend(BackendSQLite)
	}
	defer func() { _ = rows.Close() }()

	var snaps []registry.Snapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewStoreError("scan snapshot", err).WithBackend(BackendSQLite)
		}
		var snap registry.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate snapshots", err).WithBackend(BackendSQLite)
	}
	return snaps, nil
}
