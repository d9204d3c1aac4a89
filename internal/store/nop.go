package store

import (
	"context"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/registry"
)

// NopStore discards every write and stores nothing.
type NopStore struct{}

var _ Store = NopStore{}

func (NopStore) WriteSnapshot(context.Context, registry.Snapshot) error { return nil }

func (NopStore) Load(_ context.Context, taskID string) (registry.Snapshot, error) {
	return registry.Snapshot{}, errors.NewNotFoundError("task", taskID)
}

func (NopStore) LoadAll(context.Context) ([]registry.Snapshot, error) { return nil, nil }

func (NopStore) Backend() string { return BackendNone }

func (NopStore) Close() error { return nil }
