package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/quorum/internal/errors"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
work_dir: service
tasks:
  - id: retries
    title: Add retries
    description: Use exponential backoff.
    strategy: unanimous
    required_votes: 2
  - title: Document the retry policy
    work_dir: /abs/docs
    adapter: codex
`)
	m, err := ParseManifest(data, "/repo")
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if len(m.Tasks) != 2 {
		t.Fatalf("got %d tasks", len(m.Tasks))
	}

	first := m.Tasks[0]
	if first.ID != "retries" || first.Strategy != "unanimous" || first.RequiredVotes != 2 {
		t.Errorf("first = %+v", first)
	}
	if first.WorkDir != filepath.Join("/repo", "service") {
		t.Errorf("first.WorkDir = %s", first.WorkDir)
	}

	second := m.Tasks[1]
	if len(second.ID) != 26 {
		t.Errorf("generated ID = %q, want a ULID", second.ID)
	}
	if second.WorkDir != "/abs/docs" || second.Adapter != "codex" {
		t.Errorf("second = %+v", second)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"malformed", "tasks: [", ""},
		{"empty", "tasks: []", "tasks"},
		{"missing title", "tasks:\n  - id: a\n", "tasks[0].title"},
		{"duplicate id", "tasks:\n  - {id: a, title: x}\n  - {id: a, title: y}\n", "tasks[1].id"},
		{"bad strategy", "tasks:\n  - {title: x, strategy: plurality}\n", "tasks[0].strategy"},
		{"negative quorum", "tasks:\n  - {title: x, required_votes: -1}\n", "tasks[0].required_votes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data), "")
			var vErr *errors.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.field)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte("tasks:\n  - {id: a, title: x, work_dir: sub}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.Tasks[0].WorkDir != filepath.Join(dir, "sub") {
		t.Errorf("WorkDir = %s", m.Tasks[0].WorkDir)
	}

	if _, err := LoadManifest(filepath.Join(dir, "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read manifest") {
		t.Errorf("LoadManifest(missing) error = %v", err)
	}
}
