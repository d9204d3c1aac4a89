package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/errors"
)

// Manifest is a run file listing the tasks to drive.
type Manifest struct {
	// WorkDir is the default work directory for tasks that do not set one.
	WorkDir string `yaml:"work_dir,omitempty"`
	Tasks   []Task `yaml:"tasks"`
}

// LoadManifest reads and validates a manifest file. Relative work
// directories resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	return ParseManifest(data, filepath.Dir(abs))
}

// ParseManifest decodes and validates manifest YAML. Tasks without an ID
// get a ULID. baseDir resolves relative work directories.
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.NewValidationError("malformed manifest").WithCause(err)
	}
	if len(m.Tasks) == 0 {
		return nil, errors.NewValidationError("manifest has no tasks").WithField("tasks")
	}

	seen := make(map[string]int, len(m.Tasks))
	for i := range m.Tasks {
		t := &m.Tasks[i]
		field := fmt.Sprintf("tasks[%d]", i)

		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			t.ID = ulid.Make().String()
		}
		if prev, dup := seen[t.ID]; dup {
			return nil, errors.NewValidationError(fmt.Sprintf("duplicate task id (also tasks[%d])", prev)).
				WithField(field + ".id").WithValue(t.ID)
		}
		seen[t.ID] = i

		if strings.TrimSpace(t.Title) == "" {
			return nil, errors.NewValidationError("title is required").WithField(field + ".title")
		}
		if t.Strategy != "" {
			if _, err := consensus.ParseStrategy(t.Strategy); err != nil {
				return nil, errors.NewValidationError("unknown strategy").
					WithField(field + ".strategy").WithValue(t.Strategy).WithCause(err)
			}
		}
		if t.RequiredVotes < 0 {
			return nil, errors.NewValidationError("required_votes must not be negative").
				WithField(field + ".required_votes").WithValue(t.RequiredVotes)
		}

		if t.WorkDir == "" {
			t.WorkDir = m.WorkDir
		}
		if t.WorkDir != "" && !filepath.IsAbs(t.WorkDir) && baseDir != "" {
			t.WorkDir = filepath.Join(baseDir, t.WorkDir)
		}
	}
	return &m, nil
}
