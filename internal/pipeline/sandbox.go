package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/executor"
)

// Sandbox decides whether a request may run. Denials wrap
// errors.ErrSandboxDenied.
type Sandbox interface {
	Check(req executor.Request) error
}

// AllowAll permits every request.
type AllowAll struct{}

// Check always returns nil.
func (AllowAll) Check(executor.Request) error { return nil }

// RootSandbox permits requests whose work directory lies under a root.
// An empty work directory means the process's current directory.
type RootSandbox struct {
	root string
}

// NewRootSandbox returns a sandbox confined to root.
func NewRootSandbox(root string) (*RootSandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve sandbox root")
	}
	return &RootSandbox{root: abs}, nil
}

// Root returns the absolute sandbox root.
func (s *RootSandbox) Root() string { return s.root }

// Check rejects work directories outside the root.
func (s *RootSandbox) Check(req executor.Request) error {
	dir := req.WorkDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "resolve work dir")
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrap(err, "resolve work dir")
	}

	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is outside %s", errors.ErrSandboxDenied, abs, s.root)
	}
	return nil
}
