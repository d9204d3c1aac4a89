package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/executor"
)

func TestRootSandbox_Check(t *testing.T) {
	root := t.TempDir()
	sb, err := NewRootSandbox(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		workDir string
		allowed bool
	}{
		{"root itself", root, true},
		{"nested", filepath.Join(root, "a", "b"), true},
		{"dot-dot prefix name", filepath.Join(root, "..foo"), true},
		{"sibling", filepath.Join(filepath.Dir(root), "other"), false},
		{"escape", filepath.Join(root, "..", "x"), false},
		{"parent", filepath.Dir(root), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sb.Check(executor.Request{WorkDir: tt.workDir})
			if tt.allowed && err != nil {
				t.Errorf("Check(%s) = %v, want allowed", tt.workDir, err)
			}
			if !tt.allowed && !errors.Is(err, errors.ErrSandboxDenied) {
				t.Errorf("Check(%s) = %v, want ErrSandboxDenied", tt.workDir, err)
			}
		})
	}
}

func TestRootSandbox_EmptyWorkDirUsesCwd(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	sb, _ := NewRootSandbox(wd)
	if err := sb.Check(executor.Request{}); err != nil {
		t.Errorf("Check(cwd) = %v", err)
	}

	other, _ := NewRootSandbox(t.TempDir())
	if err := other.Check(executor.Request{}); !errors.Is(err, errors.ErrSandboxDenied) {
		t.Errorf("Check(cwd outside root) = %v", err)
	}
}

func TestAllowAll(t *testing.T) {
	if err := (AllowAll{}).Check(executor.Request{WorkDir: "/anywhere"}); err != nil {
		t.Errorf("AllowAll.Check() = %v", err)
	}
}
