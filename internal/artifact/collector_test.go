package artifact

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/testutil"
)

// writeTree creates files under root whose contents are their own paths.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f] = f
	}
	testutil.WriteFiles(t, root, m)
}

func TestCollector_Collect(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"main.go",
		"internal/app/app.go",
		"internal/app/app_test.go",
		"README.md",
		".git/HEAD",
		".quorum/quorum.log",
	)

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{
			name:    "defaults",
			include: config.Default().Artifacts.Include,
			exclude: config.Default().Artifacts.Exclude,
			want:    []string{"README.md", "internal/app/app.go", "internal/app/app_test.go", "main.go"},
		},
		{
			name:    "go sources without tests",
			include: []string{"**/*.go"},
			exclude: []string{"**/*_test.go"},
			want:    []string{"internal/app/app.go", "main.go"},
		},
		{
			name:    "overlapping includes are de-duplicated",
			include: []string{"*.go", "**/*.go", "main.go"},
			exclude: []string{"internal/**"},
			want:    []string{"main.go"},
		},
		{
			name:    "empty include matches everything",
			include: nil,
			exclude: []string{".git/**"},
			want:    []string{".quorum/quorum.log", "README.md", "internal/app/app.go", "internal/app/app_test.go", "main.go"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCollector(tt.include, tt.exclude)
			if err != nil {
				t.Fatalf("NewCollector() error = %v", err)
			}
			got, err := c.Collect(context.Background(), root)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Collect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollector_MaxFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b.txt", "c.txt")

	c, err := NewCollector(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.SetMaxFiles(2)
	got, err := c.Collect(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"a.txt", "b.txt"}) {
		t.Errorf("Collect() = %v", got)
	}
}

func TestNewCollector_InvalidPattern(t *testing.T) {
	if _, err := NewCollector([]string{"[unclosed"}, nil); err == nil {
		t.Error("NewCollector() accepted an invalid include")
	}
	if _, err := FromConfig(config.ArtifactsConfig{Exclude: []string{"{a,b"}}); err == nil {
		t.Error("FromConfig() accepted an invalid exclude")
	}
}

func TestCollector_BadRoot(t *testing.T) {
	c, _ := NewCollector(nil, nil)
	if _, err := c.Collect(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Collect() on a missing root should fail")
	}

	file := filepath.Join(t.TempDir(), "f")
	writeTree(t, filepath.Dir(file), "f")
	if _, err := c.Collect(context.Background(), file); err == nil {
		t.Error("Collect() on a file should fail")
	}
}

func TestCollector_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt")
	c, _ := NewCollector(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Collect(ctx, root); err == nil {
		t.Error("Collect() with canceled context should fail")
	}
}
