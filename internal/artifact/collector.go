// Package artifact lists the files a task produced in its work directory.
package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Iron-Ham/quorum/internal/config"
)

// DefaultMaxFiles caps how many paths one collection returns.
const DefaultMaxFiles = 1000

// Collector matches files under a root against include and exclude globs.
// Patterns use doublestar syntax and are matched against slash-separated
// paths relative to the root.
type Collector struct {
	include  []string
	exclude  []string
	maxFiles int
}

// NewCollector validates the patterns and returns a collector. An empty
// include list matches every file.
func NewCollector(include, exclude []string) (*Collector, error) {
	if len(include) == 0 {
		include = []string{"**/*"}
	}
	for _, p := range slices.Concat(include, exclude) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &Collector{
		include:  slices.Clone(include),
		exclude:  slices.Clone(exclude),
		maxFiles: DefaultMaxFiles,
	}, nil
}

// FromConfig builds a collector from the artifacts section.
func FromConfig(cfg config.ArtifactsConfig) (*Collector, error) {
	return NewCollector(cfg.Include, cfg.Exclude)
}

// SetMaxFiles changes the result cap. Values below one are ignored.
func (c *Collector) SetMaxFiles(n int) {
	if n > 0 {
		c.maxFiles = n
	}
}

// Collect returns the sorted, de-duplicated relative paths of regular
// files under root that match an include pattern and no exclude pattern.
// At most the configured maximum is returned.
func (c *Collector) Collect(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat artifact root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact root %s is not a directory", root)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	for _, pattern := range c.include {
		err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.Type().IsRegular() || c.excluded(path) {
				return nil
			}
			seen[path] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	if len(paths) > c.maxFiles {
		paths = paths[:c.maxFiles]
	}
	return paths, nil
}

func (c *Collector) excluded(path string) bool {
	for _, pattern := range c.exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
