package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/quorum/internal/executor"
)

// maxStderrInError is how much of a failing command's stderr is kept in
// the returned error.
const maxStderrInError = 2000

// CLI runs a one-shot agent CLI with the prompt on stdin and returns its
// stdout. Build one with NewClaude or NewCodex.
type CLI struct {
	id      string
	command string
	args    []string

	// lookPath is exec.LookPath, replaced in tests.
	lookPath func(string) (string, error)
	// waitDelay bounds how long output pipes may stay open after the
	// process is killed on cancellation.
	waitDelay time.Duration
}

// ID returns the adapter's configuration name.
func (c *CLI) ID() string { return c.id }

// Available reports whether the command resolves on PATH.
func (c *CLI) Available() bool {
	_, err := c.lookPath(c.command)
	return err == nil
}

// Invoke runs the command once. Cancelling ctx kills the process.
func (c *CLI) Invoke(ctx context.Context, req executor.Request) (executor.Output, error) {
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(BuildPrompt(req))
	cmd.WaitDelay = c.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := executor.Output{Text: stdout.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s: %w", c.id, ctxErr)
	}
	if err != nil {
		return out, fmt.Errorf("%s %s: %w%s", c.command, strings.Join(c.args, " "), err, stderrSuffix(stderr.String()))
	}
	return out, nil
}

func stderrSuffix(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	if len(stderr) > maxStderrInError {
		stderr = "..." + stderr[len(stderr)-maxStderrInError:]
	}
	return ": " + stderr
}
