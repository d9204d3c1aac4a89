package adapter

import (
	"os/exec"
	"time"

	"github.com/Iron-Ham/quorum/internal/config"
)

// ClaudeID is the configuration name of the Claude Code adapter.
const ClaudeID = "claude"

// NewClaude returns an adapter that runs `claude --print` once per request.
func NewClaude(cfg config.ClaudeConfig) *CLI {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	args := []string{"--print"}
	if cfg.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	return &CLI{
		id:        ClaudeID,
		command:   command,
		args:      args,
		lookPath:  exec.LookPath,
		waitDelay: 5 * time.Second,
	}
}
