package adapter

import (
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/quorum/internal/config"
)

// CodexID is the configuration name of the Codex adapter.
const CodexID = "codex"

// NewCodex returns an adapter that runs `codex exec` once per request,
// reading the prompt from stdin.
func NewCodex(cfg config.CodexConfig) *CLI {
	command := cfg.Command
	if command == "" {
		command = "codex"
	}
	args := []string{"exec"}
	args = append(args, codexApprovalFlags(cfg.ApprovalMode)...)
	args = append(args, "-")
	return &CLI{
		id:        CodexID,
		command:   command,
		args:      args,
		lookPath:  exec.LookPath,
		waitDelay: 5 * time.Second,
	}
}

func codexApprovalFlags(mode string) []string {
	switch strings.ToLower(mode) {
	case "bypass":
		return []string{"--dangerously-bypass-approvals-and-sandbox"}
	case "full-auto", "":
		return []string{"--full-auto"}
	default:
		return nil
	}
}
