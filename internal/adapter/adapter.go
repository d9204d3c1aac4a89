// Package adapter provides the agent backends the executor can invoke: the
// Claude Code and Codex CLIs, run one-shot with the prompt on stdin, and a
// dry-run Echo adapter. It also renders role prompts and parses reviewer
// verdicts.
package adapter

import (
	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/executor"
)

// FromConfig builds the adapters named in cfg.Pool.Adapters, in order.
// With dryRun set only Echo is returned.
func FromConfig(cfg *config.Config, dryRun bool) []executor.Adapter {
	if dryRun {
		return []executor.Adapter{NewEcho()}
	}
	var out []executor.Adapter
	for _, id := range cfg.Pool.Adapters {
		switch id {
		case ClaudeID:
			out = append(out, NewClaude(cfg.Adapters.Claude))
		case CodexID:
			out = append(out, NewCodex(cfg.Adapters.Codex))
		case EchoID:
			out = append(out, NewEcho())
		}
	}
	return out
}
