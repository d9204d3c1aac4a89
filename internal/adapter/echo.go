package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/quorum/internal/executor"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
)

// EchoID is the configuration name of the dry-run adapter.
const EchoID = "echo"

// Echo is a dry-run adapter. It is always available, returns a transcript
// derived from the request, and as reviewer always approves.
type Echo struct{}

// NewEcho returns the dry-run adapter.
func NewEcho() Echo { return Echo{} }

func (Echo) ID() string      { return EchoID }
func (Echo) Available() bool { return true }

// Invoke returns immediately unless ctx is already done.
func (Echo) Invoke(ctx context.Context, req executor.Request) (executor.Output, error) {
	if err := ctx.Err(); err != nil {
		return executor.Output{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s\n", EchoID, req.Role, req.Title)
	if req.Role == lifecycle.RoleReviewer {
		b.WriteString(FormatVerdict(Verdict{Approved: true, Confidence: 1, Comment: "dry run"}))
		b.WriteString("\n")
	}
	return executor.Output{Text: b.String()}, nil
}
