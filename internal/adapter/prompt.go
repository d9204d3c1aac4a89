package adapter

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/quorum/internal/executor"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
)

var roleInstructions = map[lifecycle.Role]string{
	lifecycle.RolePlanner: "You are the planner. Produce a short, numbered implementation plan for the task. " +
		"Do not modify any files.",
	lifecycle.RoleBuilder: "You are the builder. Implement the plan in the working directory. " +
		"Finish with a brief summary of the files you changed.",
	lifecycle.RoleVerifier: "You are the verifier. Run the project's tests and checks against the change " +
		"and report what passed and what failed.",
	lifecycle.RoleReviewer: "You are a reviewer. Decide whether the change is ready to merge.",
}

// BuildPrompt renders the prompt sent to a CLI adapter for req.
func BuildPrompt(req executor.Request) string {
	var b strings.Builder

	if instr, ok := roleInstructions[req.Role]; ok {
		b.WriteString(instr)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "## Task %s: %s\n\n", req.TaskID, req.Title)
	if d := strings.TrimSpace(req.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}

	if c := strings.TrimSpace(req.Context); c != "" {
		b.WriteString("## Context\n\n")
		b.WriteString(c)
		b.WriteString("\n\n")
	}

	if req.Role == lifecycle.RoleReviewer {
		b.WriteString("End your reply with your verdict as JSON inside verdict tags, for example:\n")
		b.WriteString(FormatVerdict(Verdict{Approved: true, Confidence: 0.8, Comment: "one line reason"}))
		b.WriteString("\n")
	}

	return b.String()
}
