package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/logging"
)

const defaultTermWidth = 100

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns stdout's width, or a default when it is not a
// terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultTermWidth
}

// statusColor maps a task status to its display colour.
func statusColor(s lifecycle.Status) *color.Color {
	switch s {
	case lifecycle.StatusDone:
		return color.New(color.FgGreen)
	case lifecycle.StatusBlocked:
		return color.New(color.FgRed)
	case lifecycle.StatusReviewing:
		return color.New(color.FgMagenta)
	case lifecycle.StatusQueued:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgCyan)
	}
}

// statusMarker is the one-character marker printed before a task line.
func statusMarker(s lifecycle.Status) string {
	switch s {
	case lifecycle.StatusDone:
		return color.GreenString("✓")
	case lifecycle.StatusBlocked:
		return color.RedString("✗")
	default:
		return color.CyanString("•")
	}
}

func levelColor(level string) *color.Color {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return color.New(color.FgHiBlack)
	case logging.LevelInfo:
		return color.New(color.FgBlue)
	case logging.LevelWarn:
		return color.New(color.FgYellow)
	case logging.LevelError:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
