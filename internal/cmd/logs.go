package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View run logs",
	Long: `View and filter the structured log written by 'quorum run'.

Examples:
  # Show the last 50 entries
  quorum logs

  # Show everything for one task
  quorum logs --task retries -n 0

  # Only warnings and errors from the last hour
  quorum logs --level warn --since 1h

  # Consensus activity
  quorum logs --component consensus`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail      int
	logsLevel     string
	logsTask      string
	logsRole      string
	logsComponent string
	logsSince     string
	logsGrep      string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsTask, "task", "", "Filter by task ID")
	logsCmd.Flags().StringVar(&logsRole, "role", "", "Filter by role (planner/builder/verifier/reviewer)")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component (pipeline/consensus/executor/registry/inbox)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only entries whose message contains this text")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	filter := logging.Filter{
		TaskID:    logsTask,
		Role:      logsRole,
		Component: logsComponent,
		Contains:  logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	out := cmd.OutOrStdout()
	logPath := filepath.Join(cfg.Paths.ResolveDataDir(cwd), logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		printf(out, "No logs found at %s\n", logPath)
		return nil
	}

	entries, err := logging.ReadEntries(logPath)
	if err != nil {
		return err
	}
	entries = logging.FilterEntries(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	if len(entries) == 0 {
		printf(out, "No matching log entries found.\n")
		return nil
	}
	for _, e := range entries {
		printf(out, "%s\n", formatLogEntry(e))
	}
	return nil
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(e logging.Entry) string {
	var sb strings.Builder
	field := color.New(color.FgCyan)

	sb.WriteString(color.HiBlackString("[%s]", e.Time.Local().Format("15:04:05.000")))
	sb.WriteString(" ")
	sb.WriteString(levelColor(e.Level).Sprintf("[%s]", strings.ToUpper(e.Level)))
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	for _, kv := range [][2]string{
		{logging.KeyTask, e.TaskID},
		{logging.KeyRole, e.Role},
		{logging.KeyComponent, e.Component},
	} {
		if kv[1] != "" {
			sb.WriteString(" ")
			sb.WriteString(field.Sprintf("%s=%s", kv[0], kv[1]))
		}
	}

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(field.Sprint(k + "="))
		sb.WriteString(fmt.Sprint(e.Attrs[k]))
	}
	return sb.String()
}
