package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/lifecycle"
	"github.com/Iron-Ham/quorum/internal/registry"
	"github.com/Iron-Ham/quorum/internal/store"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List persisted task snapshots",
	Long: `List the task snapshots recorded in the configured store.

Examples:
  quorum tasks
  quorum tasks --status blocked
  quorum tasks --run 3f0c... --show-reason`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

var (
	tasksStatus     string
	tasksRun        string
	tasksShowReason bool
)

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "only show tasks with this status")
	tasksCmd.Flags().StringVar(&tasksRun, "run", "", "only show tasks from this run ID")
	tasksCmd.Flags().BoolVar(&tasksShowReason, "show-reason", false, "include the done summary or blocked reason")
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	var status lifecycle.Status
	if tasksStatus != "" {
		if status, err = lifecycle.ParseStatus(strings.ToLower(tasksStatus)); err != nil {
			return err
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	st, err := store.Open(cfg, cwd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	snaps, err := st.LoadAll(runContext(cmd))
	if err != nil {
		return err
	}
	snaps = filterSnapshots(snaps, status, tasksRun)

	out := cmd.OutOrStdout()
	if len(snaps) == 0 {
		printf(out, "No tasks found in the %s store.\n", st.Backend())
		return nil
	}
	printf(out, "%s\n", renderTaskTable(snaps, tasksShowReason, terminalWidth()))
	return nil
}

func filterSnapshots(snaps []registry.Snapshot, status lifecycle.Status, runID string) []registry.Snapshot {
	var out []registry.Snapshot
	for _, s := range snaps {
		if status != "" && s.Status != status {
			continue
		}
		if runID != "" && s.RunID != runID {
			continue
		}
		out = append(out, s)
	}
	return out
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(s lifecycle.Status) lipgloss.Style {
	switch s {
	case lifecycle.StatusDone:
		return tableCellStyle.Foreground(lipgloss.Color("2"))
	case lifecycle.StatusBlocked:
		return tableCellStyle.Foreground(lipgloss.Color("1"))
	case lifecycle.StatusReviewing:
		return tableCellStyle.Foreground(lipgloss.Color("5"))
	default:
		return tableCellStyle.Foreground(lipgloss.Color("6"))
	}
}

// renderTaskTable lays the snapshots out as a bordered table no wider than
// width.
func renderTaskTable(snaps []registry.Snapshot, showReason bool, width int) string {
	headers := []string{"TASK", "STATUS", "TITLE", "UPDATED", "VER"}
	if showReason {
		headers = append(headers, "RESULT")
	}

	// Fixed columns: task, status, updated, version, plus borders and padding.
	titleWidth := max(width-24-12-18-6-16, 16)
	if showReason {
		titleWidth = max(titleWidth/2, 16)
	}

	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		row := []string{
			truncate(s.TaskID, 22),
			s.Status.String(),
			truncate(s.Title, titleWidth),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprint(s.Version),
		}
		if showReason {
			result := s.Summary
			if s.Status == lifecycle.StatusBlocked {
				result = s.Error
			}
			row = append(row, truncate(result, titleWidth))
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 1 {
				return statusStyle(snaps[row].Status)
			}
			return tableCellStyle
		})
	return t.Render()
}
