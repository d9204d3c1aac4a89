package cmd

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/inbox"
)

var voteCmd = &cobra.Command{
	Use:   "vote <task-id>",
	Short: "Cast a vote on a task under review",
	Long: `Vote drops a vote file into the inbox watched by 'quorum run'. Votes
for a task whose review has not started yet are held until it does.

Examples:
  quorum vote retries --approve
  quorum vote retries --reject --comment "breaks the retry budget" --confidence 0.8`,
	Args: cobra.ExactArgs(1),
	RunE: runVote,
}

var (
	voteApprove    bool
	voteReject     bool
	voteConfidence float64
	voteVoter      string
	voteComment    string
)

func init() {
	rootCmd.AddCommand(voteCmd)

	voteCmd.Flags().BoolVar(&voteApprove, "approve", false, "approve the task")
	voteCmd.Flags().BoolVar(&voteReject, "reject", false, "reject the task")
	voteCmd.Flags().Float64Var(&voteConfidence, "confidence", 1, "vote weight for the weighted strategy")
	voteCmd.Flags().StringVar(&voteVoter, "voter", "", "voter ID (default: current user)")
	voteCmd.Flags().StringVar(&voteComment, "comment", "", "reason for the vote")
	voteCmd.MarkFlagsMutuallyExclusive("approve", "reject")
	voteCmd.MarkFlagsOneRequired("approve", "reject")
}

func runVote(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	voter := voteVoter
	if voter == "" {
		voter = defaultVoter()
	}
	vote := consensus.Vote{
		VoterID:    voter,
		Approved:   voteApprove,
		Confidence: voteConfidence,
		Comment:    voteComment,
	}

	path, err := inbox.WriteVote(cfg.ResolveInboxDir(cwd), args[0], vote)
	if err != nil {
		return err
	}

	verdict := "approve"
	if !vote.Approved {
		verdict = "reject"
	}
	printf(cmd.OutOrStdout(), "Recorded %s vote from %s for %s\n  %s\n", verdict, voter, args[0], path)
	return nil
}

func defaultVoter() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "anonymous"
}
