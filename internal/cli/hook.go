package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/hook"
)

var hookCmd = &cobra.Command{
	Use:    "hook",
	Short:  "Entry points called by the installed git hooks",
	Hidden: true,
}

var hookCommitMsgCmd = &cobra.Command{
	Use:   "commit-msg <message-file>",
	Short: "Append the AI context trailer to a commit message",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runCommitMsg(cmd.Context(), args[0]))
	},
}

var hookPostCommitCmd = &cobra.Command{
	Use:   "post-commit",
	Short: "Record the new commit as the next context boundary",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exit(runPostCommit(cmd.Context()))
	},
}

func init() {
	hookCmd.AddCommand(hookCommitMsgCmd)
	hookCmd.AddCommand(hookPostCommitCmd)
}

// runCommitMsg never reports setup problems as failures; outside a
// repository there is nothing to do.
func runCommitMsg(ctx context.Context, msgFile string) int {
	s, err := openSession(ctx)
	if err != nil {
		return hook.ExitOK
	}
	return hook.New(s.repo, s.cfg, s.logger).CommitMsg(ctx, msgFile)
}

func runPostCommit(ctx context.Context) int {
	s, err := openSession(ctx)
	if err != nil {
		return hook.ExitOK
	}
	return hook.New(s.repo, s.cfg, s.logger).PostCommit(ctx)
}
