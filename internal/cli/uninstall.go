package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/hook"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the git hooks sayu installed",
	Long:  `Removes the commit-msg and post-commit hooks written by sayu. Hooks written by other tools are left alone.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configureColor(out)

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		removed, err := hook.Uninstall(cmd.Context(), s.repo)
		for _, path := range removed {
			okColor.Fprintf(out, "  ✓ removed %s\n", filepath.Base(path))
		}
		if len(removed) == 0 && err == nil {
			dimColor.Fprintln(out, "  no sayu hooks installed")
		}
		return err
	},
}
