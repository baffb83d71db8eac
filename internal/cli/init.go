package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/hook"
	"github.com/MikeSquared-Agency/sayu/internal/store"
)

var (
	initShellHook string
	initForce     bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Install the git hooks and write a default .sayu.yml",
	Long: `Installs the commit-msg and post-commit hooks, writes .sayu.yml when the
repository has none and creates the event database.

With --shell-hook zsh, a preexec logger is appended to ~/.zshrc so terminal
commands are available to the shell collector.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initShellHook, "shell-hook", "", "Install the command logger for a shell (zsh)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing hooks that sayu did not write")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	configureColor(out)

	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	titleColor.Fprintf(out, "Initializing sayu in %s\n", s.repo.Root)

	written, err := hook.Install(ctx, s.repo, initForce)
	for _, path := range written {
		okColor.Fprintf(out, "  ✓ installed %s\n", filepath.Base(path))
	}
	if err != nil {
		if !errors.Is(err, hook.ErrForeignHook) {
			return fmt.Errorf("install hooks: %w", err)
		}
		warnColor.Fprintf(out, "  ! %v (use --force to replace)\n", err)
	}

	created, err := config.WriteDefault(s.repo.Root)
	if err != nil {
		return err
	}
	if created {
		okColor.Fprintf(out, "  ✓ wrote %s\n", config.FileName)
	} else {
		dimColor.Fprintf(out, "  - %s already exists\n", config.FileName)
	}

	st, err := store.Open(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	st.Close()
	okColor.Fprintf(out, "  ✓ database ready\n")

	switch initShellHook {
	case "":
	case "zsh":
		rc := zshrcPath()
		changed, err := hook.InstallZsh(rc, s.cfg.ShellLogPath())
		if err != nil {
			return fmt.Errorf("install zsh hook: %w", err)
		}
		if changed {
			okColor.Fprintf(out, "  ✓ zsh command logger added to %s (restart your shell)\n", rc)
		} else {
			dimColor.Fprintf(out, "  - zsh command logger already in %s\n", rc)
		}
	default:
		return fmt.Errorf("unsupported shell %q (supported: zsh)", initShellHook)
	}

	if initShellHook == "" && s.cfg.Connectors.Enabled("shell") {
		dimColor.Fprintln(out, "  Tip: run 'sayu init --shell-hook zsh' to capture terminal commands")
	}
	return nil
}

func zshrcPath() string {
	if dir := os.Getenv("ZDOTDIR"); dir != "" {
		return filepath.Join(dir, ".zshrc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zshrc"
	}
	return filepath.Join(home, ".zshrc")
}
