// Package cli holds the sayu cobra commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/gitx"
)

var (
	repoDir string
	rootCmd *cobra.Command

	// exit ends the process with a hook's exit code.
	exit = os.Exit
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "sayu",
		Short: "sayu - AI context trailers for git commits",
		Long: `sayu collects the AI-assistant conversations and terminal activity behind a
commit and appends a short summary of them to the commit message.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&repoDir, "repo", "C", "", "Run as if started in this directory")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(uninstallCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// session is the repository and configuration a command works on.
type session struct {
	repo   *gitx.Repo
	cfg    config.Config
	logger *slog.Logger
}

// openSession resolves the repository, loads its .env and layered config.
// A broken config file is logged and the defaults are used in its place.
func openSession(ctx context.Context) (*session, error) {
	dir := repoDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		dir = wd
	}

	repo, err := gitx.Open(ctx, dir, nil)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	if n, err := config.LoadDotEnv(repo.Root); err != nil {
		logger.Debug("dotenv not loaded", "error", err)
	} else if n > 0 {
		logger.Debug("dotenv loaded", "vars", n)
	}

	cfg, err := config.LoadRepo(repo.Root)
	if err != nil {
		logger.Warn("config partially loaded", "error", err)
	}
	return &session{repo: repo, cfg: cfg, logger: logger}, nil
}
