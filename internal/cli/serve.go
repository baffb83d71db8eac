package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/aggregator"
	"github.com/MikeSquared-Agency/sayu/internal/api"
	"github.com/MikeSquared-Agency/sayu/internal/collector"
	"github.com/MikeSquared-Agency/sayu/internal/llm"
	"github.com/MikeSquared-Agency/sayu/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local read-only API over the event store and collectors",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default SAYU_PORT or 8760)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	port := s.cfg.Port
	if servePort != 0 {
		port = servePort
	}

	st, err := store.Open(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	registry := collector.Defaults(s.cfg, s.repo, s.logger)
	srv := api.NewServer(port, api.Deps{
		Repo:      s.repo.Root,
		Config:    s.cfg,
		Events:    st,
		Window:    aggregator.New(registry, st, s.cfg, s.logger),
		Registry:  registry,
		Providers: llm.Available(s.cfg),
	})

	slog.Info("sayu serving", "repo", s.repo.Root, "port", port)
	return srv.Start(ctx)
}
