package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/hermes"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print commit context published by sayu hooks over NATS",
	Args:  cobra.NoArgs,
	RunE:  runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	configureColor(out)

	cfg := config.Load()
	if cfg.NatsURL == "" {
		return errors.New("SAYU_NATS_URL is not set")
	}

	client, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Subscribe(hermes.SubjectCommitContext, func(subject string, data []byte) {
		cc, err := hermes.DecodeCommitContext(data)
		if err != nil {
			warnColor.Fprintf(out, "skipping malformed message on %s: %v\n", subject, err)
			return
		}
		titleColor.Fprintf(out, "%s  %s\n", shortHash(cc.Hash), cc.Subject)
		dimColor.Fprintf(out, "  %s  %s  %s\n", cc.Repo, cc.Author, formatMillis(cc.Timestamp))
		if cc.Trailer != "" {
			fmt.Fprintln(out, cc.Trailer)
		}
		fmt.Fprintln(out)
	})
	if err != nil {
		return err
	}

	dimColor.Fprintf(out, "listening on %s (ctrl-c to stop)\n", hermes.SubjectCommitContext)
	<-ctx.Done()
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
