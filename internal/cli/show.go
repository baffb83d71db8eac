package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/store"
)

var (
	showLimit int
	showQuery string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List recent stored events for this repository",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func init() {
	showCmd.Flags().IntVarP(&showLimit, "number", "n", 10, "Number of events to show")
	showCmd.Flags().StringVarP(&showQuery, "query", "q", "", "Full-text search across all repositories")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	configureColor(out)

	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var events []event.Event
	if showQuery != "" {
		events, err = st.Search(ctx, showQuery, showLimit)
	} else {
		events, err = st.Recent(ctx, s.repo.Root, showLimit)
	}
	if err != nil {
		return err
	}

	if len(events) == 0 {
		dimColor.Fprintln(out, "No events stored yet. Commit with the hooks installed to record one.")
		return nil
	}
	for _, e := range events {
		fmt.Fprintln(out, eventLine(e, 100))
	}
	return nil
}
