package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/aggregator"
	"github.com/MikeSquared-Agency/sayu/internal/hook"
)

var (
	previewEvents bool
	previewNoLLM  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the trailer the next commit would get, without committing",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().BoolVar(&previewEvents, "events", false, "List the events the summary is built from")
	previewCmd.Flags().BoolVar(&previewNoLLM, "no-llm", false, "Skip the LLM and show the minimal trailer")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	configureColor(out)

	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	shell := hook.New(s.repo, s.cfg, s.logger)
	if previewNoLLM {
		shell.SetSummarizer(nil)
	}
	res := shell.Run(ctx, aggregator.ModeDefault)
	r := res.Value

	titleColor.Fprintln(out, "Window")
	dimColor.Fprintf(out, "  %s → %s\n", formatMillis(r.Batch.Since), formatMillis(r.Batch.Until))
	fmt.Fprintf(out, "  %d events collected, %d kept for the summary\n\n", len(r.Batch.Events), len(r.Filtered))

	titleColor.Fprintf(out, "Staged files (%d)\n", len(r.StagedFiles))
	for i, f := range r.StagedFiles {
		if i == 10 {
			dimColor.Fprintf(out, "  ... and %d more\n", len(r.StagedFiles)-10)
			break
		}
		fmt.Fprintf(out, "  - %s\n", f)
	}
	if len(r.StagedFiles) == 0 {
		dimColor.Fprintln(out, "  nothing staged")
	}
	fmt.Fprintln(out)

	if previewEvents {
		titleColor.Fprintln(out, "Events")
		for _, e := range r.Filtered {
			fmt.Fprintf(out, "  %s\n", eventLine(e, 100))
		}
		fmt.Fprintln(out)
	}

	titleColor.Fprintf(out, "Trailer (%s)\n", r.Outcome.Path)
	fmt.Fprintln(out, r.Outcome.Trailer)

	if res.IsDegraded() {
		fmt.Fprintln(out)
		warnColor.Fprintln(out, "Warnings:")
		dimColor.Fprintf(out, "  %v\n", res.Degraded)
	}
	return nil
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
