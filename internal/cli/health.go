package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sayu/internal/collector"
	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/hook"
	"github.com/MikeSquared-Agency/sayu/internal/llm"
	"github.com/MikeSquared-Agency/sayu/internal/store"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check hooks, collectors, database and LLM configuration",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	configureColor(out)

	passed, failed := 0, 0
	check := func(name string, ok bool, detail string) {
		if ok {
			okColor.Fprintf(out, "  ✓ %s", name)
			passed++
		} else {
			failColor.Fprintf(out, "  ✗ %s", name)
			failed++
		}
		if detail != "" {
			dimColor.Fprintf(out, " (%s)", detail)
		}
		fmt.Fprintln(out)
	}

	titleColor.Fprintln(out, "Repository:")
	s, err := openSession(ctx)
	if err != nil {
		check("git repository", false, err.Error())
		fmt.Fprintf(out, "\nResults: %d passed, %d failed\n", passed, failed)
		return nil
	}
	check("git repository", true, s.repo.Root)

	installed, err := hook.Installed(ctx, s.repo)
	if err != nil {
		check("hooks", false, err.Error())
	} else {
		for _, name := range hook.Names {
			check(name+" hook", installed[name], missingDetail(installed[name], "run: sayu init"))
		}
	}

	fmt.Fprintln(out)
	titleColor.Fprintln(out, "Configuration:")
	_, statErr := os.Stat(config.ProjectConfigPath(s.repo.Root))
	check(config.FileName, statErr == nil, missingDetail(statErr == nil, "using defaults, run: sayu init"))
	check("enabled", s.cfg.Enabled, missingDetail(s.cfg.Enabled, "SAYU_ENABLED=false or enabled: false"))
	check("commit trailer", s.cfg.CommitTrailer, missingDetail(s.cfg.CommitTrailer, "SAYU_TRAILER=false or commitTrailer: false"))
	dimColor.Fprintf(out, "  → language: %s\n", s.cfg.Language)

	fmt.Fprintln(out)
	titleColor.Fprintln(out, "Collectors:")
	for _, c := range collector.Defaults(s.cfg, s.repo, s.logger).All() {
		if !s.cfg.Connectors.Enabled(c.Name()) {
			dimColor.Fprintf(out, "  - %s (disabled)\n", c.Name())
			continue
		}
		h := c.Health()
		check(c.Name(), h.OK, h.Reason)
	}

	fmt.Fprintln(out)
	titleColor.Fprintln(out, "Storage:")
	st, err := store.Open(ctx, s.cfg, s.logger)
	if err != nil {
		check("event store", false, err.Error())
	} else {
		target := s.cfg.DBPath
		if s.cfg.DatabaseURL != "" {
			target = "postgres"
		}
		check("event store", true, target)
		if ts, ok, err := st.LastCommitTime(ctx, s.repo.Root); err == nil && ok {
			dimColor.Fprintf(out, "  → last commit boundary: %s\n", formatMillis(ts))
		}
		st.Close()
	}

	fmt.Fprintln(out)
	titleColor.Fprintln(out, "LLM:")
	providers := llm.Available(s.cfg)
	check("provider credentials", len(providers) > 0,
		missingDetail(len(providers) > 0, "set SAYU_GEMINI_API_KEY, SAYU_OPENROUTER_API_KEY or ANTHROPIC_API_KEY; minimal trailers only"))
	if sum, err := llm.Select(s.cfg, s.logger); err == nil {
		dimColor.Fprintf(out, "  → using %s (timeout %s)\n", sum.Name(), s.cfg.LLMTimeout)
	}

	if s.cfg.NatsURL != "" {
		dimColor.Fprintf(out, "  → publishing commit context to %s\n", s.cfg.NatsURL)
	}

	fmt.Fprintf(out, "\nResults: %d passed, %d failed\n", passed, failed)
	return nil
}

func missingDetail(ok bool, detail string) string {
	if ok {
		return ""
	}
	return detail
}
