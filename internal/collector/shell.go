package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
)

// shellRecord is one line appended to cli.jsonl by the preexec hook.
type shellRecord struct {
	Ts       int64  `json:"ts"`
	Cmd      string `json:"cmd"`
	ExitCode *int   `json:"exitCode"`
	Duration int64  `json:"duration"`
	Cwd      string `json:"cwd"`
}

type shellRule struct {
	pattern  *regexp.Regexp
	kind     event.Kind
	category string
}

// shellRules is checked in order; the first match classifies the command.
var shellRules = []shellRule{
	{regexp.MustCompile(`^(go test|npm (run )?test|yarn test|pnpm test|pytest|jest|vitest|cargo test|mvn test|gradle test|make test|rspec|phpunit)\b`), event.KindTest, "test"},
	{regexp.MustCompile(`^(go build|npm run build|yarn build|pnpm build|cargo build|make|mvn (package|install)|gradle build|tsc|docker build)\b`), event.KindRun, "build"},
	{regexp.MustCompile(`^git `), event.KindRun, "vcs"},
	{regexp.MustCompile(`\b(bench|benchmark|perf|hyperfine)\b`), event.KindBenchmark, "benchmark"},
	{regexp.MustCompile(`(?i)\b(error|failed)\b`), event.KindError, "error"},
}

// ClassifyCommand maps a command line to an event kind and category. A
// non-zero exit code turns an otherwise generic command into an error.
func ClassifyCommand(cmd string, exitCode int) (event.Kind, string) {
	cmd = strings.TrimSpace(cmd)
	for _, r := range shellRules {
		if r.pattern.MatchString(cmd) {
			return r.kind, r.category
		}
	}
	if exitCode != 0 {
		return event.KindError, "error"
	}
	return event.KindRun, "generic"
}

// Shell reads commands recorded by the zsh preexec hook.
type Shell struct {
	logPath  string
	repoRoot string
	logger   *slog.Logger
}

func NewShell(logPath, repoRoot string, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = discard()
	}
	return &Shell{logPath: logPath, repoRoot: repoRoot, logger: logger}
}

func (s *Shell) Name() string { return "shell" }

func (s *Shell) Discover(repoRoot string) bool {
	return fileExists(s.logPath)
}

func (s *Shell) Health() Health {
	if !fileExists(s.logPath) {
		return Health{OK: false, Reason: "no shell log; run 'sayu init --shell-hook'"}
	}
	return Health{OK: true}
}

func (s *Shell) PullSince(ctx context.Context, since, until int64, cfg config.Config) ([]event.Event, error) {
	f, err := os.Open(s.logPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open shell log: %w", err)
	}
	defer f.Close()

	var out []event.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec shellRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if strings.TrimSpace(rec.Cmd) == "" || rec.Ts < since || rec.Ts >= until {
			continue
		}
		if !underRoot(rec.Cwd, s.repoRoot) {
			continue
		}

		exit := 0
		if rec.ExitCode != nil {
			exit = *rec.ExitCode
		}
		kind, category := ClassifyCommand(rec.Cmd, exit)

		e := event.New(event.SourceShell, kind, rec.Ts, s.repoRoot, rec.Cwd, rec.Cmd)
		e.Meta["tool"] = "shell"
		e.Meta["category"] = category
		e.Meta["duration_ms"] = rec.Duration
		if rec.ExitCode != nil {
			e.Meta["exit_code"] = exit
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scan shell log: %w", err)
	}
	return out, nil
}

// Redact masks secrets in command lines. Emails are masked only when the
// privacy config asks for it.
func (s *Shell) Redact(e event.Event, cfg config.Config) event.Event {
	return event.Redact(e, masker(cfg, false))
}
