// Package collector pulls raw activity from the tools a developer used
// around a commit and normalizes it into events.
//
// Each source implements Collector. Collectors are best effort: a missing
// data directory is "not discovered", a malformed record is skipped, and
// only a failure that prevents reading the source at all is returned as an
// error. The aggregator decides what to do with such errors.
package collector

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/gitx"
)

// Health is a diagnostic snapshot. It never gates PullSince.
type Health struct {
	OK     bool
	Reason string
}

type Collector interface {
	Name() string
	// Discover cheaply reports whether the source has any data for repoRoot.
	Discover(repoRoot string) bool
	// PullSince returns events with since <= ts < until belonging to the
	// repository the collector was built for.
	PullSince(ctx context.Context, since, until int64, cfg config.Config) ([]event.Event, error)
	Health() Health
}

// Redactor is implemented by collectors that mask their own event text.
type Redactor interface {
	Redact(e event.Event, cfg config.Config) event.Event
}

// Redact applies c's redaction when it has one and returns e otherwise.
func Redact(c Collector, e event.Event, cfg config.Config) event.Event {
	if r, ok := c.(Redactor); ok {
		return r.Redact(e, cfg)
	}
	return e
}

// Registry is the ordered set of collectors the aggregator iterates.
type Registry struct {
	collectors []Collector
}

func NewRegistry(cs ...Collector) *Registry {
	return &Registry{collectors: cs}
}

func (r *Registry) Register(c Collector) {
	r.collectors = append(r.collectors, c)
}

func (r *Registry) All() []Collector {
	return append([]Collector(nil), r.collectors...)
}

// Enabled returns the collectors whose connector toggle is on.
func (r *Registry) Enabled(cfg config.Config) []Collector {
	var out []Collector
	for _, c := range r.collectors {
		if cfg.Connectors.Enabled(c.Name()) {
			out = append(out, c)
		}
	}
	return out
}

// Defaults builds the standard registry for a repository: claude, cursor,
// shell and git, in that order.
func Defaults(cfg config.Config, repo *gitx.Repo, logger *slog.Logger) *Registry {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return NewRegistry(
		NewClaude(filepath.Join(home, ".claude", "projects"), repo.Root, logger),
		NewCursor(CursorPaths(home), repo.Root, logger),
		NewShell(cfg.ShellLogPath(), repo.Root, logger),
		NewGit(repo, logger),
	)
}

// underRoot reports whether path is root or lies beneath it.
func underRoot(path, root string) bool {
	if path == "" || root == "" {
		return false
	}
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

func masker(cfg config.Config, emails bool) *event.Masker {
	m, _ := event.NewMasker(cfg.Privacy.MaskSecrets, emails || cfg.Privacy.MaskEmails, cfg.Privacy.Masks)
	return m
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
