// Package aggregator resolves the time window for a commit and merges the
// events every enabled collector reports for it.
package aggregator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/collector"
	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/pipeline"
)

// Boundary reports the most recent commit-boundary event for a repository.
// store.Store satisfies it.
type Boundary interface {
	LastCommitTime(ctx context.Context, repo string) (int64, bool, error)
}

// Mode selects the lookback used when no boundary exists yet.
type Mode int

const (
	// ModeHook is the commit-msg path; it uses the short hook lookback.
	ModeHook Mode = iota
	// ModeDefault is used by preview and the API.
	ModeDefault
)

// Batch is the merged, time-ordered output of one collection run.
type Batch struct {
	Since  int64         `json:"since"`
	Until  int64         `json:"until"`
	Events []event.Event `json:"events"`
}

type Aggregator struct {
	registry *collector.Registry
	boundary Boundary
	cfg      config.Config
	logger   *slog.Logger
	now      func() time.Time
}

func New(registry *collector.Registry, boundary Boundary, cfg config.Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		registry: registry,
		boundary: boundary,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests use it to pin "now".
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Resolve returns the [since, until) window for repo. since is the last
// commit boundary when one exists and now minus the mode's lookback
// otherwise. A boundary lookup failure falls back to the lookback and is
// returned alongside the usable window.
func (a *Aggregator) Resolve(ctx context.Context, repo string, mode Mode) (int64, int64, error) {
	until := a.now().UnixMilli()

	hours := a.cfg.Limits.DefaultLookbackHours
	if mode == ModeHook {
		hours = a.cfg.Limits.HookLookbackHours
	}
	fallback := until - int64(hours)*int64(time.Hour/time.Millisecond)

	if a.boundary == nil {
		return fallback, until, nil
	}
	ts, ok, err := a.boundary.LastCommitTime(ctx, repo)
	if err != nil {
		return fallback, until, fmt.Errorf("last commit time: %w", err)
	}
	if !ok {
		return fallback, until, nil
	}
	return ts, until, nil
}

// Collect pulls from every enabled collector and merges the results in
// ascending timestamp order. It never fails: a collector that errors or
// panics contributes nothing, and the cause is carried in Degraded.
func (a *Aggregator) Collect(ctx context.Context, repo string, mode Mode) pipeline.Result[Batch] {
	since, until, err := a.Resolve(ctx, repo, mode)
	res := pipeline.OK(Batch{Since: since, Until: until})
	if err != nil {
		a.logger.Debug("window fallback", "repo", repo, "error", err)
		res = res.Join(err)
	}

	var all []event.Event
	for _, c := range a.registry.Enabled(a.cfg) {
		events, err := a.pull(ctx, c, since, until)
		if err != nil {
			a.logger.Debug("collector failed", "collector", c.Name(), "error", err)
			res = res.Join(fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		a.logger.Debug("collector done", "collector", c.Name(), "events", len(events))
		all = append(all, events...)
	}

	slices.SortStableFunc(all, func(x, y event.Event) int {
		switch {
		case x.Timestamp < y.Timestamp:
			return -1
		case x.Timestamp > y.Timestamp:
			return 1
		}
		return 0
	})
	res.Value.Events = all
	return res
}

// pull runs one collector behind a recover boundary and redacts what it
// returns. Events outside the window are dropped.
func (a *Aggregator) pull(ctx context.Context, c collector.Collector, since, until int64) (out []event.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	events, err := c.PullSince(ctx, since, until, a.cfg)
	if err != nil {
		return nil, err
	}
	out = make([]event.Event, 0, len(events))
	for _, e := range events {
		if !e.InWindow(since, until) {
			continue
		}
		out = append(out, collector.Redact(c, e, a.cfg))
	}
	return out, nil
}
