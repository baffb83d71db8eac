package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/gitx"
)

// Git turns repository state into events: commits made in the window, the
// files currently staged, and a preview of the staged diff.
type Git struct {
	repo   *gitx.Repo
	logger *slog.Logger
}

func NewGit(repo *gitx.Repo, logger *slog.Logger) *Git {
	if logger == nil {
		logger = discard()
	}
	return &Git{repo: repo, logger: logger}
}

func (g *Git) Name() string { return "git" }

func (g *Git) Discover(repoRoot string) bool {
	return g.repo != nil && g.repo.Root == repoRoot
}

func (g *Git) Health() Health {
	if g.repo == nil {
		return Health{OK: false, Reason: "not a git repository"}
	}
	return Health{OK: true}
}

// PullSince never fails: git errors are logged and yield no events.
func (g *Git) PullSince(ctx context.Context, since, until int64, cfg config.Config) ([]event.Event, error) {
	if g.repo == nil {
		return nil, nil
	}
	root := g.repo.Root
	var out []event.Event

	commits, err := g.repo.Log(ctx, time.UnixMilli(since), time.UnixMilli(until))
	if err != nil {
		g.logger.Debug("git log failed", "error", err)
	}
	for _, c := range commits {
		ts := c.Time.UnixMilli()
		if ts < since || ts >= until {
			continue
		}
		e := event.New(event.SourceGit, event.KindCommit, ts, root, root, c.Subject)
		e.Meta["hash"] = c.Hash
		e.Meta["author"] = c.Author
		if len(c.Refs) > 0 {
			e.Meta["refs"] = c.Refs
		}
		out = append(out, e)
	}

	files, err := g.repo.StagedFiles(ctx)
	if err != nil {
		g.logger.Debug("git staged files failed", "error", err)
		return out, nil
	}
	for _, f := range files {
		e := event.New(event.SourceGit, event.KindEdit, until-1, root, root, "staged "+f).WithFile(f)
		e.Meta["type"] = "staged"
		out = append(out, e)
	}

	if len(files) > 0 {
		diff, err := g.repo.StagedDiff(ctx)
		if err != nil {
			g.logger.Debug("git staged diff failed", "error", err)
			return out, nil
		}
		if diff != "" {
			e := event.New(event.SourceGit, event.KindNote, until-1, root, root, truncate(diff, cfg.Limits.DiffPreviewChars))
			e.Meta["type"] = "diff"
			out = append(out, e)
		}
	}
	return out, nil
}
