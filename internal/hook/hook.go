// Package hook runs sayu from the git hooks. Every entry point is fail-open:
// apart from the empty-commit check, nothing here can make a commit fail.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/aggregator"
	"github.com/MikeSquared-Agency/sayu/internal/collector"
	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/filter"
	"github.com/MikeSquared-Agency/sayu/internal/gitx"
	"github.com/MikeSquared-Agency/sayu/internal/hermes"
	"github.com/MikeSquared-Agency/sayu/internal/llm"
	"github.com/MikeSquared-Agency/sayu/internal/pipeline"
	"github.com/MikeSquared-Agency/sayu/internal/store"
	"github.com/MikeSquared-Agency/sayu/internal/summary"
)

// Exit codes returned by the hook entry points.
const (
	ExitOK          = 0
	ExitEmptyCommit = 3
)

const publishTimeout = 2 * time.Second

// Publisher sends the commit context after a commit. *hermes.Client
// satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
	Flush(ctx context.Context) error
	Close()
}

// Shell wires collectors, filter, summarizer and store into the commit-msg
// and post-commit entry points.
type Shell struct {
	repo       *gitx.Repo
	cfg        config.Config
	logger     *slog.Logger
	stderr     io.Writer
	now        func() time.Time
	registry   *collector.Registry
	summarizer llm.Summarizer
	openStore  func(ctx context.Context) (store.Store, error)
	connect    func(ctx context.Context) (Publisher, error)
}

// New builds a Shell with the default collectors, the configured summarizer
// and store, and a NATS publisher when SAYU_NATS_URL is set.
func New(repo *gitx.Repo, cfg config.Config, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Shell{
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
		stderr:   os.Stderr,
		now:      time.Now,
		registry: collector.Defaults(cfg, repo, logger),
		openStore: func(ctx context.Context) (store.Store, error) {
			return store.Open(ctx, cfg, logger)
		},
	}

	sum, err := llm.Select(cfg, logger)
	if err != nil {
		logger.Debug("no summarizer", "error", err)
	} else {
		s.summarizer = sum
	}

	if cfg.NatsURL != "" {
		s.connect = func(ctx context.Context) (Publisher, error) {
			c, err := hermes.Connect(ctx, cfg.NatsURL, cfg.NatsToken, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	return s
}

func (s *Shell) SetStderr(w io.Writer)             { s.stderr = w }
func (s *Shell) SetClock(now func() time.Time)     { s.now = now }
func (s *Shell) SetRegistry(r *collector.Registry) { s.registry = r }
func (s *Shell) SetSummarizer(sum llm.Summarizer)  { s.summarizer = sum }

func (s *Shell) SetPublisher(connect func(ctx context.Context) (Publisher, error)) {
	s.connect = connect
}

// SetStoreOpener replaces how the store is opened for each run.
func (s *Shell) SetStoreOpener(open func(ctx context.Context) (store.Store, error)) {
	s.openStore = open
}

// CommitMsg is the commit-msg hook. It returns ExitEmptyCommit when the
// precheck rejects the commit and ExitOK in every other case, including
// errors and panics.
func (s *Shell) CommitMsg(ctx context.Context, msgFile string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("commit-msg hook panicked", "panic", r)
			code = ExitOK
		}
	}()

	if err := s.Precheck(ctx); err != nil {
		if errors.Is(err, ErrEmptyCommit) {
			fmt.Fprintln(s.stderr, msgEmptyRejected)
			fmt.Fprintln(s.stderr, msgAllowEmpty)
			return ExitEmptyCommit
		}
		s.logger.Debug("precheck failed, allowing commit", "error", err)
	}

	if err := s.annotate(ctx, msgFile); err != nil {
		s.logger.Debug("commit-msg pipeline failed", "error", err)
	}
	return ExitOK
}

func (s *Shell) annotate(ctx context.Context, msgFile string) error {
	if !s.cfg.Enabled || !s.cfg.CommitTrailer {
		s.logger.Debug("trailer disabled")
		return nil
	}

	info, err := os.Stat(msgFile)
	if err != nil {
		return fmt.Errorf("stat message file: %w", err)
	}
	data, err := os.ReadFile(msgFile)
	if err != nil {
		return fmt.Errorf("read message file: %w", err)
	}
	msg := string(data)
	if reason := skipReason(msg); reason != "" {
		s.logger.Debug("skipping commit message", "reason", reason)
		return nil
	}

	res := s.Run(ctx, aggregator.ModeHook)
	if res.IsDegraded() {
		s.logger.Debug("pipeline degraded", "path", res.Value.Outcome.Path, "error", res.Degraded)
	}

	updated := summary.ApplyTrailer(msg, res.Value.Outcome.Trailer)
	if updated == msg {
		return nil
	}
	if err := os.WriteFile(msgFile, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write message file: %w", err)
	}
	return nil
}

// skipReason explains why a message must not get a trailer, or returns "".
func skipReason(msg string) string {
	first := strings.TrimSpace(msg)
	switch {
	case summary.HasTrailer(msg):
		return "trailer present"
	case strings.HasPrefix(first, "Merge "):
		return "merge commit"
	case strings.HasPrefix(first, "fixup!"), strings.HasPrefix(first, "squash!"), strings.HasPrefix(first, "amend!"):
		return "autosquash commit"
	}
	return ""
}

// Report is everything one pipeline run produced.
type Report struct {
	Batch       aggregator.Batch
	Filtered    []event.Event
	StagedFiles []string
	DiffStat    string
	Outcome     summary.Outcome
}

// Run collects, filters and summarizes without touching the message file.
// The store is opened for the duration of the run and closed on return. It
// always yields a trailer; failures along the way are carried in Degraded.
func (s *Shell) Run(ctx context.Context, mode aggregator.Mode) pipeline.Result[Report] {
	var (
		boundary aggregator.Boundary
		sum      = s.summarizer
		res      = pipeline.OK(Report{})
	)

	st, err := s.openStore(ctx)
	if err != nil {
		res = res.Join(fmt.Errorf("open store: %w", err))
	} else {
		defer st.Close()
		boundary = st
		if sum != nil {
			sum = llm.WithCache(sum, st, s.logger)
		}
	}

	agg := aggregator.New(s.registry, boundary, s.cfg, s.logger)
	agg.SetClock(s.now)
	batch := agg.Collect(ctx, s.repo.Root, mode)
	res = res.Join(batch.Degraded)

	lim := s.cfg.Limits
	filtered := filter.HighValue(batch.Value.Events, lim.MaxHighValueEvents, lim.MinResponseLength)
	s.logger.Debug("events filtered", "collected", len(batch.Value.Events), "kept", len(filtered))

	staged, err := s.repo.StagedFiles(ctx)
	if err != nil {
		res = res.Join(fmt.Errorf("staged files: %w", err))
	}
	diffStat, err := s.repo.DiffStat(ctx)
	if err != nil {
		res = res.Join(fmt.Errorf("diff stat: %w", err))
	}

	out := summary.New(sum, s.cfg, s.logger).Generate(ctx, summary.Input{
		Events:      filtered,
		StagedFiles: staged,
		DiffStat:    diffStat,
	})
	res = res.Join(out.Degraded)

	res.Value = Report{
		Batch:       batch.Value,
		Filtered:    filtered,
		StagedFiles: staged,
		DiffStat:    diffStat,
		Outcome:     out.Value,
	}
	return res
}

// PostCommit is the post-commit hook. It records the commit as the next
// window boundary and always returns ExitOK.
func (s *Shell) PostCommit(ctx context.Context) (code int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("post-commit hook panicked", "panic", r)
			code = ExitOK
		}
	}()

	if err := s.recordBoundary(ctx); err != nil {
		s.logger.Debug("post-commit failed", "error", err)
	}
	return ExitOK
}

func (s *Shell) recordBoundary(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	c, err := s.repo.HeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("head commit: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = s.repo.Root
	}
	e := BoundaryEvent(s.repo.Root, cwd, c)

	st, err := s.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Insert(ctx, e); err != nil {
		return fmt.Errorf("insert boundary: %w", err)
	}
	s.logger.Debug("commit boundary recorded", "hash", c.Hash, "ts", e.Timestamp)

	if err := s.publish(ctx, c, e); err != nil {
		s.logger.Debug("publish commit context failed", "error", err)
	}
	return nil
}

// BoundaryEvent is the git/commit event that closes the window for c.
func BoundaryEvent(repo, cwd string, c gitx.Commit) event.Event {
	e := event.New(event.SourceGit, event.KindCommit, c.Time.UnixMilli(), repo, cwd, c.Subject).
		WithMeta("hash", c.Hash).
		WithMeta("author", c.Author).
		WithMeta("email", c.Email)
	if len(c.Refs) > 0 {
		e = e.WithMeta("refs", c.Refs)
	}
	return e
}

func (s *Shell) publish(ctx context.Context, c gitx.Commit, e event.Event) error {
	if s.connect == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg, err := s.repo.CommitMessage(ctx, c.Hash)
	if err != nil {
		s.logger.Debug("read commit message", "error", err)
	}

	p, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Publish(hermes.SubjectCommitContext, hermes.CommitContext{
		Repo:      e.Repo,
		Hash:      c.Hash,
		Subject:   c.Subject,
		Author:    c.Author,
		Timestamp: e.Timestamp,
		Trailer:   summary.ExtractTrailer(msg),
	}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return p.Flush(ctx)
}
