package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
)

// Store persists commit-boundary events and cached LLM responses.
type Store interface {
	Insert(ctx context.Context, e event.Event) error
	InsertBatch(ctx context.Context, events []event.Event) error
	FindByRepository(ctx context.Context, repo string, since, until int64) ([]event.Event, error)
	// LastCommitTime returns the timestamp of the newest commit event for repo.
	// The bool is false when the repository has no recorded commit yet.
	LastCommitTime(ctx context.Context, repo string) (int64, bool, error)
	Recent(ctx context.Context, repo string, limit int) ([]event.Event, error)
	Search(ctx context.Context, query string, limit int) ([]event.Event, error)
	GetCached(ctx context.Context, key string, maxAge time.Duration) (string, bool, error)
	PutCached(ctx context.Context, key, response string) error
	Close() error
}

// Open picks Postgres when a database URL is configured and the local
// SQLite file otherwise.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error) {
	if cfg.DatabaseURL != "" {
		return NewPostgres(ctx, cfg.DatabaseURL)
	}
	return NewSQLite(cfg.DBPath, logger)
}

// row is the column layout shared by both backends.
type row struct {
	id         string
	ts         int64
	source     string
	kind       string
	repo       string
	cwd        string
	file       *string
	rangeStart *int64
	rangeEnd   *int64
	actor      *string
	text       string
	url        *string
	meta       string
}

func (r *row) dest() []any {
	return []any{
		&r.id, &r.ts, &r.source, &r.kind, &r.repo, &r.cwd, &r.file,
		&r.rangeStart, &r.rangeEnd, &r.actor, &r.text, &r.url, &r.meta,
	}
}

func fromEvent(e event.Event) (row, error) {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return row{}, err
	}
	r := row{
		id:     e.ID,
		ts:     e.Timestamp,
		source: string(e.Source),
		kind:   string(e.Kind),
		repo:   e.Repo,
		cwd:    e.Cwd,
		file:   e.File,
		text:   e.Text,
		url:    e.URL,
		meta:   string(b),
	}
	if e.Range != nil {
		start, end := int64(e.Range.Start), int64(e.Range.End)
		r.rangeStart, r.rangeEnd = &start, &end
	}
	if e.Actor != nil {
		a := string(*e.Actor)
		r.actor = &a
	}
	return r, nil
}

func (r row) toEvent() event.Event {
	e := event.Event{
		ID:        r.id,
		Timestamp: r.ts,
		Source:    event.Source(r.source),
		Kind:      event.Kind(r.kind),
		Repo:      r.repo,
		Cwd:       r.cwd,
		File:      r.file,
		Text:      r.text,
		URL:       r.url,
		Meta:      map[string]any{},
	}
	if r.rangeStart != nil && r.rangeEnd != nil {
		e.Range = &event.Range{Start: int(*r.rangeStart), End: int(*r.rangeEnd)}
	}
	if r.actor != nil {
		a := event.Actor(*r.actor)
		e.Actor = &a
	}
	if r.meta != "" {
		_ = json.Unmarshal([]byte(r.meta), &e.Meta)
	}
	return e
}

const selectColumns = `id, ts, source, kind, repo, cwd, file, range_start, range_end, actor, text, url, meta`
