package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/sayu/internal/event"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres stores events in a shared database, for teams that point
// several machines at one SAYU_DATABASE_URL.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

const pgInsert = `INSERT INTO sayu_events (` + selectColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)`

const pgSelect = `SELECT id, ts, source, kind, repo, cwd, file, range_start, range_end, actor, text, url, meta::text FROM sayu_events`

func (s *Postgres) Insert(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	r, err := fromEvent(e)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if _, err := s.pool.Exec(ctx, pgInsert, r.args()...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Postgres) InsertBatch(ctx context.Context, events []event.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid event %s: %w", e.ID, err)
		}
		r, err := fromEvent(e)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		if _, err := tx.Exec(ctx, pgInsert, r.args()...); err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Postgres) FindByRepository(ctx context.Context, repo string, since, until int64) ([]event.Event, error) {
	rows, err := s.pool.Query(ctx, pgSelect+` WHERE repo = $1 AND ts >= $2 AND ts < $3 ORDER BY ts ASC`, repo, since, until)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanPG(rows)
}

func (s *Postgres) LastCommitTime(ctx context.Context, repo string) (int64, bool, error) {
	var ts *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(ts) FROM sayu_events WHERE repo = $1 AND kind = $2`, repo, string(event.KindCommit),
	).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("query last commit: %w", err)
	}
	if ts == nil {
		return 0, false, nil
	}
	return *ts, true, nil
}

func (s *Postgres) Recent(ctx context.Context, repo string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows pgx.Rows
	var err error
	if repo == "" {
		rows, err = s.pool.Query(ctx, pgSelect+` ORDER BY ts DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, pgSelect+` WHERE repo = $1 ORDER BY ts DESC LIMIT $2`, repo, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return scanPG(rows)
}

func (s *Postgres) Search(ctx context.Context, query string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, pgSelect+`
		WHERE to_tsvector('simple', text) @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(to_tsvector('simple', text), plainto_tsquery('simple', $1)) DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return scanPG(rows)
}

func (s *Postgres) GetCached(ctx context.Context, key string, maxAge time.Duration) (string, bool, error) {
	var resp string
	err := s.pool.QueryRow(ctx,
		`SELECT response FROM sayu_llm_cache WHERE key = $1 AND created_at > now() - make_interval(secs => $2)`,
		key, maxAge.Seconds(),
	).Scan(&resp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query cache: %w", err)
	}
	return resp, true, nil
}

func (s *Postgres) PutCached(ctx context.Context, key, response string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO sayu_llm_cache (key, response, created_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET response = EXCLUDED.response, created_at = now()`, key, response)
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func scanPG(rows pgx.Rows) ([]event.Event, error) {
	defer rows.Close()
	var out []event.Event
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, r.toEvent())
	}
	return out, rows.Err()
}
