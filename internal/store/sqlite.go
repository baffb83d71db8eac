package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MikeSquared-Agency/sayu/internal/event"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_fts.sql
var ftsSchema string

// SQLite is the default local store at ~/.sayu/events.db.
type SQLite struct {
	db  *sql.DB
	fts bool
}

// NewSQLite opens (creating if needed) the database at path. Full-text
// search needs a driver built with the fts5 tag; without it Search falls
// back to substring matching.
func NewSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	s := &SQLite{db: db}
	if _, err := db.Exec(ftsSchema); err != nil {
		if logger != nil {
			logger.Debug("full-text index unavailable, using substring search", "error", err)
		}
	} else {
		s.fts = true
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

const sqliteInsert = `INSERT INTO events (` + selectColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLite) Insert(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	r, err := fromEvent(e)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsert, r.args()...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLite) InsertBatch(ctx context.Context, events []event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid event %s: %w", e.ID, err)
		}
		r, err := fromEvent(e)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.args()...); err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) FindByRepository(ctx context.Context, repo string, since, until int64) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM events
		WHERE repo = ? AND ts >= ? AND ts < ? ORDER BY ts ASC`, repo, since, until)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanSQL(rows)
}

func (s *SQLite) LastCommitTime(ctx context.Context, repo string) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM events WHERE repo = ? AND kind = ?`, repo, string(event.KindCommit),
	).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("query last commit: %w", err)
	}
	return ts.Int64, ts.Valid, nil
}

func (s *SQLite) Recent(ctx context.Context, repo string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + selectColumns + ` FROM events ORDER BY ts DESC LIMIT ?`
	args := []any{limit}
	if repo != "" {
		query = `SELECT ` + selectColumns + ` FROM events WHERE repo = ? ORDER BY ts DESC LIMIT ?`
		args = []any{repo, limit}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return scanSQL(rows)
}

func (s *SQLite) Search(ctx context.Context, query string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var rows *sql.Rows
	var err error
	if s.fts {
		rows, err = s.db.QueryContext(ctx, `SELECT e.id, e.ts, e.source, e.kind, e.repo, e.cwd, e.file,
			e.range_start, e.range_end, e.actor, e.text, e.url, e.meta
			FROM events e JOIN events_fts f ON e.rowid = f.rowid
			WHERE events_fts MATCH ? ORDER BY rank LIMIT ?`, ftsQuote(query), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM events
			WHERE text LIKE ? ESCAPE '\' ORDER BY ts DESC LIMIT ?`, "%"+likeEscape(query)+"%", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return scanSQL(rows)
}

func (s *SQLite) GetCached(ctx context.Context, key string, maxAge time.Duration) (string, bool, error) {
	var resp string
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT response, created_at FROM llm_cache WHERE key = ?`, key).Scan(&resp, &created)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query cache: %w", err)
	}
	if time.Since(time.UnixMilli(created)) > maxAge {
		return "", false, nil
	}
	return resp, true, nil
}

func (s *SQLite) PutCached(ctx context.Context, key, response string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO llm_cache (key, response, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET response = excluded.response, created_at = excluded.created_at`,
		key, response, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func (r row) args() []any {
	return []any{r.id, r.ts, r.source, r.kind, r.repo, r.cwd, r.file,
		r.rangeStart, r.rangeEnd, r.actor, r.text, r.url, r.meta}
}

func scanSQL(rows *sql.Rows) ([]event.Event, error) {
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

// ftsQuote turns free text into an FTS5 query of quoted terms so user input
// cannot inject query syntax.
func ftsQuote(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
