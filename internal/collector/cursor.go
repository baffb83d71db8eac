package collector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
)

// CursorLocations names the Cursor state databases to read. Cursor keeps one
// global store plus a workspaceStorage directory with a store per opened
// folder.
type CursorLocations struct {
	GlobalDBs     []string
	WorkspaceDirs []string
}

// CursorPaths returns the standard Linux and macOS locations under home.
func CursorPaths(home string) CursorLocations {
	roots := []string{
		filepath.Join(home, ".config", "Cursor", "User"),
		filepath.Join(home, "Library", "Application Support", "Cursor", "User"),
	}
	var loc CursorLocations
	for _, r := range roots {
		loc.GlobalDBs = append(loc.GlobalDBs, filepath.Join(r, "globalStorage", "state.vscdb"))
		loc.WorkspaceDirs = append(loc.WorkspaceDirs, filepath.Join(r, "workspaceStorage"))
	}
	return loc
}

// Cursor reads chat history out of Cursor's SQLite state databases. Only
// workspaces whose folder matches the repository are considered.
type Cursor struct {
	loc      CursorLocations
	repoRoot string
	logger   *slog.Logger
}

func NewCursor(loc CursorLocations, repoRoot string, logger *slog.Logger) *Cursor {
	if logger == nil {
		logger = discard()
	}
	return &Cursor{loc: loc, repoRoot: repoRoot, logger: logger}
}

func (c *Cursor) Name() string { return "cursor" }

// cursorRecord is a chat entry before it becomes an event. ts is zero when
// the source carries no timestamp.
type cursorRecord struct {
	ts    int64
	actor event.Actor
	text  string
	meta  map[string]any
}

type cursorGeneration struct {
	UnixMs          int64  `json:"unixMs"`
	TextDescription string `json:"textDescription"`
	GenerationUUID  string `json:"generationUUID"`
	Type            string `json:"type"`
}

type cursorPrompt struct {
	Text        string `json:"text"`
	CommandType int    `json:"commandType"`
}

type cursorComposers struct {
	AllComposers []struct {
		ComposerID    string `json:"composerId"`
		LastUpdatedAt int64  `json:"lastUpdatedAt"`
	} `json:"allComposers"`
}

type cursorBubble struct {
	Type      int    `json:"type"`
	Text      string `json:"text"`
	CreatedAt any    `json:"createdAt"`
	BubbleID  string `json:"bubbleId"`
}

func (c *Cursor) Discover(repoRoot string) bool {
	return len(c.workspaceDBs(repoRoot)) > 0
}

func (c *Cursor) Health() Health {
	found := false
	for _, p := range c.loc.GlobalDBs {
		if fileExists(p) {
			found = true
			break
		}
	}
	if !found {
		return Health{OK: false, Reason: "cursor state database not found"}
	}
	if !c.Discover(c.repoRoot) {
		return Health{OK: false, Reason: "no cursor workspace for this repository"}
	}
	return Health{OK: true}
}

// workspaceDBs returns the state.vscdb of every workspace whose folder has
// the same base name as repoRoot.
func (c *Cursor) workspaceDBs(repoRoot string) []string {
	want := filepath.Base(filepath.Clean(repoRoot))
	var out []string
	for _, dir := range c.loc.WorkspaceDirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*", "workspace.json"))
		if err != nil {
			continue
		}
		for _, wsFile := range matches {
			folder, err := readWorkspaceFolder(wsFile)
			if err != nil || folder == "" {
				continue
			}
			if filepath.Base(filepath.Clean(folder)) != want {
				continue
			}
			db := filepath.Join(filepath.Dir(wsFile), "state.vscdb")
			if fileExists(db) {
				out = append(out, db)
			}
		}
	}
	return out
}

func readWorkspaceFolder(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var ws struct {
		Folder string `json:"folder"`
	}
	if err := json.Unmarshal(data, &ws); err != nil {
		return "", err
	}
	u, err := url.Parse(ws.Folder)
	if err != nil {
		return "", err
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("unsupported workspace scheme %q", u.Scheme)
	}
	return u.Path, nil
}

func (c *Cursor) PullSince(ctx context.Context, since, until int64, cfg config.Config) ([]event.Event, error) {
	var records []cursorRecord
	var composerIDs []string

	for _, path := range c.workspaceDBs(c.repoRoot) {
		recs, ids, err := c.readWorkspace(ctx, path, since)
		if err != nil {
			c.logger.Debug("skipping cursor workspace", "path", path, "error", err)
			continue
		}
		records = append(records, recs...)
		composerIDs = append(composerIDs, ids...)
	}

	if len(composerIDs) > 0 {
		for _, path := range c.loc.GlobalDBs {
			if !fileExists(path) {
				continue
			}
			recs, err := c.readBubbles(ctx, path, composerIDs)
			if err != nil {
				c.logger.Debug("skipping cursor global store", "path", path, "error", err)
				continue
			}
			records = append(records, recs...)
		}
	}

	interval := int64(cfg.Limits.CursorEstimateSeconds) * 1000
	if interval <= 0 {
		interval = 60_000
	}
	return c.toEvents(records, since, until, interval), nil
}

// toEvents assigns estimated timestamps to undated records, spacing them
// interval apart and ending just before until, then keeps what falls in the
// window.
func (c *Cursor) toEvents(records []cursorRecord, since, until, interval int64) []event.Event {
	var undated int
	for _, r := range records {
		if r.ts == 0 {
			undated++
		}
	}

	var out []event.Event
	n := 0
	for _, r := range records {
		ts := r.ts
		estimated := false
		if ts == 0 {
			ts = until - int64(undated-n)*interval
			n++
			estimated = true
		}
		if ts < since || ts >= until {
			continue
		}
		e := event.New(event.SourceCursor, event.KindChat, ts, c.repoRoot, c.repoRoot, r.text).WithActor(r.actor)
		e.Meta["tool"] = "cursor"
		for k, v := range r.meta {
			e.Meta[k] = v
		}
		if estimated {
			e.Meta["timestamp_estimated"] = true
		}
		out = append(out, e)
	}
	return out
}

func (c *Cursor) readWorkspace(ctx context.Context, path string, since int64) ([]cursorRecord, []string, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	var records []cursorRecord
	seen := map[string]bool{}

	if raw, err := itemValue(ctx, db, "aiService.generations"); err == nil {
		var gens []cursorGeneration
		if err := json.Unmarshal(raw, &gens); err != nil {
			c.logger.Debug("decode cursor generations", "error", err)
		}
		for _, g := range gens {
			text := strings.TrimSpace(g.TextDescription)
			if text == "" {
				continue
			}
			seen[text] = true
			records = append(records, cursorRecord{
				ts:    g.UnixMs,
				actor: event.ActorUser,
				text:  text,
				meta:  map[string]any{"generation_uuid": g.GenerationUUID, "generation_type": g.Type},
			})
		}
	}

	if raw, err := itemValue(ctx, db, "aiService.prompts"); err == nil {
		var prompts []cursorPrompt
		if err := json.Unmarshal(raw, &prompts); err != nil {
			c.logger.Debug("decode cursor prompts", "error", err)
		}
		for _, p := range prompts {
			text := strings.TrimSpace(p.Text)
			if text == "" || seen[text] {
				continue
			}
			seen[text] = true
			records = append(records, cursorRecord{
				actor: event.ActorUser,
				text:  text,
				meta:  map[string]any{"command_type": p.CommandType},
			})
		}
	}

	var ids []string
	if raw, err := itemValue(ctx, db, "composer.composerData"); err == nil {
		var data cursorComposers
		if err := json.Unmarshal(raw, &data); err != nil {
			c.logger.Debug("decode cursor composers", "error", err)
		}
		for _, comp := range data.AllComposers {
			if comp.ComposerID == "" {
				continue
			}
			if comp.LastUpdatedAt != 0 && comp.LastUpdatedAt < since {
				continue
			}
			ids = append(ids, comp.ComposerID)
		}
	}

	return records, ids, nil
}

func (c *Cursor) readBubbles(ctx context.Context, path string, composerIDs []string) ([]cursorRecord, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var records []cursorRecord
	for _, id := range composerIDs {
		rows, err := db.QueryContext(ctx,
			`SELECT value FROM cursorDiskKV WHERE key LIKE ? ORDER BY rowid`, "bubbleId:"+id+":%")
		if err != nil {
			return records, fmt.Errorf("query bubbles: %w", err)
		}
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				continue
			}
			var b cursorBubble
			if err := json.Unmarshal(raw, &b); err != nil {
				continue
			}
			text := strings.TrimSpace(b.Text)
			if text == "" {
				continue
			}
			actor := event.ActorUser
			if b.Type == 2 {
				actor = event.ActorAssistant
			}
			records = append(records, cursorRecord{
				ts:    bubbleTime(b.CreatedAt),
				actor: actor,
				text:  text,
				meta:  map[string]any{"composer_id": id, "bubble_id": b.BubbleID},
			})
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return records, fmt.Errorf("read bubbles: %w", err)
		}
	}
	return records, nil
}

// bubbleTime reads createdAt, which Cursor writes either as epoch millis or
// as an ISO string depending on version.
func bubbleTime(v any) int64 {
	switch t := v.(type) {
	case float64:
		if t < 1e10 {
			return int64(t * 1000)
		}
		return int64(t)
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UnixMilli()
		}
	}
	return 0
}

// Redact masks secrets and email addresses in chat text.
func (c *Cursor) Redact(e event.Event, cfg config.Config) event.Event {
	return event.Redact(e, masker(cfg, true))
}

func openReadOnly(path string) (*sql.DB, error) {
	dsn := (&url.URL{Scheme: "file", Path: path}).String() + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

var errNoItem = errors.New("item not found")

func itemValue(ctx context.Context, db *sql.DB, key string) ([]byte, error) {
	var raw []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM ItemTable WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNoItem
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
