package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
)

const (
	toolResultPreview = 200
	respondsToMax     = 100
)

// ccLine is one record of a Claude Code JSONL transcript.
type ccLine struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	SessionID string          `json:"sessionId"`
	Timestamp json.RawMessage `json:"timestamp"`
	Cwd       string          `json:"cwd"`
	IsMeta    bool            `json:"isMeta"`
	Message   ccMessage       `json:"message"`
}

type ccMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type ccContentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Claude reads Claude Code session transcripts from
// ~/.claude/projects/<encoded repo path>/*.jsonl.
type Claude struct {
	projectsDir string
	repoRoot    string
	logger      *slog.Logger
}

func NewClaude(projectsDir, repoRoot string, logger *slog.Logger) *Claude {
	if logger == nil {
		logger = discard()
	}
	return &Claude{projectsDir: projectsDir, repoRoot: repoRoot, logger: logger}
}

func (c *Claude) Name() string { return "claude" }

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// ProjectDirName encodes a repository path the way Claude Code names its
// per-project directories.
func ProjectDirName(repoRoot string) string {
	return nonAlnum.ReplaceAllString(filepath.Clean(repoRoot), "-")
}

func (c *Claude) sessionDir(repoRoot string) string {
	return filepath.Join(c.projectsDir, ProjectDirName(repoRoot))
}

func (c *Claude) sessionFiles(repoRoot string) ([]string, error) {
	return filepath.Glob(filepath.Join(c.sessionDir(repoRoot), "*.jsonl"))
}

func (c *Claude) Discover(repoRoot string) bool {
	files, err := c.sessionFiles(repoRoot)
	return err == nil && len(files) > 0
}

func (c *Claude) Health() Health {
	if _, err := os.Stat(c.projectsDir); err != nil {
		return Health{OK: false, Reason: "claude projects directory not found"}
	}
	if !c.Discover(c.repoRoot) {
		return Health{OK: false, Reason: "no sessions for this repository"}
	}
	return Health{OK: true}
}

func (c *Claude) PullSince(ctx context.Context, since, until int64, cfg config.Config) ([]event.Event, error) {
	files, err := c.sessionFiles(c.repoRoot)
	if err != nil {
		return nil, fmt.Errorf("glob sessions: %w", err)
	}

	var out []event.Event
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		// Transcripts are append-only, so a file last written before the
		// window cannot contain events inside it.
		if info, err := os.Stat(path); err == nil && info.ModTime().UnixMilli() < since {
			continue
		}
		events, err := c.parseFile(path, since, until)
		if err != nil {
			c.logger.Debug("skipping claude session", "path", path, "error", err)
		}
		out = append(out, events...)
	}
	return out, nil
}

// parseFile streams one transcript. Lines that fail to decode are skipped;
// events read before a scanner error are still returned.
func (c *Claude) parseFile(path string, since, until int64) ([]event.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var out []event.Event
	var lastUser string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		var line ccLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != "user" && line.Type != "assistant" || line.IsMeta {
			continue
		}
		if line.Cwd != "" && !underRoot(line.Cwd, c.repoRoot) {
			continue
		}

		text, toolResultOnly := flattenContent(line.Message.Content)
		if strings.TrimSpace(text) == "" {
			continue
		}

		role := line.Message.Role
		if role == "" {
			role = line.Type
		}
		actor := event.ActorUser
		if role == "assistant" {
			actor = event.ActorAssistant
		}

		if actor == event.ActorUser && !toolResultOnly {
			lastUser = truncate(firstLine(text), respondsToMax)
		}

		ts, ok := parseTimestamp(line.Timestamp)
		if !ok || ts < since || ts >= until {
			continue
		}

		cwd := line.Cwd
		if cwd == "" {
			cwd = c.repoRoot
		}
		e := event.New(event.SourceClaude, event.KindChat, ts, c.repoRoot, cwd, text).WithActor(actor)
		e.Meta["tool"] = "claude"
		if line.SessionID != "" {
			e.Meta["session_id"] = line.SessionID
		}
		if line.UUID != "" {
			e.Meta["uuid"] = line.UUID
		}
		if line.Message.Model != "" {
			e.Meta["model"] = line.Message.Model
		}
		if actor == event.ActorAssistant && lastUser != "" {
			e.Meta["responds_to"] = lastUser
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

// Redact masks secrets and, for conversation text, email addresses.
func (c *Claude) Redact(e event.Event, cfg config.Config) event.Event {
	return event.Redact(e, masker(cfg, true))
}

// flattenContent renders a message's content as text. The bool reports
// whether the message consisted only of tool results.
func flattenContent(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, false
	}

	var blocks []ccContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}

	var parts []string
	toolResults := 0
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			parts = append(parts, fmt.Sprintf("[Tool: %s] %s", b.Name, toolArgument(b.Input)))
		case "tool_result":
			toolResults++
			parts = append(parts, "[Tool Result] "+truncate(toolResultText(b.Content), toolResultPreview))
		case "image":
			parts = append(parts, "[Image]")
		}
	}
	return strings.Join(parts, "\n"), toolResults > 0 && toolResults == len(parts)
}

// toolArgument picks the most telling argument of a tool invocation.
func toolArgument(input json.RawMessage) string {
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return "used"
	}
	if cmd, ok := args["command"].(string); ok && cmd != "" {
		return cmd
	}
	if p, ok := args["pattern"].(string); ok && p != "" {
		return "pattern: " + p
	}
	if p, ok := args["file_path"].(string); ok && p != "" {
		return p
	}
	return "used"
}

func toolResultText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var blocks []ccContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	}
	return ""
}

// parseTimestamp accepts RFC3339 strings and numeric epochs. Numbers below
// 1e10 are taken as seconds.
func parseTimestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 1e10 {
			return int64(n * 1000), true
		}
		return int64(n), true
	}
	return 0, false
}
