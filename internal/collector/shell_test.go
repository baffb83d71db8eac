package collector

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
)

func TestClassifyCommand(t *testing.T) {
	cases := []struct {
		cmd      string
		exit     int
		kind     event.Kind
		category string
	}{
		{"go test ./...", 0, event.KindTest, "test"},
		{"npm run test -- --watch", 1, event.KindTest, "test"},
		{"pytest -k login", 0, event.KindTest, "test"},
		{"go build ./cmd/sayu", 0, event.KindRun, "build"},
		{"make", 2, event.KindRun, "build"},
		{"git status", 0, event.KindRun, "vcs"},
		{"hyperfine ./bin/app", 0, event.KindBenchmark, "benchmark"},
		{"grep -r error logs/", 0, event.KindError, "error"},
		{"./deploy.sh", 1, event.KindError, "error"},
		{"ls -la", 0, event.KindRun, "generic"},
	}
	for _, tc := range cases {
		kind, category := ClassifyCommand(tc.cmd, tc.exit)
		if kind != tc.kind || category != tc.category {
			t.Errorf("ClassifyCommand(%q, %d) = %s/%s, want %s/%s", tc.cmd, tc.exit, kind, category, tc.kind, tc.category)
		}
	}
}

func TestShell_PullSince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.jsonl")
	in := strconv.FormatInt(windowStart+1000, 10)
	writeLines(t, path, []string{
		`{"ts":` + in + `,"cmd":"go test ./...","exitCode":1,"duration":4200,"cwd":"/work/app"}`,
		`{"ts":` + in + `,"cmd":"ls","exitCode":0,"duration":3,"cwd":"/work/other"}`,
		`{"ts":1,"cmd":"old","exitCode":0,"duration":3,"cwd":"/work/app"}`,
		`{"ts":` + in + `,"cmd":"   ","cwd":"/work/app"}`,
		`garbage`,
		`{"ts":` + in + `,"cmd":"vim main.go","cwd":"/work/app/cmd"}`,
	})

	s := NewShell(path, "/work/app", nil)
	events, err := s.PullSince(context.Background(), windowStart, windowEnd, config.Defaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	test := events[0]
	if test.Kind != event.KindTest || test.MetaString("category") != "test" || test.MetaString("tool") != "shell" {
		t.Errorf("test event = %+v", test)
	}
	if test.Meta["exit_code"] != 1 || test.Meta["duration_ms"] != int64(4200) {
		t.Errorf("meta = %v", test.Meta)
	}
	if _, ok := events[1].Meta["exit_code"]; ok {
		t.Error("exit_code should be absent when the hook did not record it")
	}
	if events[1].Cwd != "/work/app/cmd" || events[1].Repo != "/work/app" {
		t.Errorf("cwd/repo = %q %q", events[1].Cwd, events[1].Repo)
	}
}

func TestShell_MissingLog(t *testing.T) {
	s := NewShell(filepath.Join(t.TempDir(), "none.jsonl"), "/work/app", nil)
	events, err := s.PullSince(context.Background(), 0, windowEnd, config.Defaults())
	if err != nil || len(events) != 0 {
		t.Errorf("missing log = %d events, %v", len(events), err)
	}
	if s.Discover("/work/app") || s.Health().OK {
		t.Error("expected undiscovered and unhealthy")
	}
}

func TestShell_RedactKeepsEmailsByDefault(t *testing.T) {
	s := NewShell("", "/work/app", nil)
	e := event.New(event.SourceShell, event.KindRun, 1, "/work/app", "/work/app", "git config user.email dev@example.com && export API_KEY=abc123")
	got := s.Redact(e, config.Defaults())
	if got.Text != "git config user.email dev@example.com && export [REDACTED]" {
		t.Errorf("redacted = %q", got.Text)
	}
}
