package hook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/collector"
	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/gitx"
	"github.com/MikeSquared-Agency/sayu/internal/hermes"
	"github.com/MikeSquared-Agency/sayu/internal/store"
	"github.com/MikeSquared-Agency/sayu/internal/summary"
)

const repoRoot = "/work/app"

var (
	lastCommit = time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)
	hookNow    = lastCommit.Add(time.Hour)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGit answers by the joined argument list; unknown commands succeed with
// empty output.
type fakeGit struct {
	out map[string]string
	err map[string]error
}

func (f *fakeGit) Run(_ context.Context, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	if err, ok := f.err[key]; ok {
		return "", err
	}
	return f.out[key], nil
}

func stagedGit() *fakeGit {
	return &fakeGit{out: map[string]string{
		"diff --cached --name-only": "auth.js\n",
		"diff --cached --stat":      " auth.js | 2 +-\n 1 file changed\n",
	}}
}

type stubCollector struct {
	events []event.Event
	panics bool
}

func (s stubCollector) Name() string             { return "stub" }
func (s stubCollector) Discover(string) bool     { return true }
func (s stubCollector) Health() collector.Health { return collector.Health{OK: true} }
func (s stubCollector) PullSince(context.Context, int64, int64, config.Config) ([]event.Event, error) {
	if s.panics {
		panic("collector blew up")
	}
	return s.events, nil
}

type fakeSummarizer struct {
	reply  string
	err    error
	panics bool
	calls  []string
}

func (f *fakeSummarizer) Name() string { return "fake" }

func (f *fakeSummarizer) Generate(_ context.Context, prompt string) (string, error) {
	if f.panics {
		panic("summarizer blew up")
	}
	f.calls = append(f.calls, prompt)
	return f.reply, f.err
}

func chat(actor event.Actor, at time.Time, text string) event.Event {
	return event.New(event.SourceClaude, event.KindChat, at.UnixMilli(), repoRoot, repoRoot, text).
		WithActor(actor).
		WithMeta("tool", "claude")
}

type harness struct {
	shell  *Shell
	git    *fakeGit
	sum    *fakeSummarizer
	stderr *bytes.Buffer
	dbPath string
	msg    string
}

func newHarness(t *testing.T, git *fakeGit, events ...event.Event) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		git:    git,
		sum:    &fakeSummarizer{reply: `{"intent":"Fix null check","changes":"auth.js: guard expired tokens","context":"User reported a crash"}`},
		stderr: &bytes.Buffer{},
		dbPath: filepath.Join(dir, "events.db"),
		msg:    filepath.Join(dir, "COMMIT_EDITMSG"),
	}

	cfg := config.Defaults()
	cfg.DBPath = h.dbPath
	h.shell = New(gitx.NewRepo(repoRoot, git), cfg, discardLogger())
	h.shell.SetStderr(h.stderr)
	h.shell.SetClock(func() time.Time { return hookNow })
	h.shell.SetRegistry(collector.NewRegistry(stubCollector{events: events}))
	h.shell.SetSummarizer(h.sum)
	h.shell.SetPublisher(nil)
	h.shell.SetStoreOpener(func(context.Context) (store.Store, error) {
		return store.NewSQLite(h.dbPath, nil)
	})
	return h
}

func (h *harness) writeMessage(t *testing.T, msg string) {
	t.Helper()
	if err := os.WriteFile(h.msg, []byte(msg), 0o644); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func (h *harness) readMessage(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.msg)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	return string(data)
}

func (h *harness) seedBoundary(t *testing.T) {
	t.Helper()
	st, err := store.NewSQLite(h.dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	e := BoundaryEvent(repoRoot, repoRoot, gitx.Commit{Hash: "0123456789abcdef", Subject: "previous", Time: lastCommit})
	if err := st.Insert(context.Background(), e); err != nil {
		t.Fatalf("insert boundary: %v", err)
	}
}

func TestCommitMsg_EndToEnd(t *testing.T) {
	before := lastCommit.Add(-10 * time.Minute)
	after := lastCommit.Add(10 * time.Minute)
	h := newHarness(t, stagedGit(),
		chat(event.ActorUser, before, "an older question that belongs to the previous commit"),
		chat(event.ActorUser, after, "fix the null check in auth.js"),
		chat(event.ActorAssistant, after.Add(time.Minute), "I added a guard so expired tokens no longer dereference a null session object."),
	)
	h.seedBoundary(t)
	h.writeMessage(t, "fix: null check\n")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}

	want := "fix: null check\n\n" +
		"---\n" +
		"AI-Context (sayu)\n" +
		"\n" +
		"Intent:\n" +
		"  Fix null check\n" +
		"\n" +
		"Changes:\n" +
		"  auth.js: guard expired tokens\n" +
		"\n" +
		"Context:\n" +
		"  User reported a crash\n" +
		"---\n"
	if got := h.readMessage(t); got != want {
		t.Errorf("message mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}

	if len(h.sum.calls) != 1 {
		t.Fatalf("expected one summarizer call, got %d", len(h.sum.calls))
	}
	prompt := h.sum.calls[0]
	if !strings.Contains(prompt, "fix the null check in auth.js") {
		t.Error("prompt is missing the in-window user turn")
	}
	if strings.Contains(prompt, "an older question") {
		t.Error("prompt includes an event from before the last commit")
	}
	if !strings.Contains(prompt, "auth.js | 2 +-") {
		t.Error("prompt is missing the diff stat")
	}
}

func TestCommitMsg_Idempotent(t *testing.T) {
	h := newHarness(t, stagedGit(), chat(event.ActorUser, hookNow.Add(-time.Minute), "fix the null check"))
	h.writeMessage(t, "fix: null check\n")

	h.shell.CommitMsg(context.Background(), h.msg)
	once := h.readMessage(t)
	h.shell.CommitMsg(context.Background(), h.msg)

	if twice := h.readMessage(t); twice != once {
		t.Errorf("second run changed the message:\n%s", twice)
	}
	if strings.Count(once, summary.Header) != 1 {
		t.Errorf("expected exactly one trailer:\n%s", once)
	}
	if len(h.sum.calls) != 1 {
		t.Errorf("summarizer called %d times", len(h.sum.calls))
	}
}

func TestCommitMsg_VerboseCommitKeepsTrailerAboveDiff(t *testing.T) {
	h := newHarness(t, stagedGit(), chat(event.ActorUser, hookNow.Add(-time.Minute), "fix the null check"))
	diff := "# ------------------------ >8 ------------------------\n" +
		"# Do not modify or remove the line above.\n" +
		"diff --git a/auth.js b/auth.js\n"
	h.writeMessage(t, "fix: null check\n\n"+diff)

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	got := h.readMessage(t)
	if !strings.HasSuffix(got, "---\n"+diff) {
		t.Errorf("trailer not placed above the scissors line:\n%s", got)
	}
	if i, j := strings.Index(got, summary.Header), strings.Index(got, ">8"); i < 0 || i > j {
		t.Errorf("header at %d, scissors at %d", i, j)
	}
}

func TestCommitMsg_FallbackExhaustion(t *testing.T) {
	h := newHarness(t, stagedGit(), chat(event.ActorUser, hookNow.Add(-time.Minute), "fix the null check"))
	h.sum.err = errors.New("503 service unavailable")
	h.writeMessage(t, "fix: null check")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	want := "fix: null check\n\n---\nAI-Context (sayu)\n\nFiles: auth.js\nEvents: 1 LLM interactions (claude)\n---\n"
	if got := h.readMessage(t); got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
	if len(h.sum.calls) != 2 {
		t.Errorf("expected full and simplified attempts, got %d", len(h.sum.calls))
	}
}

func TestCommitMsg_NoSummarizer(t *testing.T) {
	h := newHarness(t, stagedGit())
	h.shell.SetSummarizer(nil)
	h.writeMessage(t, "docs: readme")

	h.shell.CommitMsg(context.Background(), h.msg)
	if got := h.readMessage(t); !strings.Contains(got, "Events: Code changes only") {
		t.Errorf("expected minimal trailer, got %q", got)
	}
}

func TestCommitMsg_EmptyCommitRejected(t *testing.T) {
	h := newHarness(t, &fakeGit{}, chat(event.ActorUser, hookNow.Add(-time.Minute), "hello"))
	h.writeMessage(t, "empty\n")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitEmptyCommit {
		t.Fatalf("exit code = %d, want %d", code, ExitEmptyCommit)
	}
	out := h.stderr.String()
	for _, want := range []string{msgEmptyRejected, msgAllowEmpty} {
		if !strings.Contains(out, want) {
			t.Errorf("stderr missing %q:\n%s", want, out)
		}
	}
	if len(h.sum.calls) != 0 {
		t.Error("summarizer ran for a rejected commit")
	}
	if got := h.readMessage(t); got != "empty\n" {
		t.Errorf("message changed: %q", got)
	}
}

func TestCommitMsg_UnstagedChangesAllowed(t *testing.T) {
	git := &fakeGit{out: map[string]string{"status --porcelain": " M config.yml\n"}}
	h := newHarness(t, git)
	h.writeMessage(t, "chore: config\n")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(h.stderr.String(), msgUnstagedOnly) {
		t.Errorf("expected warning, got %q", h.stderr.String())
	}
}

func TestCommitMsg_AllowEmpty(t *testing.T) {
	h := newHarness(t, &fakeGit{})
	h.shell.cfg.AllowEmpty = true
	h.writeMessage(t, "empty on purpose\n")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if h.stderr.Len() != 0 {
		t.Errorf("unexpected output %q", h.stderr.String())
	}
}

func TestCommitMsg_PrecheckGitErrorFailsOpen(t *testing.T) {
	git := stagedGit()
	git.err = map[string]error{"diff --cached --name-only": errors.New("index locked")}
	h := newHarness(t, git)
	h.writeMessage(t, "fix: thing\n")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
}

func TestCommitMsg_SkippedMessages(t *testing.T) {
	cases := []struct {
		name string
		msg  string
	}{
		{"merge", "Merge branch 'feature' into main\n"},
		{"fixup", "fixup! fix: null check\n"},
		{"squash", "squash! fix: null check\n"},
		{"existing trailer", "fix: x\n\n" + summary.FormatMinimal(nil, nil) + "\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, stagedGit())
			h.writeMessage(t, tc.msg)

			h.shell.CommitMsg(context.Background(), h.msg)
			if got := h.readMessage(t); got != tc.msg {
				t.Errorf("message changed to %q", got)
			}
			if len(h.sum.calls) != 0 {
				t.Error("summarizer should not run")
			}
		})
	}
}

func TestCommitMsg_Disabled(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.Enabled = false },
		func(c *config.Config) { c.CommitTrailer = false },
	} {
		h := newHarness(t, stagedGit())
		mutate(&h.shell.cfg)
		h.writeMessage(t, "fix: x\n")

		h.shell.CommitMsg(context.Background(), h.msg)
		if got := h.readMessage(t); got != "fix: x\n" {
			t.Errorf("message changed to %q", got)
		}
	}
}

func TestCommitMsg_StoreUnavailable(t *testing.T) {
	h := newHarness(t, stagedGit())
	h.shell.SetStoreOpener(func(context.Context) (store.Store, error) {
		return nil, errors.New("disk full")
	})
	h.writeMessage(t, "fix: x\n")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !summary.HasTrailer(h.readMessage(t)) {
		t.Error("expected a trailer without a store")
	}
}

func TestCommitMsg_PanicsAreContained(t *testing.T) {
	h := newHarness(t, stagedGit(), chat(event.ActorUser, hookNow.Add(-time.Minute), "fix"))
	h.shell.SetRegistry(collector.NewRegistry(stubCollector{panics: true}))
	h.sum.panics = true
	h.writeMessage(t, "fix: x\n")

	if code := h.shell.CommitMsg(context.Background(), h.msg); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if got := h.readMessage(t); got != "fix: x\n" {
		t.Errorf("message changed to %q", got)
	}
}

func TestCommitMsg_MissingMessageFile(t *testing.T) {
	h := newHarness(t, stagedGit())
	if code := h.shell.CommitMsg(context.Background(), filepath.Join(t.TempDir(), "missing")); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
}

type fakePublisher struct {
	subject string
	data    any
	flushed bool
	closed  bool
}

func (p *fakePublisher) Publish(subject string, data any) error {
	p.subject, p.data = subject, data
	return nil
}

func (p *fakePublisher) Flush(context.Context) error {
	p.flushed = true
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

func TestPostCommit_RecordsBoundary(t *testing.T) {
	committed := time.Date(2026, 2, 11, 10, 30, 0, 0, time.UTC)
	trailer := summary.FormatTrailer(summary.Sections{Intent: "Fix null check"})
	git := &fakeGit{out: map[string]string{
		"log -1 --format=%H|%s|%an|%ae|%at|%P|%D": "3f2a9c1d0e4b5a69|fix: null check|Dana|dana@example.com|" + strconv.FormatInt(committed.Unix(), 10) + "|abc123|HEAD -> main\n",
		"log -1 --format=%B 3f2a9c1d0e4b5a69":   "fix: null check\n\n" + trailer + "\n",
	}}
	h := newHarness(t, git)
	pub := &fakePublisher{}
	h.shell.SetPublisher(func(context.Context) (Publisher, error) { return pub, nil })

	if code := h.shell.PostCommit(context.Background()); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}

	st, err := store.NewSQLite(h.dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	ts, ok, err := st.LastCommitTime(context.Background(), repoRoot)
	if err != nil || !ok {
		t.Fatalf("LastCommitTime = %d, %v, %v", ts, ok, err)
	}
	if ts != committed.UnixMilli() {
		t.Errorf("boundary ts = %d, want %d", ts, committed.UnixMilli())
	}

	events, err := st.Recent(context.Background(), repoRoot, 1)
	if err != nil || len(events) != 1 {
		t.Fatalf("Recent = %v, %v", events, err)
	}
	if events[0].Text != "fix: null check" || events[0].MetaString("hash") != "3f2a9c1d0e4b5a69" {
		t.Errorf("event = %q %v", events[0].Text, events[0].Meta)
	}
	if events[0].MetaString("email") != "dana@example.com" {
		t.Errorf("meta = %v", events[0].Meta)
	}

	cc, ok := pub.data.(hermes.CommitContext)
	if !ok || pub.subject != hermes.SubjectCommitContext {
		t.Fatalf("published %q %T", pub.subject, pub.data)
	}
	if cc.Trailer != trailer || cc.Hash != "3f2a9c1d0e4b5a69" {
		t.Errorf("commit context = %+v", cc)
	}
	if !pub.flushed || !pub.closed {
		t.Error("publisher not flushed and closed")
	}
}

func TestPostCommit_FailuresAreSwallowed(t *testing.T) {
	git := &fakeGit{err: map[string]error{"log -1 --format=%H|%s|%an|%ae|%at|%P|%D": errors.New("no HEAD")}}
	h := newHarness(t, git)
	if code := h.shell.PostCommit(context.Background()); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}

	h = newHarness(t, &fakeGit{out: map[string]string{"log -1 --format=%H|%s|%an|%ae|%at|%P|%D": "abc|s|a|e|1||"}})
	h.shell.SetPublisher(func(context.Context) (Publisher, error) { return nil, errors.New("nats down") })
	if code := h.shell.PostCommit(context.Background()); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
}

func TestBoundaryEvent(t *testing.T) {
	e := BoundaryEvent("/r", "/r/sub", gitx.Commit{Hash: "short", Subject: "s", Time: time.UnixMilli(5000)})
	if e.Source != event.SourceGit || e.Kind != event.KindCommit || e.Timestamp != 5000 {
		t.Errorf("event = %+v", e)
	}
	if e.Text != "s" || e.MetaString("hash") != "short" {
		t.Errorf("event = %q %v", e.Text, e.Meta)
	}
	if _, ok := e.Meta["refs"]; ok {
		t.Errorf("refs recorded for a commit without refs: %v", e.Meta)
	}
}
