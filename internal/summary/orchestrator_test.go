package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedSummarizer returns its replies in order. A blocking reply waits
// for the context to expire.
type scriptedSummarizer struct {
	replies []reply
	prompts []string
}

type reply struct {
	text  string
	err   error
	block bool
}

func (s *scriptedSummarizer) Name() string { return "scripted" }

func (s *scriptedSummarizer) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	r := s.replies[len(s.prompts)-1]
	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func testInput() Input {
	return Input{
		Events: []event.Event{
			chatEvent(event.ActorUser, "claude", "fix the null check"),
			chatEvent(event.ActorAssistant, "claude", "Updated the null check in auth.js to handle the expired-token case properly."),
		},
		StagedFiles: []string{"auth.js"},
		DiffStat:    " auth.js | 2 +-",
	}
}

func TestGenerate_FullPath(t *testing.T) {
	s := &scriptedSummarizer{replies: []reply{{text: `{"intent":"Fix null check","changes":"auth.js","context":"crash"}`}}}
	o := New(s, config.Defaults(), discardLogger())

	res := o.Generate(context.Background(), testInput())
	if res.IsDegraded() {
		t.Fatalf("unexpected degraded: %v", res.Degraded)
	}
	if res.Value.Path != PathFull || res.Value.Raw {
		t.Errorf("path = %q raw = %v", res.Value.Path, res.Value.Raw)
	}
	want := FormatTrailer(Sections{Intent: "Fix null check", Changes: "auth.js", Context: "crash"})
	if res.Value.Trailer != want {
		t.Errorf("trailer = %q", res.Value.Trailer)
	}
	if len(s.prompts) != 1 || !strings.Contains(s.prompts[0], "[user]: fix the null check") {
		t.Errorf("prompt missing conversation: %q", s.prompts)
	}
	if !strings.Contains(s.prompts[0], "Total 2 exchanges") {
		t.Error("prompt missing process analysis")
	}
}

func TestGenerate_UnparseableKeepsRawAndDoesNotRetry(t *testing.T) {
	s := &scriptedSummarizer{replies: []reply{{text: "I could not produce JSON, sorry"}}}
	o := New(s, config.Defaults(), discardLogger())

	res := o.Generate(context.Background(), testInput())
	if len(s.prompts) != 1 {
		t.Errorf("expected one call, got %d", len(s.prompts))
	}
	if !res.Value.Raw || !strings.Contains(res.Value.Trailer, "Summary: I could not produce JSON, sorry") {
		t.Errorf("outcome = %+v", res.Value)
	}
}

func TestGenerate_SimplifiedAfterCallFailure(t *testing.T) {
	s := &scriptedSummarizer{replies: []reply{
		{err: errors.New("503")},
		{text: `{"intent":"retry worked"}`},
	}}
	cfg := config.Defaults()
	o := New(s, cfg, discardLogger())

	res := o.Generate(context.Background(), testInput())
	if res.Value.Path != PathSimplified {
		t.Errorf("path = %q", res.Value.Path)
	}
	if !res.IsDegraded() {
		t.Error("expected the full failure to be recorded")
	}
	if !strings.Contains(s.prompts[1], "Analyze this commit focusing on the development flow") {
		t.Error("second call should use the simplified prompt")
	}
}

func TestGenerate_ChainExhaustion(t *testing.T) {
	s := &scriptedSummarizer{replies: []reply{{err: errors.New("boom")}, {err: errors.New("boom again")}}}
	o := New(s, config.Defaults(), discardLogger())

	res := o.Generate(context.Background(), testInput())
	if res.Value.Path != PathMinimal {
		t.Fatalf("path = %q", res.Value.Path)
	}
	if !strings.Contains(res.Value.Trailer, "Files: auth.js\nEvents: 2 LLM interactions (claude)") {
		t.Errorf("trailer = %q", res.Value.Trailer)
	}
	if len(s.prompts) != 2 {
		t.Errorf("expected exactly two calls, got %d", len(s.prompts))
	}
}

func TestGenerate_TimeoutCountsAsFailure(t *testing.T) {
	s := &scriptedSummarizer{replies: []reply{{block: true}, {block: true}}}
	cfg := config.Defaults()
	cfg.LLMTimeout = 20 * time.Millisecond
	o := New(s, cfg, discardLogger())

	res := o.Generate(context.Background(), testInput())
	if res.Value.Path != PathMinimal || !errors.Is(res.Degraded, context.DeadlineExceeded) {
		t.Errorf("path = %q degraded = %v", res.Value.Path, res.Degraded)
	}
}

func TestGenerate_NoSummarizer(t *testing.T) {
	o := New(nil, config.Defaults(), discardLogger())
	res := o.Generate(context.Background(), testInput())
	if res.Value.Path != PathMinimal || !errors.Is(res.Degraded, llm.ErrNoSummarizer) {
		t.Errorf("outcome = %+v degraded = %v", res.Value, res.Degraded)
	}
}

func TestGenerate_KoreanPrompt(t *testing.T) {
	s := &scriptedSummarizer{replies: []reply{{text: `{"what_changed":"수정","conversation_flow":"흐름","intent":"목적"}`}}}
	cfg := config.Defaults()
	cfg.Language = "ko"
	o := New(s, cfg, discardLogger())

	res := o.Generate(context.Background(), testInput())
	if !strings.Contains(s.prompts[0], "이 커밋의 맥락을 분석") {
		t.Error("expected korean prompt")
	}
	if !strings.Contains(res.Value.Trailer, "Changes:\n  수정") {
		t.Errorf("trailer = %q", res.Value.Trailer)
	}
}

func TestConversation(t *testing.T) {
	events := []event.Event{
		chatEvent(event.ActorUser, "claude", "one"),
		chatEvent(event.ActorAssistant, "claude", "two two two"),
		event.New(event.SourceGit, event.KindNote, 1, "/r", "/r", "three"),
	}
	got := Conversation(events, 2, 3)
	if got != "[assistant]: two\n[unknown]: thr" {
		t.Errorf("got %q", got)
	}
}
