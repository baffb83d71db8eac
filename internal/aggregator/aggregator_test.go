package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/sayu/internal/collector"
	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeBoundary struct {
	ts  int64
	ok  bool
	err error
}

func (f fakeBoundary) LastCommitTime(context.Context, string) (int64, bool, error) {
	return f.ts, f.ok, f.err
}

type fakeCollector struct {
	name   string
	events []event.Event
	err    error
	panics bool
	calls  *int
}

func (f fakeCollector) Name() string             { return f.name }
func (f fakeCollector) Discover(string) bool     { return true }
func (f fakeCollector) Health() collector.Health { return collector.Health{OK: true} }
func (f fakeCollector) PullSince(_ context.Context, since, until int64, _ config.Config) ([]event.Event, error) {
	if f.calls != nil {
		*f.calls++
	}
	if f.panics {
		panic("boom")
	}
	return f.events, f.err
}

type redactingCollector struct{ fakeCollector }

func (r redactingCollector) Redact(e event.Event, _ config.Config) event.Event {
	return e.WithText("masked")
}

func newTestAggregator(b Boundary, cs ...collector.Collector) *Aggregator {
	cfg := config.Defaults()
	a := New(collector.NewRegistry(cs...), b, cfg, discardLogger())
	a.SetClock(func() time.Time { return fixedNow })
	return a
}

func chat(name string, ts int64) event.Event {
	return event.New(event.SourceClaude, event.KindChat, ts, "/repo", "/repo", name).WithActor(event.ActorUser)
}

func TestResolve_UsesBoundaryExactly(t *testing.T) {
	boundary := fixedNow.Add(-3 * time.Hour).UnixMilli()
	a := newTestAggregator(fakeBoundary{ts: boundary, ok: true})

	for _, mode := range []Mode{ModeHook, ModeDefault} {
		since, until, err := a.Resolve(context.Background(), "/repo", mode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if since != boundary {
			t.Errorf("mode %d: since = %d, want boundary %d", mode, since, boundary)
		}
		if until != fixedNow.UnixMilli() {
			t.Errorf("mode %d: until = %d", mode, until)
		}
	}
}

func TestResolve_FirstRunDefault(t *testing.T) {
	a := newTestAggregator(fakeBoundary{})

	since, _, _ := a.Resolve(context.Background(), "/repo", ModeDefault)
	if want := fixedNow.Add(-168 * time.Hour).UnixMilli(); since != want {
		t.Errorf("default since = %d, want %d", since, want)
	}

	since, _, _ = a.Resolve(context.Background(), "/repo", ModeHook)
	if want := fixedNow.Add(-24 * time.Hour).UnixMilli(); since != want {
		t.Errorf("hook since = %d, want %d", since, want)
	}
}

func TestResolve_BoundaryErrorFallsBack(t *testing.T) {
	a := newTestAggregator(fakeBoundary{err: errors.New("db locked")})
	since, _, err := a.Resolve(context.Background(), "/repo", ModeHook)
	if err == nil {
		t.Fatal("expected the lookup error to be reported")
	}
	if want := fixedNow.Add(-24 * time.Hour).UnixMilli(); since != want {
		t.Errorf("since = %d, want %d", since, want)
	}
}

func TestCollect_IsolatesFailingCollector(t *testing.T) {
	base := fixedNow.Add(-time.Hour).UnixMilli()
	a1 := []event.Event{chat("a1", base+10), chat("a2", base+40)}
	b1 := []event.Event{chat("b1", base+20)}
	c1 := []event.Event{chat("c1", base+30), chat("c2", base+50)}

	calls := 0
	a := newTestAggregator(fakeBoundary{},
		fakeCollector{name: "claude", events: a1},
		fakeCollector{name: "cursor", panics: true, calls: &calls},
		fakeCollector{name: "shell", events: b1},
		fakeCollector{name: "git", events: c1},
	)

	res := a.Collect(context.Background(), "/repo", ModeHook)
	if calls != 1 {
		t.Errorf("panicking collector called %d times", calls)
	}
	if !res.IsDegraded() {
		t.Error("expected degraded result after a panic")
	}

	var got []string
	for _, e := range res.Value.Events {
		got = append(got, e.Text)
	}
	want := []string{"a1", "b1", "c1", "a2", "c2"}
	if len(got) != len(want) {
		t.Fatalf("events = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events = %q, want %q", got, want)
			break
		}
	}
}

func TestCollect_ErrorContributesNothing(t *testing.T) {
	base := fixedNow.Add(-time.Hour).UnixMilli()
	a := newTestAggregator(fakeBoundary{},
		fakeCollector{name: "claude", events: []event.Event{chat("partial", base)}, err: errors.New("truncated")},
		fakeCollector{name: "git", events: []event.Event{chat("ok", base)}},
	)

	res := a.Collect(context.Background(), "/repo", ModeHook)
	if len(res.Value.Events) != 1 || res.Value.Events[0].Text != "ok" {
		t.Errorf("events = %+v", res.Value.Events)
	}
}

func TestCollect_StableSortAndWindow(t *testing.T) {
	base := fixedNow.Add(-time.Hour).UnixMilli()
	a := newTestAggregator(fakeBoundary{ts: base, ok: true},
		fakeCollector{name: "claude", events: []event.Event{
			chat("same-1", base+5),
			chat("before", base-1),
			chat("same-2", base+5),
			chat("future", fixedNow.UnixMilli()),
		}},
	)

	res := a.Collect(context.Background(), "/repo", ModeHook)
	if res.Value.Since != base {
		t.Errorf("since = %d", res.Value.Since)
	}
	events := res.Value.Events
	if len(events) != 2 || events[0].Text != "same-1" || events[1].Text != "same-2" {
		t.Errorf("events = %+v", events)
	}
}

func TestCollect_RedactsAndSkipsDisabled(t *testing.T) {
	base := fixedNow.Add(-time.Hour).UnixMilli()
	calls := 0
	a := newTestAggregator(fakeBoundary{},
		redactingCollector{fakeCollector{name: "claude", events: []event.Event{chat("secret", base)}}},
		fakeCollector{name: "shell", calls: &calls},
	)
	a.cfg.Connectors.CLI.Mode = "off"

	res := a.Collect(context.Background(), "/repo", ModeHook)
	if calls != 0 {
		t.Error("disabled collector should not run")
	}
	if len(res.Value.Events) != 1 || res.Value.Events[0].Text != "masked" {
		t.Errorf("events = %+v", res.Value.Events)
	}
	if res.IsDegraded() {
		t.Errorf("unexpected degraded cause: %v", res.Degraded)
	}
}
