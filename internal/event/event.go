package event

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// Source identifies where an event was captured.
type Source string

const (
	SourceClaude Source = "claude"
	SourceCursor Source = "cursor"
	SourceShell  Source = "shell"
	SourceEditor Source = "editor"
	SourceGit    Source = "git"
)

func (s Source) Valid() bool {
	switch s {
	case SourceClaude, SourceCursor, SourceShell, SourceEditor, SourceGit:
		return true
	}
	return false
}

// Kind is the coarse category of an event.
type Kind string

const (
	KindChat      Kind = "chat"
	KindEdit      Kind = "edit"
	KindSave      Kind = "save"
	KindRun       Kind = "run"
	KindNavigate  Kind = "navigate"
	KindCommit    Kind = "commit"
	KindTest      Kind = "test"
	KindBenchmark Kind = "benchmark"
	KindError     Kind = "error"
	KindNote      Kind = "note"
	KindConfig    Kind = "config"
)

func (k Kind) Valid() bool {
	switch k {
	case KindChat, KindEdit, KindSave, KindRun, KindNavigate, KindCommit,
		KindTest, KindBenchmark, KindError, KindNote, KindConfig:
		return true
	}
	return false
}

// Actor is who authored a conversational event.
type Actor string

const (
	ActorUser      Actor = "user"
	ActorAssistant Actor = "assistant"
	ActorSystem    Actor = "system"
)

// Range is a numeric span such as a line range. It is always set as a pair.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Event is the record every collector produces. Treat values as immutable:
// use WithText, WithMeta or Clone to derive a changed copy.
type Event struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"ts"`
	Source    Source         `json:"source"`
	Kind      Kind           `json:"kind"`
	Repo      string         `json:"repo"`
	Cwd       string         `json:"cwd"`
	File      *string        `json:"file,omitempty"`
	Range     *Range         `json:"range,omitempty"`
	Actor     *Actor         `json:"actor,omitempty"`
	Text      string         `json:"text"`
	URL       *string        `json:"url,omitempty"`
	Meta      map[string]any `json:"meta"`
}

// New builds an event with a fresh id.
func New(source Source, kind Kind, ts int64, repo, cwd, text string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Source:    source,
		Kind:      kind,
		Repo:      repo,
		Cwd:       cwd,
		Text:      text,
		Meta:      map[string]any{},
	}
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	out := e
	out.Meta = maps.Clone(e.Meta)
	if out.Meta == nil {
		out.Meta = map[string]any{}
	}
	if e.File != nil {
		f := *e.File
		out.File = &f
	}
	if e.Range != nil {
		r := *e.Range
		out.Range = &r
	}
	if e.Actor != nil {
		a := *e.Actor
		out.Actor = &a
	}
	if e.URL != nil {
		u := *e.URL
		out.URL = &u
	}
	return out
}

func (e Event) WithText(text string) Event {
	out := e.Clone()
	out.Text = text
	return out
}

func (e Event) WithActor(a Actor) Event {
	out := e.Clone()
	out.Actor = &a
	return out
}

func (e Event) WithFile(path string) Event {
	out := e.Clone()
	out.File = &path
	return out
}

func (e Event) WithRange(start, end int) Event {
	out := e.Clone()
	out.Range = &Range{Start: start, End: end}
	return out
}

func (e Event) WithURL(u string) Event {
	out := e.Clone()
	out.URL = &u
	return out
}

// WithMeta returns a copy with key set in the metadata bag.
func (e Event) WithMeta(key string, value any) Event {
	out := e.Clone()
	out.Meta[key] = value
	return out
}

// IsActor reports whether the event was authored by a.
func (e Event) IsActor(a Actor) bool {
	return e.Actor != nil && *e.Actor == a
}

// ActorName returns the actor value or "unknown".
func (e Event) ActorName() string {
	if e.Actor == nil {
		return "unknown"
	}
	return string(*e.Actor)
}

// MetaString returns a string metadata value, or "" when absent or not a string.
func (e Event) MetaString(key string) string {
	if e.Meta == nil {
		return ""
	}
	s, _ := e.Meta[key].(string)
	return s
}

// InWindow reports whether since <= ts < until.
func (e Event) InWindow(since, until int64) bool {
	return e.Timestamp >= since && e.Timestamp < until
}

// Validate checks the structural invariants of an event.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event has no id")
	}
	if !e.Source.Valid() {
		return fmt.Errorf("invalid source %q", e.Source)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", e.Kind)
	}
	if e.Range != nil && e.Range.End < e.Range.Start {
		return fmt.Errorf("range end %d before start %d", e.Range.End, e.Range.Start)
	}
	if e.Actor != nil {
		switch *e.Actor {
		case ActorUser, ActorAssistant, ActorSystem:
		default:
			return fmt.Errorf("invalid actor %q", *e.Actor)
		}
	}
	return nil
}
