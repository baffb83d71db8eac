// Package summary turns filtered events and staged changes into the commit
// trailer, trying the full prompt, then a simplified one, then a rule-based
// minimal summary.
package summary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/llm"
	"github.com/MikeSquared-Agency/sayu/internal/pipeline"
)

// Path records which step produced a trailer.
type Path string

const (
	PathFull       Path = "full"
	PathSimplified Path = "simplified"
	PathMinimal    Path = "minimal"
)

// Input is what the orchestrator summarizes. Events are the filtered
// conversation turns in ascending order.
type Input struct {
	Events      []event.Event
	StagedFiles []string
	DiffStat    string
}

// Outcome is the trailer text and how it was produced. Raw is set when the
// model answered but its reply was not valid JSON.
type Outcome struct {
	Trailer string
	Path    Path
	Raw     bool
}

type Orchestrator struct {
	summarizer llm.Summarizer
	cfg        config.Config
	logger     *slog.Logger
}

// New returns an orchestrator. A nil summarizer goes straight to the
// minimal summary.
func New(summarizer llm.Summarizer, cfg config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{summarizer: summarizer, cfg: cfg, logger: logger}
}

// Generate always returns a trailer. Call failures and the absence of a
// summarizer are reported through Degraded.
func (o *Orchestrator) Generate(ctx context.Context, in Input) pipeline.Result[Outcome] {
	diff := truncateRunes(in.DiffStat, o.cfg.Limits.DiffStatChars)

	if o.summarizer == nil {
		return pipeline.Degrade(o.minimal(in), llm.ErrNoSummarizer)
	}

	lim := o.cfg.Limits
	fullPrompt := MainPrompt(o.cfg.Language,
		Conversation(in.Events, lim.MaxConversationCount, lim.MaxConversationLength),
		in.StagedFiles, diff, AnalyzeProcess(in.Events))

	o.logger.Debug("requesting summary", "provider", o.summarizer.Name(), "events", len(in.Events), "prompt_len", len(fullPrompt))
	resp, fullErr := o.call(ctx, fullPrompt)
	if fullErr == nil {
		return pipeline.OK(fromResponse(resp, PathFull))
	}
	o.logger.Debug("full summary failed, retrying simplified", "error", fullErr)

	simplePrompt := SimplifiedPrompt(o.cfg.Language,
		Conversation(in.Events, lim.SimplifiedConversationCount, lim.SimplifiedConversationLength),
		in.StagedFiles, diff)
	resp, simpleErr := o.call(ctx, simplePrompt)
	if simpleErr == nil {
		return pipeline.Degrade(fromResponse(resp, PathSimplified), fmt.Errorf("full summary: %w", fullErr))
	}
	o.logger.Debug("simplified summary failed, using minimal", "error", simpleErr)

	res := pipeline.Degrade(o.minimal(in), fmt.Errorf("full summary: %w", fullErr))
	return res.Join(fmt.Errorf("simplified summary: %w", simpleErr))
}

func (o *Orchestrator) call(ctx context.Context, prompt string) (string, error) {
	timeout := o.cfg.LLMTimeout
	if timeout <= 0 {
		timeout = config.Defaults().LLMTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return o.summarizer.Generate(ctx, prompt)
}

func (o *Orchestrator) minimal(in Input) Outcome {
	return Outcome{Trailer: FormatMinimal(in.Events, in.StagedFiles), Path: PathMinimal}
}

func fromResponse(resp string, path Path) Outcome {
	sections, err := ParseSections(resp)
	if err != nil {
		return Outcome{Trailer: FormatRaw(resp), Path: path, Raw: true}
	}
	return Outcome{Trailer: FormatTrailer(sections), Path: path}
}

// Conversation renders the last count events as "[actor]: text" lines, each
// text cut to maxLen runes.
func Conversation(events []event.Event, count, maxLen int) string {
	if count > 0 && len(events) > count {
		events = events[len(events)-count:]
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("[%s]: %s", e.ActorName(), truncateRunes(e.Text, maxLen)))
	}
	return strings.Join(lines, "\n")
}
