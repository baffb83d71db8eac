// Package llm selects and calls the model that writes commit summaries.
package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MikeSquared-Agency/sayu/internal/anthropic"
	"github.com/MikeSquared-Agency/sayu/internal/config"
)

// ErrNoSummarizer means no provider credential is configured.
var ErrNoSummarizer = errors.New("no llm provider configured")

// Summarizer turns a prompt into model text. Implementations make exactly one
// request per call and honor ctx cancellation.
type Summarizer interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider names accepted by SAYU_LLM_PROVIDER.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

var precedence = []string{ProviderGemini, ProviderOpenRouter, ProviderAnthropic}

// Select returns the summarizer for cfg. An explicit provider wins when its
// credential is set; otherwise the first provider with a credential, in the
// order gemini, openrouter, anthropic. It returns ErrNoSummarizer when none
// is configured.
func Select(cfg config.Config, logger *slog.Logger) (Summarizer, error) {
	if cfg.LLMProvider != "" {
		if s := build(cfg, cfg.LLMProvider); s != nil {
			return s, nil
		}
		if logger != nil {
			logger.Debug("requested llm provider has no credential", "provider", cfg.LLMProvider)
		}
	}
	for _, name := range precedence {
		if s := build(cfg, name); s != nil {
			return s, nil
		}
	}
	return nil, ErrNoSummarizer
}

// Available lists the providers that have a credential, in precedence order.
func Available(cfg config.Config) []string {
	var out []string
	for _, name := range precedence {
		if build(cfg, name) != nil {
			out = append(out, name)
		}
	}
	return out
}

func build(cfg config.Config, name string) Summarizer {
	switch name {
	case ProviderGemini:
		if cfg.GeminiAPIKey != "" {
			return NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
		}
	case ProviderOpenRouter:
		if cfg.OpenRouterAPIKey != "" {
			return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
		}
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey != "" {
			return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		}
	}
	return nil
}
