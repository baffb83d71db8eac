package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"time"
)

// CacheTTL is how long a stored response is reused for an identical prompt.
const CacheTTL = 5 * time.Minute

// Cache is the response store. store.Store satisfies it.
type Cache interface {
	GetCached(ctx context.Context, key string, maxAge time.Duration) (string, bool, error)
	PutCached(ctx context.Context, key, response string) error
}

// Cached wraps a Summarizer so that a repeated prompt, such as a commit
// amended within a few minutes, does not trigger another paid call. Cache
// failures are logged and never fail Generate.
type Cached struct {
	next   Summarizer
	cache  Cache
	logger *slog.Logger
}

func WithCache(next Summarizer, cache Cache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Generate(ctx context.Context, prompt string) (string, error) {
	key := CacheKey(c.next.Name(), prompt)

	if resp, ok, err := c.cache.GetCached(ctx, key, CacheTTL); err != nil {
		c.logger.Debug("llm cache read failed", "error", err)
	} else if ok {
		c.logger.Debug("llm cache hit", "provider", c.next.Name())
		return resp, nil
	}

	resp, err := c.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.cache.PutCached(ctx, key, resp); err != nil {
		c.logger.Debug("llm cache write failed", "error", err)
	}
	return resp, nil
}

// CacheKey is the hex SHA-256 of provider and prompt.
func CacheKey(provider, prompt string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}
