//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/sayu/internal/event"
)

func setupTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dbURL := os.Getenv("SAYU_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("SAYU_TEST_DATABASE_URL not set, skipping integration test")
	}

	s, err := NewPostgres(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_PostgresCommitBoundary(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()
	repo := "/integration/" + uuid.NewString()[:8]

	if _, ok, err := s.LastCommitTime(ctx, repo); err != nil || ok {
		t.Fatalf("fresh repo LastCommitTime = %v, %v", ok, err)
	}

	events := []event.Event{
		event.New(event.SourceGit, event.KindCommit, 1000, repo, repo, "abc: first"),
		event.New(event.SourceGit, event.KindCommit, 3000, repo, repo, "def: second"),
		event.New(event.SourceClaude, event.KindChat, 5000, repo, repo, "not a commit").WithActor(event.ActorUser),
	}
	if err := s.InsertBatch(ctx, events); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	ts, ok, err := s.LastCommitTime(ctx, repo)
	if err != nil || !ok || ts != 3000 {
		t.Errorf("LastCommitTime = %d, %v, %v; want 3000", ts, ok, err)
	}

	got, err := s.FindByRepository(ctx, repo, 0, 4000)
	if err != nil {
		t.Fatalf("FindByRepository failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 events in window, got %d", len(got))
	}

	hits, err := s.Search(ctx, "second", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Error("expected search hit for 'second'")
	}
}

func TestIntegration_PostgresCache(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()
	key := "it-" + uuid.NewString()

	if err := s.PutCached(ctx, key, `{"intent":"x"}`); err != nil {
		t.Fatalf("PutCached failed: %v", err)
	}
	got, ok, err := s.GetCached(ctx, key, 60e9)
	if err != nil || !ok || got != `{"intent":"x"}` {
		t.Errorf("GetCached = %q, %v, %v", got, ok, err)
	}
}
