package gitx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeRunner answers git invocations from a table keyed by the joined args.
type fakeRunner struct {
	out   map[string]string
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	for prefix, out := range f.out {
		if strings.HasPrefix(key, prefix) {
			return out, nil
		}
	}
	return "", errors.New("exit status 128")
}

func TestOpen(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"rev-parse --show-toplevel": "/work/app\n"}}
	repo, err := Open(context.Background(), "/work/app/sub", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Root != "/work/app" {
		t.Errorf("root = %q", repo.Root)
	}
}

func TestOpen_NotARepo(t *testing.T) {
	_, err := Open(context.Background(), "/tmp", &fakeRunner{})
	if !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("expected ErrNotGitRepo, got %v", err)
	}
}

func TestStagedFilesAndStatus(t *testing.T) {
	r := &fakeRunner{out: map[string]string{
		"diff --cached --name-only": "auth.js\n\nsrc/main.go\n",
		"status --porcelain":        " M README.md\n",
	}}
	repo := NewRepo("/work/app", r)

	files, err := repo.StagedFiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0] != "auth.js" || files[1] != "src/main.go" {
		t.Errorf("files = %q", files)
	}

	dirty, err := repo.HasWorkingTreeChanges(context.Background())
	if err != nil || !dirty {
		t.Errorf("HasWorkingTreeChanges = %v, %v", dirty, err)
	}
}

func TestParseCommitLine(t *testing.T) {
	c, ok := ParseCommitLine("abc123|fix: a|b pipe|Jane Doe|jane@example.com|1700000000|p1 p2|HEAD -> main, tag: v1.2")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if c.Hash != "abc123" || c.Subject != "fix: a|b pipe" {
		t.Errorf("hash/subject = %q %q", c.Hash, c.Subject)
	}
	if c.Author != "Jane Doe" || c.Email != "jane@example.com" {
		t.Errorf("author = %q %q", c.Author, c.Email)
	}
	if c.Time.Unix() != 1700000000 {
		t.Errorf("time = %v", c.Time)
	}
	if len(c.Parents) != 2 {
		t.Errorf("parents = %q", c.Parents)
	}
	if len(c.Refs) != 2 || c.Refs[0] != "HEAD -> main" || c.Refs[1] != "tag: v1.2" {
		t.Errorf("refs = %q", c.Refs)
	}

	root, ok := ParseCommitLine("abc123|init|Jane Doe|jane@example.com|1700000000||")
	if !ok || root.Subject != "init" || root.Parents != nil || root.Refs != nil {
		t.Errorf("root commit = %+v, %v", root, ok)
	}

	if _, ok := ParseCommitLine("not|enough"); ok {
		t.Error("expected short line to be rejected")
	}
	if _, ok := ParseCommitLine("h|s|a|e|notatime|p|"); ok {
		t.Error("expected bad timestamp to be rejected")
	}
}

func TestHooksDir_RelativeIsJoined(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"rev-parse --git-path hooks": ".git/hooks\n"}}
	dir, err := NewRepo("/work/app", r).HooksDir(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "/work/app/.git/hooks" {
		t.Errorf("dir = %q", dir)
	}
}

func TestCommitMessage(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"log -1 --format=%B 3f2a9c1d": "fix: null check\n\nbody\n"}}
	msg, err := NewRepo("/work/app", r).CommitMessage(context.Background(), "3f2a9c1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg, "body") {
		t.Errorf("msg = %q", msg)
	}
	if len(r.calls) != 1 || r.calls[0] != "log -1 --format=%B 3f2a9c1d" {
		t.Errorf("calls = %q", r.calls)
	}
}
