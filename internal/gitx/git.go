// Package gitx wraps the git command line for the hook pipeline.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrNotGitRepo = errors.New("not a git repository")

// Runner executes git with args in dir and returns stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("git %s: %w", args[0], err)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}
	return string(out), nil
}

// Repo is a git working tree rooted at Root.
type Repo struct {
	Root string
	run  Runner
}

// Open resolves the top level of the repository containing dir.
func Open(ctx context.Context, dir string, run Runner) (*Repo, error) {
	if run == nil {
		run = ExecRunner{}
	}
	out, err := run.Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotGitRepo, err)
	}
	root := strings.TrimSpace(out)
	if root == "" {
		return nil, ErrNotGitRepo
	}
	return &Repo{Root: root, run: run}, nil
}

// NewRepo returns a Repo for a known root without asking git.
func NewRepo(root string, run Runner) *Repo {
	if run == nil {
		run = ExecRunner{}
	}
	return &Repo{Root: root, run: run}
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return r.run.Run(ctx, r.Root, args...)
}

// StagedFiles lists paths in the index that differ from HEAD.
func (r *Repo) StagedFiles(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// HasWorkingTreeChanges reports unstaged or untracked changes.
func (r *Repo) HasWorkingTreeChanges(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// DiffStat returns `git diff --cached --stat`.
func (r *Repo) DiffStat(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "diff", "--cached", "--stat")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// StagedDiff returns the full staged patch.
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	return r.git(ctx, "diff", "--cached")
}

// HooksDir returns the absolute hooks directory, honoring core.hooksPath.
func (r *Repo) HooksDir(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Root, dir)
	}
	return dir, nil
}

// Commit is one line of git log output.
type Commit struct {
	Hash    string
	Subject string
	Author  string
	Email   string
	Time    time.Time
	Parents []string
	Refs    []string
}

const logFormat = "%H|%s|%an|%ae|%at|%P|%D"

// Log lists non-merge commits on the current branch in [since, until).
func (r *Repo) Log(ctx context.Context, since, until time.Time) ([]Commit, error) {
	out, err := r.git(ctx, "log",
		"--since="+since.Format(time.RFC3339),
		"--until="+until.Format(time.RFC3339),
		"--no-merges",
		"--format="+logFormat,
	)
	if err != nil {
		return nil, err
	}
	var commits []Commit
	for _, line := range splitLines(out) {
		if c, ok := ParseCommitLine(line); ok {
			commits = append(commits, c)
		}
	}
	return commits, nil
}

// HeadCommit returns the commit HEAD points at.
func (r *Repo) HeadCommit(ctx context.Context) (Commit, error) {
	out, err := r.git(ctx, "log", "-1", "--format="+logFormat)
	if err != nil {
		return Commit{}, err
	}
	c, ok := ParseCommitLine(strings.TrimSpace(out))
	if !ok {
		return Commit{}, fmt.Errorf("unexpected log output %q", strings.TrimSpace(out))
	}
	return c, nil
}

// CommitMessage returns the full message of rev.
func (r *Repo) CommitMessage(ctx context.Context, rev string) (string, error) {
	return r.git(ctx, "log", "-1", "--format=%B", rev)
}

// ParseCommitLine parses a line in "%H|%s|%an|%ae|%at|%P|%D" form. The
// subject may itself contain '|'.
func ParseCommitLine(line string) (Commit, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 7 {
		return Commit{}, false
	}
	n := len(parts)
	secs, err := strconv.ParseInt(strings.TrimSpace(parts[n-3]), 10, 64)
	if err != nil {
		return Commit{}, false
	}
	return Commit{
		Hash:    parts[0],
		Subject: strings.Join(parts[1:n-5], "|"),
		Author:  parts[n-5],
		Email:   parts[n-4],
		Time:    time.Unix(secs, 0),
		Parents: strings.Fields(parts[n-2]),
		Refs:    splitRefs(parts[n-1]),
	}, true
}

// splitRefs splits %D output such as "HEAD -> main, tag: v1.2".
func splitRefs(s string) []string {
	var refs []string
	for _, ref := range strings.Split(s, ",") {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
