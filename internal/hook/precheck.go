package hook

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyCommit rejects a commit with nothing staged and a clean tree.
var ErrEmptyCommit = errors.New("empty commit")

const (
	msgEmptyRejected = "Sayu: Empty commit rejected - no files staged and no changes detected"
	msgAllowEmpty    = "Use --allow-empty if you intend to create an empty commit"
	msgUnstagedOnly  = "Sayu: No files staged but changes detected - allowing (likely configuration change)"
)

// Precheck returns ErrEmptyCommit when there is nothing to commit. A commit
// with no staged files but a dirty working tree is allowed with a warning.
// Git errors are returned as-is and callers treat them as "allow".
func (s *Shell) Precheck(ctx context.Context) error {
	if s.cfg.AllowEmpty {
		return nil
	}

	staged, err := s.repo.StagedFiles(ctx)
	if err != nil {
		return fmt.Errorf("staged files: %w", err)
	}
	if len(staged) > 0 {
		return nil
	}

	dirty, err := s.repo.HasWorkingTreeChanges(ctx)
	if err != nil {
		return fmt.Errorf("working tree status: %w", err)
	}
	if dirty {
		fmt.Fprintln(s.stderr, msgUnstagedOnly)
		return nil
	}
	return ErrEmptyCommit
}
