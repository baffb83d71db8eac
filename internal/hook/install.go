package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/sayu/internal/gitx"
)

// Names are the git hooks sayu installs.
var Names = []string{"commit-msg", "post-commit"}

// marker identifies scripts written by Install.
const marker = "Sayu Git Hook"

// ErrForeignHook is returned when a hook exists that sayu did not write.
var ErrForeignHook = errors.New("hook exists and was not installed by sayu")

// Script returns the shell script installed for hook name. The commit-msg
// script turns ExitEmptyCommit into a failing exit and ignores everything
// else.
func Script(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/sh\n# %s - %s\n# Auto-generated, do not edit\n\n", marker, name)
	b.WriteString("if command -v sayu >/dev/null 2>&1; then\n")
	fmt.Fprintf(&b, "    sayu hook %s \"$@\"\n", name)
	if name == "commit-msg" {
		fmt.Fprintf(&b, "    if [ $? -eq %d ]; then\n        exit 1\n    fi\n", ExitEmptyCommit)
	}
	b.WriteString("fi\n\nexit 0\n")
	return b.String()
}

// Install writes the sayu hooks into the repository's hooks directory and
// returns the paths written. An existing hook sayu did not write is left in
// place unless force is set.
func Install(ctx context.Context, repo *gitx.Repo, force bool) ([]string, error) {
	dir, err := repo.HooksDir(ctx)
	if err != nil {
		return nil, fmt.Errorf("hooks dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create hooks dir: %w", err)
	}

	var written []string
	var errs []error
	for _, name := range Names {
		path := filepath.Join(dir, name)
		if !force {
			if owned, exists := ownedBySayu(path); exists && !owned {
				errs = append(errs, fmt.Errorf("%s: %w", name, ErrForeignHook))
				continue
			}
		}
		if err := os.WriteFile(path, []byte(Script(name)), 0o755); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", name, err))
			continue
		}
		// WriteFile keeps the mode of an existing file.
		if err := os.Chmod(path, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("chmod %s: %w", name, err))
			continue
		}
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}

// Uninstall removes the hooks sayu installed and returns the removed paths.
// Hooks written by anything else are untouched.
func Uninstall(ctx context.Context, repo *gitx.Repo) ([]string, error) {
	dir, err := repo.HooksDir(ctx)
	if err != nil {
		return nil, fmt.Errorf("hooks dir: %w", err)
	}

	var removed []string
	var errs []error
	for _, name := range Names {
		path := filepath.Join(dir, name)
		if owned, _ := ownedBySayu(path); !owned {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

// Installed reports, per hook name, whether the sayu script is in place.
func Installed(ctx context.Context, repo *gitx.Repo) (map[string]bool, error) {
	dir, err := repo.HooksDir(ctx)
	if err != nil {
		return nil, fmt.Errorf("hooks dir: %w", err)
	}
	out := make(map[string]bool, len(Names))
	for _, name := range Names {
		owned, _ := ownedBySayu(filepath.Join(dir, name))
		out[name] = owned
	}
	return out, nil
}

func ownedBySayu(path string) (owned, exists bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, !os.IsNotExist(err)
	}
	return strings.Contains(string(data), marker), true
}
