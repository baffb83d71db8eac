package config

import (
	"os"
	"path/filepath"
)

// FileName is the per-repository config file.
const FileName = ".sayu.yml"

// ExpandHome resolves a leading "~/" against the user's home directory.
func ExpandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// GlobalConfigPath is the user-wide config under the sayu home.
func (c Config) GlobalConfigPath() string {
	return filepath.Join(c.Home, "config.yml")
}

// ShellLogPath is the append-only command log written by the shell hook.
func (c Config) ShellLogPath() string {
	return filepath.Join(c.Home, "cli.jsonl")
}

// ProjectConfigPath returns the .sayu.yml path for a repository.
func ProjectConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, FileName)
}
