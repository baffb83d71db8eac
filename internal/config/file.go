package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of .sayu.yml and the global config.
type File struct {
	Enabled       bool       `yaml:"enabled" mapstructure:"enabled"`
	Language      string     `yaml:"language" mapstructure:"language"`
	CommitTrailer bool       `yaml:"commitTrailer" mapstructure:"commitTrailer"`
	Connectors    Connectors `yaml:"connectors" mapstructure:"connectors"`
	Privacy       Privacy    `yaml:"privacy" mapstructure:"privacy"`
	Limits        Limits     `yaml:"limits" mapstructure:"limits"`
}

func (c Config) File() File {
	return File{
		Enabled:       c.Enabled,
		Language:      c.Language,
		CommitTrailer: c.CommitTrailer,
		Connectors:    c.Connectors,
		Privacy:       c.Privacy,
		Limits:        c.Limits,
	}
}

func (c *Config) applyFile(f File) {
	c.Enabled = f.Enabled
	if f.Language == "en" || f.Language == "ko" {
		c.Language = f.Language
	}
	c.CommitTrailer = f.CommitTrailer
	c.Connectors = f.Connectors
	c.Privacy = f.Privacy
	c.Limits = f.Limits
}

// LoadRepo layers defaults, the global config, the repository's .sayu.yml
// and the environment, in that order. A broken file is reported in the
// returned error but never prevents a usable Config from being returned.
func LoadRepo(repoRoot string) (Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)

	var errs []error
	for _, path := range []string{cfg.GlobalConfigPath(), ProjectConfigPath(repoRoot)} {
		if err := loadFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("load %s: %w", path, err))
		}
	}

	applyEnv(&cfg)
	return cfg, errors.Join(errs...)
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	f := cfg.File()
	if err := v.Unmarshal(&f); err != nil {
		return err
	}
	cfg.applyFile(f)
	return nil
}

// WriteDefault writes a .sayu.yml with default values unless one exists.
// It reports whether a file was written.
func WriteDefault(repoRoot string) (bool, error) {
	path := ProjectConfigPath(repoRoot)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	data, err := yaml.Marshal(Defaults().File())
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := "# sayu configuration. Environment variables (SAYU_*) override these values.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

// LoadDotEnv reads KEY=VALUE pairs from <repoRoot>/.env into the process
// environment. Variables that are already set win. Keys are upper-cased.
func LoadDotEnv(repoRoot string) (int, error) {
	path := filepath.Join(repoRoot, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("read .env: %w", err)
	}

	n := 0
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return n, fmt.Errorf("setenv %s: %w", name, err)
		}
		n++
	}
	return n, nil
}
