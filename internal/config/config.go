package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Enabled       bool
	Language      string
	CommitTrailer bool
	Connectors    Connectors
	Privacy       Privacy
	Limits        Limits

	Home        string
	DBPath      string
	DatabaseURL string
	LogLevel    string
	Debug       bool
	AllowEmpty  bool
	Port        int

	LLMProvider      string
	LLMTimeout       time.Duration
	GeminiAPIKey     string
	GeminiModel      string
	OpenRouterAPIKey string
	OpenRouterModel  string
	AnthropicAPIKey  string
	AnthropicModel   string

	NatsURL   string
	NatsToken string
}

// Connectors toggles the individual collectors.
type Connectors struct {
	Claude bool         `yaml:"claude" mapstructure:"claude"`
	Cursor bool         `yaml:"cursor" mapstructure:"cursor"`
	CLI    CLIConnector `yaml:"cli" mapstructure:"cli"`
	Git    bool         `yaml:"git" mapstructure:"git"`
}

type CLIConnector struct {
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// Enabled reports whether the collector registered under name is switched on.
// Unknown names are enabled.
func (c Connectors) Enabled(name string) bool {
	switch name {
	case "claude":
		return c.Claude
	case "cursor":
		return c.Cursor
	case "shell":
		return c.CLI.Mode != "off" && c.CLI.Mode != ""
	case "git":
		return c.Git
	}
	return true
}

type Privacy struct {
	MaskSecrets bool     `yaml:"maskSecrets" mapstructure:"maskSecrets"`
	MaskEmails  bool     `yaml:"maskEmails" mapstructure:"maskEmails"`
	Masks       []string `yaml:"masks" mapstructure:"masks"`
}

// Limits bounds how much context flows into a summary.
type Limits struct {
	MaxHighValueEvents           int `yaml:"maxHighValueEvents" mapstructure:"maxHighValueEvents"`
	MinResponseLength            int `yaml:"minResponseLength" mapstructure:"minResponseLength"`
	HookLookbackHours            int `yaml:"hookLookbackHours" mapstructure:"hookLookbackHours"`
	DefaultLookbackHours         int `yaml:"defaultLookbackHours" mapstructure:"defaultLookbackHours"`
	MaxConversationCount         int `yaml:"maxConversationCount" mapstructure:"maxConversationCount"`
	MaxConversationLength        int `yaml:"maxConversationLength" mapstructure:"maxConversationLength"`
	SimplifiedConversationCount  int `yaml:"simplifiedConversationCount" mapstructure:"simplifiedConversationCount"`
	SimplifiedConversationLength int `yaml:"simplifiedConversationLength" mapstructure:"simplifiedConversationLength"`
	DiffPreviewChars             int `yaml:"diffPreviewChars" mapstructure:"diffPreviewChars"`
	DiffStatChars                int `yaml:"diffStatChars" mapstructure:"diffStatChars"`
	CursorEstimateSeconds        int `yaml:"cursorEstimateSeconds" mapstructure:"cursorEstimateSeconds"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Enabled:       true,
		Language:      "en",
		CommitTrailer: true,
		Connectors: Connectors{
			Claude: true,
			Cursor: true,
			CLI:    CLIConnector{Mode: "zsh-preexec"},
			Git:    true,
		},
		Privacy: Privacy{MaskSecrets: true},
		Limits: Limits{
			MaxHighValueEvents:           30,
			MinResponseLength:            50,
			HookLookbackHours:            24,
			DefaultLookbackHours:         168,
			MaxConversationCount:         99,
			MaxConversationLength:        20000,
			SimplifiedConversationCount:  10,
			SimplifiedConversationLength: 500,
			DiffPreviewChars:             1000,
			DiffStatChars:                4000,
			CursorEstimateSeconds:        60,
		},
		Home:            "~/.sayu",
		LogLevel:        "warn",
		Port:            8760,
		LLMTimeout:      30 * time.Second,
		GeminiModel:     "gemini-2.5-flash",
		OpenRouterModel: "anthropic/claude-3-haiku",
		AnthropicModel:  "claude-3-5-haiku-latest",
	}
}

// Load returns defaults with environment overrides applied.
func Load() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if os.Getenv("SAYU_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if lang := os.Getenv("SAYU_LANG"); lang == "en" || lang == "ko" {
		cfg.Language = lang
	}
	if os.Getenv("SAYU_TRAILER") == "false" {
		cfg.CommitTrailer = false
	}

	cfg.Home = ExpandHome(envStr("SAYU_HOME", cfg.Home))
	cfg.DBPath = ExpandHome(envStr("SAYU_DB_PATH", cfg.DBPath))
	cfg.DatabaseURL = envStr("SAYU_DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envStr("SAYU_LOG_LEVEL", cfg.LogLevel)
	cfg.Debug = envBool("SAYU_DEBUG", cfg.Debug)
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	cfg.AllowEmpty = envBool("SAYU_ALLOW_EMPTY", cfg.AllowEmpty)
	cfg.Port = envInt("SAYU_PORT", cfg.Port)

	cfg.LLMProvider = strings.ToLower(envStr("SAYU_LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMTimeout = envDuration("SAYU_LLM_TIMEOUT", cfg.LLMTimeout)
	cfg.GeminiAPIKey = envStr("SAYU_GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = envStr("SAYU_GEMINI_MODEL", cfg.GeminiModel)
	cfg.OpenRouterAPIKey = envStr("SAYU_OPENROUTER_API_KEY", envStr("OPENROUTER_API_KEY", cfg.OpenRouterAPIKey))
	cfg.OpenRouterModel = envStr("SAYU_OPENROUTER_MODEL", cfg.OpenRouterModel)
	cfg.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = envStr("SAYU_ANTHROPIC_MODEL", cfg.AnthropicModel)

	cfg.NatsURL = envStr("SAYU_NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("SAYU_NATS_TOKEN", cfg.NatsToken)

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.Home, "events.db")
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return true
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
