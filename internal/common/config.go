package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/stockgrader/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Claude      ClaudeConfig   `toml:"claude"`
	LLM         LLMConfig      `toml:"llm"`
	Analysis    AnalysisConfig `toml:"analysis"`
	Chat        ChatConfig     `toml:"chat"`
	Report      ReportConfig   `toml:"report"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// GeminiConfig contains Google Gemini API configuration for analysis and chat
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for analysis and chat (default: "gemini-2.5-flash")
	Timeout     string  `toml:"timeout"`     // Per-request timeout as duration string (default: "3m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Chat temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for analysis and chat
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Per-request timeout (default: "3m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API with search grounding
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API (no grounding sources)
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains provider selection and retry behaviour
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
	MaxRetries      int         `toml:"max_retries"`      // Retries after the first attempt (default: 2)
	InitialBackoff  string      `toml:"initial_backoff"`  // First rate-limit backoff (default: "5s")
	MaxBackoff      string      `toml:"max_backoff"`      // Backoff cap (default: "30s")
}

// AnalysisConfig controls analysis requests
type AnalysisConfig struct {
	MaxCompanyNameLength int `toml:"max_company_name_length"` // Longest accepted company name in characters (default: 100)
	HistoryLimit         int `toml:"history_limit"`           // Default page size for history listings (default: 20)
}

// ChatConfig controls follow-up chat sessions
type ChatConfig struct {
	IncludeAnalysisContext bool    `toml:"include_analysis_context"` // Seed chat history with the analysis (default: true)
	SessionIdleTimeout     string  `toml:"session_idle_timeout"`     // Sessions idle longer than this are dropped (default: "2h")
	SweepSchedule          string  `toml:"sweep_schedule"`           // Cron expression for the idle sweep (default: every 10 minutes)
	TranscriptTTL          string  `toml:"transcript_ttl"`           // Lifetime of stored transcript entries (default: "24h")
	MaxMessageLength       int     `toml:"max_message_length"`       // Longest accepted chat message (default: 2000)
	MessageRate            float64 `toml:"message_rate"`             // Websocket messages per second per connection (default: 1)
	MessageBurst           int     `toml:"message_burst"`            // Websocket burst allowance (default: 3)
}

// ReportConfig controls report export
type ReportConfig struct {
	FontPath   string `toml:"font_path"`   // UTF-8 TTF used for PDF output; Korean text needs one
	FontFamily string `toml:"font_family"` // Family name registered for FontPath (default: "NanumGothic")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",                     // debug|info|warn|error
			Format:     "text",                     // text|json
			Output:     []string{"stdout", "file"}, // Log to both console and file
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			APIKey:      "",                 // GEMINI_API_KEY, KV store or config
			Model:       "gemini-2.5-flash", // Search grounding capable model
			Timeout:     "3m",               // Grounded analyses can take a while
			RateLimit:   "4s",               // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // ANTHROPIC_API_KEY, KV store or config
			Model:       "claude-sonnet-4-5",
			MaxTokens:   8192,
			Timeout:     "3m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			MaxRetries:      2,     // Interactive requests, keep the wait short
			InitialBackoff:  "5s",
			MaxBackoff:      "30s",
		},
		Analysis: AnalysisConfig{
			MaxCompanyNameLength: 100,
			HistoryLimit:         20,
		},
		Chat: ChatConfig{
			IncludeAnalysisContext: true,
			SessionIdleTimeout:     "2h",
			SweepSchedule:          "*/10 * * * *",
			TranscriptTTL:          "24h",
			MaxMessageLength:       2000,
			MessageRate:            1,
			MessageBurst:           3,
		},
		Report: ReportConfig{
			FontPath:   "", // Core Arial when empty; Hangul will not render
			FontFamily: "NanumGothic",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges into existing values
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOCKGRADER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("STOCKGRADER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("STOCKGRADER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if path := os.Getenv("STOCKGRADER_STORAGE_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging configuration
	if level := os.Getenv("STOCKGRADER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("STOCKGRADER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
		for i := range config.Logging.Output {
			config.Logging.Output[i] = strings.TrimSpace(config.Logging.Output[i])
		}
	}

	// LLM configuration
	if provider := os.Getenv("STOCKGRADER_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if retries := os.Getenv("STOCKGRADER_LLM_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.LLM.MaxRetries = r
		}
	}
	if model := os.Getenv("STOCKGRADER_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("STOCKGRADER_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// Chat configuration
	if include := os.Getenv("STOCKGRADER_CHAT_INCLUDE_ANALYSIS_CONTEXT"); include != "" {
		if b, err := strconv.ParseBool(include); err == nil {
			config.Chat.IncludeAnalysisContext = b
		}
	}

	// Report configuration
	if font := os.Getenv("STOCKGRADER_REPORT_FONT_PATH"); font != "" {
		config.Report.FontPath = font
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("invalid llm.default_provider %q: must be %q or %q",
			c.LLM.DefaultProvider, LLMProviderGemini, LLMProviderClaude)
	}

	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}

	if err := ValidateSchedule(c.Chat.SweepSchedule); err != nil {
		return fmt.Errorf("invalid chat.sweep_schedule: %w", err)
	}

	return nil
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → KV store → config fallback → error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	// Environment variables have highest priority, checked in order
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"STOCKGRADER_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"},
		"google_api_key":    {"STOCKGRADER_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"},
		"anthropic_api_key": {"STOCKGRADER_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"claude_api_key":    {"STOCKGRADER_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a standard five-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}
