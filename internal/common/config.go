package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Catalog     CatalogConfig   `toml:"catalog"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	LLM         LLMConfig       `toml:"llm"`
	TTS         TTSConfig       `toml:"tts"`
	Blob        BlobConfig      `toml:"blob"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
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
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// CatalogConfig locates the persona and template catalog files.
// Empty directories fall back to the embedded defaults.
type CatalogConfig struct {
	PersonasDir  string `toml:"personas_dir"`  // Directory containing persona files (TOML)
	TemplatesDir string `toml:"templates_dir"` // Directory containing episode template files (TOML)
}

// ClaudeConfig contains Anthropic Claude API configuration for script generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (or ANTHROPIC_API_KEY env)
	Model       string  `toml:"model"`       // Model for script generation
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.8)
}

// GeminiConfig contains Google Gemini API configuration for script generation
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for script generation
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.8)
}

// LLMProvider represents the script-writer provider type
type LLMProvider string

const (
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig selects the script-writer provider
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "claude" or "gemini" (default: "claude")
	MaxAttempts     int         `toml:"max_attempts"`     // Capped retry attempts per section (default: 3)
	RateLimit       string      `toml:"rate_limit"`       // Minimum interval between completion calls (default: "1s")
}

// TTSConfig contains the external text-to-speech service configuration
type TTSConfig struct {
	Endpoint    string `toml:"endpoint"`     // Speech service base URL
	APIKey      string `toml:"api_key"`      // Speech service API key
	Timeout     string `toml:"timeout"`      // Per-call timeout as duration string (default: "90s")
	RateLimit   string `toml:"rate_limit"`   // Minimum interval between synthesis calls (default: "500ms")
	MaxAttempts int    `toml:"max_attempts"` // Capped retry attempts per section (default: 3)
	Format      string `toml:"format"`       // Requested audio container: "wav" or "mp3" (default: "wav")
}

// BlobConfig contains audio asset storage configuration
type BlobConfig struct {
	Path    string `toml:"path"`     // Directory for concatenated episode audio
	BaseURL string `toml:"base_url"` // Public prefix recorded on the episode (default: "/audio")
}

// PipelineConfig tunes the generation pipeline
type PipelineConfig struct {
	TimeWindowDays   int    `toml:"time_window_days"`  // Aggregation window (default: 7)
	TopCategories    int    `toml:"top_categories"`    // Category truncation for the story (default: 3)
	AudioConcurrency int    `toml:"audio_concurrency"` // Concurrent section synthesis calls (default: 4)
	StaleAfter       string `toml:"stale_after"`       // Mark generating episodes failed after this (default: "15m")
}

// SchedulerConfig enables recurring episode generation
type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`      // Generate episodes on a schedule (default: false)
	Schedule    string `toml:"schedule"`     // Cron expression (default: "0 8 * * 1" - Monday 8am)
	EpisodeType string `toml:"episode_type"` // Episode type to generate (default: "weekly")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in fincast.toml.
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
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Catalog: CatalogConfig{
			PersonasDir:  "./personas",
			TemplatesDir: "./templates",
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.8,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			Temperature: 0.8,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			MaxAttempts:     3,
			RateLimit:       "1s",
		},
		TTS: TTSConfig{
			Endpoint:    "",
			APIKey:      "",
			Timeout:     "90s",
			RateLimit:   "500ms",
			MaxAttempts: 3,
			Format:      "wav",
		},
		Blob: BlobConfig{
			Path:    "./data/audio",
			BaseURL: "/audio",
		},
		Pipeline: PipelineConfig{
			TimeWindowDays:   7,
			TopCategories:    3,
			AudioConcurrency: 4,
			StaleAfter:       "15m",
		},
		Scheduler: SchedulerConfig{
			Enabled:     false,
			Schedule:    "0 8 * * 1",
			EpisodeType: "weekly",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files; environment variables override all files.
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

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINCAST_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("FINCAST_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FINCAST_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("FINCAST_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("FINCAST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FINCAST_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// LLM provider keys
	if key := os.Getenv("FINCAST_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("FINCAST_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if provider := os.Getenv("FINCAST_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Speech service
	if endpoint := os.Getenv("FINCAST_TTS_ENDPOINT"); endpoint != "" {
		config.TTS.Endpoint = endpoint
	}
	if key := os.Getenv("FINCAST_TTS_API_KEY"); key != "" {
		config.TTS.APIKey = key
	}

	// Blob storage
	if path := os.Getenv("FINCAST_BLOB_PATH"); path != "" {
		config.Blob.Path = path
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ParseDurationOr parses a duration string, falling back to def on error or empty input
func ParseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
