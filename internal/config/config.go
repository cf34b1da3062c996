// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Provider and mode names accepted in configuration.
const (
	LLMProviderGemini     = "gemini"
	LLMProviderOpenRouter = "openrouter"

	SearchProviderTavily     = "tavily"
	SearchProviderGoogle     = "google"
	SearchProviderDuckDuckGo = "duckduckgo"
	SearchProviderMulti      = "multi"

	StreamModeTokens   = "tokens"
	StreamModeSnapshot = "snapshot"
)

// Config represents the application configuration. It can be loaded from a JSON
// file and overlaid from the environment; every field is optional and falls back
// to Defaults().
type Config struct {
	// Server
	Port        int    `json:"port,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Generation
	LLMProvider       string `json:"llm_provider,omitempty"` // gemini or openrouter
	GeminiAPIKey      string `json:"gemini_api_key,omitempty"`
	OpenRouterAPIKey  string `json:"openrouter_api_key,omitempty"`
	OpenRouterBaseURL string `json:"openrouter_base_url,omitempty"`
	Model             string `json:"model,omitempty"` // Overrides the provider's default model

	// Search
	SearchProvider        string `json:"search_provider,omitempty"` // tavily, google, duckduckgo or multi
	TavilyAPIKey          string `json:"tavily_api_key,omitempty"`
	GoogleSearchAPIKey    string `json:"google_search_api_key,omitempty"`
	GoogleSearchCX        string `json:"google_search_cx,omitempty"`
	MaxResults            int    `json:"max_results,omitempty"`
	SearchCacheTTLSeconds int    `json:"search_cache_ttl_seconds,omitempty"`

	// Pipeline
	StreamMode        string `json:"stream_mode,omitempty"` // tokens or snapshot
	RunTimeoutSeconds int    `json:"run_timeout_seconds,omitempty"`

	// Logging
	LogFile    string `json:"log_file,omitempty"`
	LogLevel   string `json:"log_level,omitempty"`
	Production bool   `json:"production,omitempty"`
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		Port:                  3000,
		LLMProvider:           LLMProviderOpenRouter,
		OpenRouterBaseURL:     "https://openrouter.ai/api/v1",
		SearchProvider:        SearchProviderTavily,
		MaxResults:            5,
		SearchCacheTTLSeconds: 600,
		StreamMode:            StreamModeTokens,
		RunTimeoutSeconds:     60,
		LogLevel:              "info",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables. Unset variables leave
// fields at their zero value so the result can be merged with other sources.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LLMProvider:       os.Getenv("LLM_PROVIDER"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: os.Getenv("OPENROUTER_BASE_URL"),
		Model:             os.Getenv("LLM_MODEL"),

		SearchProvider:     os.Getenv("SEARCH_PROVIDER"),
		TavilyAPIKey:       os.Getenv("TAVILY_API_KEY"),
		GoogleSearchAPIKey: os.Getenv("GOOGLE_SEARCH_API_KEY"),
		GoogleSearchCX:     os.Getenv("GOOGLE_SEARCH_CX"),

		StreamMode: os.Getenv("STREAM_MODE"),
		LogFile:    os.Getenv("LOG_FILE"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Production: os.Getenv("APP_ENV") == "production",
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"PORT", &cfg.Port},
		{"MAX_RESULTS", &cfg.MaxResults},
		{"SEARCH_CACHE_TTL_SECONDS", &cfg.SearchCacheTTLSeconds},
		{"RUN_TIMEOUT_SECONDS", &cfg.RunTimeoutSeconds},
	}
	for _, v := range ints {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config error: %s must be an integer: %w", v.name, err)
		}
		*v.dst = n
	}

	return cfg, nil
}

// Validate checks that the configuration has valid values.
// Missing API keys are not errors here; provider constructors report them.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "", LLMProviderGemini, LLMProviderOpenRouter:
	default:
		return fmt.Errorf("config error: unknown llm_provider %q", c.LLMProvider)
	}

	switch c.SearchProvider {
	case "", SearchProviderTavily, SearchProviderGoogle, SearchProviderDuckDuckGo, SearchProviderMulti:
	default:
		return fmt.Errorf("config error: unknown search_provider %q", c.SearchProvider)
	}

	switch c.StreamMode {
	case "", StreamModeTokens, StreamModeSnapshot:
	default:
		return fmt.Errorf("config error: unknown stream_mode %q", c.StreamMode)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("config error: 'max_results' must be non-negative")
	}
	if c.RunTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'run_timeout_seconds' must be non-negative")
	}
	if c.SearchCacheTTLSeconds < 0 {
		return fmt.Errorf("config error: 'search_cache_ttl_seconds' must be non-negative")
	}

	if c.SearchProvider == SearchProviderGoogle && (c.GoogleSearchAPIKey == "") != (c.GoogleSearchCX == "") {
		return fmt.Errorf("config error: 'google_search_api_key' and 'google_search_cx' must be set together")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	strs := []struct {
		dst *string
		src string
	}{
		{&result.DatabaseURL, defaults.DatabaseURL},
		{&result.LLMProvider, defaults.LLMProvider},
		{&result.GeminiAPIKey, defaults.GeminiAPIKey},
		{&result.OpenRouterAPIKey, defaults.OpenRouterAPIKey},
		{&result.OpenRouterBaseURL, defaults.OpenRouterBaseURL},
		{&result.Model, defaults.Model},
		{&result.SearchProvider, defaults.SearchProvider},
		{&result.TavilyAPIKey, defaults.TavilyAPIKey},
		{&result.GoogleSearchAPIKey, defaults.GoogleSearchAPIKey},
		{&result.GoogleSearchCX, defaults.GoogleSearchCX},
		{&result.StreamMode, defaults.StreamMode},
		{&result.LogFile, defaults.LogFile},
		{&result.LogLevel, defaults.LogLevel},
	}
	for _, s := range strs {
		if *s.dst == "" {
			*s.dst = s.src
		}
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.MaxResults == 0 {
		result.MaxResults = defaults.MaxResults
	}
	if result.SearchCacheTTLSeconds == 0 {
		result.SearchCacheTTLSeconds = defaults.SearchCacheTTLSeconds
	}
	if result.RunTimeoutSeconds == 0 {
		result.RunTimeoutSeconds = defaults.RunTimeoutSeconds
	}

	// Bool fields: cannot distinguish unset from false, so only true propagates.
	result.Production = result.Production || defaults.Production

	return result
}

// Load resolves the effective configuration: environment first, then the
// optional JSON file, then built-in defaults.
func Load(path string) (*Config, error) {
	env, err := FromEnv()
	if err != nil {
		return nil, err
	}

	merged := *env
	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		merged = env.MergeWithDefaults(*file)
	}
	merged = merged.MergeWithDefaults(Defaults())

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// RunTimeout is the wall-clock budget of one pipeline run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// SearchCacheTTL is how long search results stay cached.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.SearchCacheTTLSeconds) * time.Second
}
