package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when --config is not given.
const DefaultPath = "briefer.yaml"

// Config holds all briefer configuration.
type Config struct {
	Name string `yaml:"name"`

	// Text-generation backends
	LLM LLMConfig `yaml:"llm"`

	// Search and page fetching
	Research ResearchConfig `yaml:"research"`

	// Stage retry policy and fetch fan-out
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Where briefs are persisted per user
	History HistoryConfig `yaml:"history"`

	// Where stage checkpoints go
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// HTTP front end
	Server ServerConfig `yaml:"server"`

	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the fast and deep generation handles.
type LLMConfig struct {
	Provider        string `yaml:"provider"` // gemini, openai
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"` // openai-compatible endpoints only
	FastModel       string `yaml:"fast_model"` // empty = provider default
	DeepModel       string `yaml:"deep_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	Timeout         string `yaml:"timeout"`
}

// ResearchConfig configures the search provider and page fetchers.
type ResearchConfig struct {
	SearchURL    string `yaml:"search_url"`
	UserAgent    string `yaml:"user_agent"`
	FetchTimeout string `yaml:"fetch_timeout"`
	MaxPageChars int    `yaml:"max_page_chars"`

	// Browser switches fetching to headless Chromium (go-rod).
	Browser bool `yaml:"browser"`

	CacheTTL  string `yaml:"cache_ttl"`
	CacheSize int    `yaml:"cache_size"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	MaxRetries       int    `yaml:"max_retries"`
	RetryBackoff     string `yaml:"retry_backoff"`
	FetchConcurrency int    `yaml:"fetch_concurrency"`
}

// HistoryConfig selects and configures the user history backend.
type HistoryConfig struct {
	Backend             string `yaml:"backend"` // sqlite, json, firestore
	DatabasePath        string `yaml:"database_path"`
	JSONPath            string `yaml:"json_path"`
	FirestoreProject    string `yaml:"firestore_project"`
	FirestoreCollection string `yaml:"firestore_collection"`
}

// CheckpointConfig configures checkpoint sinks. Both may be enabled.
type CheckpointConfig struct {
	Dir    string `yaml:"dir"` // empty disables the file sink
	SQLite bool   `yaml:"sqlite"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "briefer",

		LLM: LLMConfig{
			Provider:        "gemini",
			MaxOutputTokens: 8192,
			Timeout:         "120s",
		},

		Research: ResearchConfig{
			SearchURL:    "https://html.duckduckgo.com/html/",
			UserAgent:    "Mozilla/5.0",
			FetchTimeout: "10s",
			MaxPageChars: 18000,
			CacheTTL:     "30m",
			CacheSize:    256,
		},

		Pipeline: PipelineConfig{
			MaxRetries:       2,
			RetryBackoff:     "600ms",
			FetchConcurrency: 4,
		},

		History: HistoryConfig{
			Backend:             "sqlite",
			DatabasePath:        "data/briefer.db",
			JSONPath:            "data/user_history.json",
			FirestoreCollection: "users",
		},

		Checkpoint: CheckpointConfig{
			Dir:    "traces",
			SQLite: true,
		},

		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  "15s",
			WriteTimeout: "10m",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Later keys win, matching the provider they imply.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}

	if path := os.Getenv("BRIEFER_DB"); path != "" {
		c.History.DatabasePath = path
	}
	if path := os.Getenv("USER_STORE_PATH"); path != "" {
		c.History.JSONPath = path
	}
	if dir := os.Getenv("TRACE_DIR"); dir != "" {
		c.Checkpoint.Dir = dir
	}
	if project := os.Getenv("GOOGLE_CLOUD_PROJECT"); project != "" && c.History.FirestoreProject == "" {
		c.History.FirestoreProject = project
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetLLMTimeout returns the per-call generation timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetFetchTimeout returns the per-page fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Research.FetchTimeout, 10*time.Second)
}

// GetCacheTTL returns how long fetched pages stay cached.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Research.CacheTTL, 30*time.Minute)
}

// GetRetryBackoff returns the fixed delay between stage retries.
func (c *Config) GetRetryBackoff() time.Duration {
	return parseDuration(c.Pipeline.RetryBackoff, 600*time.Millisecond)
}

// GetReadTimeout returns the HTTP server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the HTTP server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Minute)
}

// ValidProviders lists all supported generation providers.
var ValidProviders = []string{"gemini", "openai"}

// ValidHistoryBackends lists all supported history backends.
var ValidHistoryBackends = []string{"sqlite", "json", "firestore"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	// Local openai-compatible servers (vLLM, Ollama) run without a key.
	if c.LLM.APIKey == "" && !(c.LLM.Provider == "openai" && c.LLM.BaseURL != "") {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or OPENAI_API_KEY)")
	}
	if !contains(ValidHistoryBackends, c.History.Backend) {
		return fmt.Errorf("invalid history backend: %s (valid: %v)", c.History.Backend, ValidHistoryBackends)
	}
	if c.History.Backend == "firestore" && c.History.FirestoreProject == "" {
		return fmt.Errorf("firestore history requires history.firestore_project (or GOOGLE_CLOUD_PROJECT)")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must be >= 0, got %d", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.FetchConcurrency < 1 {
		return fmt.Errorf("pipeline.fetch_concurrency must be >= 1, got %d", c.Pipeline.FetchConcurrency)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
