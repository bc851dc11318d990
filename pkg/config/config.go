package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lectern/pkg/model"
)

// Config holds the application configuration.
type Config struct {
	Request   RequestConfig   `yaml:"request"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	Selection SelectionConfig `yaml:"selection"`
	TextPrep  TextPrepConfig  `yaml:"text_prep"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Log       LogConfig       `yaml:"log"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings for the HTTP layer.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// CatalogConfig holds settings for the external voice catalog.
type CatalogConfig struct {
	BaseURL   string `yaml:"base_url"`
	StreamURL string `yaml:"stream_url"` // Websocket endpoint for streaming synthesis
	Key       string `yaml:"key"`        // API key; falls back to LECTERN_CATALOG_API_KEY
	ModelID   string `yaml:"model"`      // Synthesis model, e.g. "eleven_multilingual_v2"
	PageSize  int    `yaml:"page_size"`  // Capped at 100 by API convention
}

// CacheConfig holds settings for the persistent voice cache.
// Paths are passed at construction; there are no process-wide globals.
type CacheConfig struct {
	Dir          string `yaml:"dir"`
	VoicesFile   string `yaml:"voices_file"`
	MappingsFile string `yaml:"mappings_file"`
}

// VoicesPath returns the full path of the voice-record document.
func (c CacheConfig) VoicesPath() string {
	return filepath.Join(c.Dir, c.VoicesFile)
}

// MappingsPath returns the full path of the profile-mapping document.
func (c CacheConfig) MappingsPath() string {
	return filepath.Join(c.Dir, c.MappingsFile)
}

// RankWeights holds the criteria-match bonuses added on top of a
// voice's quality score. These are policy, not load-bearing constants.
type RankWeights struct {
	Gender  float64 `yaml:"gender"`
	Accent  float64 `yaml:"accent"`
	Age     float64 `yaml:"age"`
	UseCase float64 `yaml:"use_case"`
}

// SelectionConfig holds voice selection settings.
type SelectionConfig struct {
	Strategy string      `yaml:"strategy"` // top, top_random, weighted
	TopK     int         `yaml:"top_k"`    // Pool size for top_random
	Language string      `yaml:"language"` // Default criteria language
	UseCase  string      `yaml:"use_case"` // Default criteria use-case tag
	Weights  RankWeights `yaml:"weights"`
}

// TextPrepConfig holds text preparation settings.
type TextPrepConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size"` // Soft byte budget per chunk
}

// SynthesisConfig holds synthesis driver settings.
type SynthesisConfig struct {
	Retries     int                     `yaml:"retries"`     // Attempts per chunk beyond the first
	RetryDelay  Duration                `yaml:"retry_delay"` // Fixed sleep between attempts
	Concurrency int                     `yaml:"concurrency"` // 1 = strictly sequential
	Settings    model.SynthesisSettings `yaml:"settings"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LedgerConfig holds settings for the sqlite assignment/job ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 5,
			Timeout: Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://api.elevenlabs.io/v1",
			StreamURL: "wss://api.elevenlabs.io/v1",
			ModelID:   "eleven_multilingual_v2",
			PageSize:  100,
		},
		Cache: CacheConfig{
			Dir:          "./data/cache",
			VoicesFile:   "voices.json",
			MappingsFile: "voice_mappings.json",
		},
		Selection: SelectionConfig{
			Strategy: "top",
			TopK:     3,
			Language: "en",
			UseCase:  "informative_educational",
			Weights: RankWeights{
				Gender:  0.3,
				Accent:  0.2,
				Age:     0.1,
				UseCase: 0.1,
			},
		},
		TextPrep: TextPrepConfig{
			MaxChunkSize: 4000,
		},
		Synthesis: SynthesisConfig{
			Retries:     2, // 3 attempts total
			RetryDelay:  Duration(2 * time.Second),
			Concurrency: 1,
			Settings: model.SynthesisSettings{
				Stability:       0.5,
				SimilarityBoost: 0.75,
				Style:           0.0,
			},
		},
		Log: LogConfig{
			Path:  "./logs/lectern.log",
			Level: "INFO",
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "./data/lectern.db",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, defaults are merged with existing values but the
// file is NOT rewritten (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	// Env fallback, never saved back to disk.
	if cfg.Catalog.Key == "" {
		if key := os.Getenv("LECTERN_CATALOG_API_KEY"); key != "" {
			cfg.Catalog.Key = key
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Catalog.PageSize < 1 || c.Catalog.PageSize > 100 {
		return fmt.Errorf("catalog.page_size must be in [1,100], got %d", c.Catalog.PageSize)
	}
	if c.TextPrep.MaxChunkSize < 100 {
		return fmt.Errorf("text_prep.max_chunk_size too small: %d", c.TextPrep.MaxChunkSize)
	}
	if c.Synthesis.Concurrency < 1 {
		c.Synthesis.Concurrency = 1
	}
	switch c.Selection.Strategy {
	case "top", "top_random", "weighted":
	default:
		return fmt.Errorf("unknown selection strategy: %s", c.Selection.Strategy)
	}
	return nil
}
