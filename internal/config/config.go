package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	EnvConfigPath = "LEXIBRIEF_CONFIG"
	envPrefix     = "LEXIBRIEF_"

	DefaultUploadLimit  = 10_000_000
	DefaultMinLength    = 50
	DefaultMaxLength    = 150
	DefaultExcerptChars = 2000
)

// Config represents runtime configuration for the service.
type Config struct {
	Server     ServerConfig              `json:"server"     envPrefix:"SERVER_"`
	Summarizer SummarizerConfig          `json:"summarizer" envPrefix:"SUMMARIZER_"`
	Upload     UploadConfig              `json:"upload"     envPrefix:"UPLOAD_"`
	Assets     AssetsConfig              `json:"assets"     envPrefix:"ASSETS_"`
	Log        LogConfig                 `json:"log"        envPrefix:"LOG_"`
	Providers  map[string]ProviderConfig `json:"providers"`
}

type ServerConfig struct {
	Address                 string `json:"address"                   env:"ADDRESS"`
	InferenceTimeoutSeconds int    `json:"inference_timeout_seconds" env:"INFERENCE_TIMEOUT_SECONDS"`
	RateLimitPerMinute      int    `json:"rate_limit_per_minute"     env:"RATE_LIMIT_PER_MINUTE"`
	Workers                 int    `json:"workers"                   env:"WORKERS"`
	QueueSize               int    `json:"queue_size"                env:"QUEUE_SIZE"`
}

// SummarizerConfig selects the engine and the fixed length bounds. Sampling is
// always disabled and therefore has no knob.
type SummarizerConfig struct {
	Provider  string `json:"provider"   env:"PROVIDER"`
	Model     string `json:"model"      env:"MODEL"`
	MinLength int    `json:"min_length" env:"MIN_LENGTH"`
	MaxLength int    `json:"max_length" env:"MAX_LENGTH"`
}

type UploadConfig struct {
	MaxBytes     int64  `json:"max_bytes"     env:"MAX_BYTES"`
	TempDir      string `json:"temp_dir"      env:"TEMP_DIR"`
	ExcerptChars int    `json:"excerpt_chars" env:"EXCERPT_CHARS"`
}

type AssetsConfig struct {
	LogoPath string `json:"logo_path" env:"LOGO_PATH"`
}

type LogConfig struct {
	Level  string `json:"level"  env:"LEVEL"`
	Pretty bool   `json:"pretty" env:"PRETTY"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// Providers understood by the summarizer.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderClaude      = "claude"
	ProviderGemini      = "gemini"
)

var providerKeyEnv = map[string]string{
	ProviderHuggingFace: "HF_TOKEN",
	ProviderOpenAI:      "OPENAI_API_KEY",
	ProviderClaude:      "ANTHROPIC_API_KEY",
	ProviderGemini:      "GEMINI_API_KEY",
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:                 ":8090",
			InferenceTimeoutSeconds: 120,
			RateLimitPerMinute:      30,
			Workers:                 1,
			QueueSize:               16,
		},
		Summarizer: SummarizerConfig{
			Provider:  ProviderHuggingFace,
			MinLength: DefaultMinLength,
			MaxLength: DefaultMaxLength,
		},
		Upload: UploadConfig{
			MaxBytes:     DefaultUploadLimit,
			ExcerptChars: DefaultExcerptChars,
		},
		Assets: AssetsConfig{LogoPath: "lexibrief_logo.png"},
		Log:    LogConfig{Level: "info"},
		Providers: map[string]ProviderConfig{
			ProviderHuggingFace: {
				BaseURL: "https://router.huggingface.co/hf-inference/models",
				Model:   "facebook/bart-large-cnn",
			},
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json),
// applies LEXIBRIEF_* environment overrides and validates the result. A
// missing default file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	if cfg.Assets.LogoPath != "" && !filepath.IsAbs(cfg.Assets.LogoPath) && file != nil {
		cfg.Assets.LogoPath = filepath.Join(filepath.Dir(absPath), cfg.Assets.LogoPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if c.Upload.ExcerptChars <= 0 {
		return errors.New("upload.excerpt_chars must be positive")
	}
	if c.Summarizer.MinLength <= 0 {
		return errors.New("summarizer.min_length must be positive")
	}
	if c.Summarizer.MinLength > c.Summarizer.MaxLength {
		return fmt.Errorf("summarizer.min_length (%d) exceeds max_length (%d)", c.Summarizer.MinLength, c.Summarizer.MaxLength)
	}
	provider := strings.ToLower(strings.TrimSpace(c.Summarizer.Provider))
	if _, ok := providerKeyEnv[provider]; !ok {
		return fmt.Errorf("unsupported summarizer provider: %q", c.Summarizer.Provider)
	}
	c.Summarizer.Provider = provider
	if c.Server.Workers < 0 || c.Server.QueueSize < 0 {
		return errors.New("server.workers and server.queue_size cannot be negative")
	}
	return nil
}

// Provider returns the settings of the selected provider. summarizer.model
// overrides the provider's model, and the API key falls back to the
// conventional environment variable when the file leaves it empty.
func (c *Config) Provider() ProviderConfig {
	name := c.Summarizer.Provider
	pc := c.Providers[name]
	if c.Summarizer.Model != "" {
		pc.Model = c.Summarizer.Model
	}
	if pc.APIKey == "" {
		if key, ok := providerKeyEnv[name]; ok {
			pc.APIKey = strings.TrimSpace(os.Getenv(key))
		}
	}
	return pc
}
