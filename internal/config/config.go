// Package config provides configuration loading for fixd.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when a configuration value fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete fixd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Corpus        CorpusConfig        `koanf:"corpus"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Generation    GenerationConfig    `koanf:"generation"`
	Metrics       MetricsConfig       `koanf:"metrics"`
	Secrets       SecretsConfig       `koanf:"secrets"`
}

// ServerConfig holds HTTP front door configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// ReadTimeout and WriteTimeout must cover a full generation round trip.
	ReadTimeout  Duration `koanf:"read_timeout"`
	WriteTimeout Duration `koanf:"write_timeout"`
	BodyLimit    string   `koanf:"body_limit"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"`
	Insecure        bool    `koanf:"insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
	// ExportLogs mirrors structured logs to an OTLP/HTTP collector.
	ExportLogs   bool   `koanf:"export_logs"`
	LogsEndpoint string `koanf:"logs_endpoint"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed", "tei" or "openai".
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	CacheDir  string `koanf:"cache_dir"`
	CacheSize int    `koanf:"cache_size"`
}

// CorpusConfig locates the remediation recipe corpus.
type CorpusConfig struct {
	Dir string `koanf:"dir"`
	// CatalogPath persists recipe embeddings between restarts. Empty disables it.
	CatalogPath string `koanf:"catalog_path"`
}

// RetrievalConfig controls recipe retrieval.
type RetrievalConfig struct {
	Enabled bool `koanf:"enabled"`
	// MaxDistance rejects vector matches farther than this squared L2 distance.
	// Zero keeps every nearest match.
	MaxDistance float64 `koanf:"max_distance"`
}

// GenerationConfig selects and configures the generative model.
type GenerationConfig struct {
	// Provider is "langchain" or "openai".
	Provider string `koanf:"provider"`
	// Backend is the langchain backend: "ollama" or "openai".
	Backend        string  `koanf:"backend"`
	Model          string  `koanf:"model"`
	BaseURL        string  `koanf:"base_url"`
	APIKey         Secret  `koanf:"api_key"`
	MaxNewTokens   int     `koanf:"max_new_tokens"`
	Temperature    float64 `koanf:"temperature"`
	TopP           float64 `koanf:"top_p"`
	MaxInputTokens int     `koanf:"max_input_tokens"`
	Encoding       string  `koanf:"encoding"`
	// RateLimit caps model calls per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// MetricsConfig locates the append-only request log.
type MetricsConfig struct {
	LogPath string `koanf:"log_path"`
}

// SecretsConfig controls credential scanning of code excerpts.
type SecretsConfig struct {
	Enabled         bool   `koanf:"enabled"`
	RedactionString string `koanf:"redaction_string"`
}

// Default returns the configuration used when no file or env override is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(10 * time.Minute),
			BodyLimit:       "1M",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "fixd",
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			SampleRate:      1.0,
			LogsEndpoint:    "localhost:4318",
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "fastembed",
			Model:     "BAAI/bge-small-en-v1.5",
			BaseURL:   "http://localhost:8080",
			CacheDir:  "./local_cache",
			CacheSize: 1024,
		},
		Corpus: CorpusConfig{
			Dir: "./recipes",
		},
		Retrieval: RetrievalConfig{
			Enabled: true,
		},
		Generation: GenerationConfig{
			Provider:       "langchain",
			Backend:        "ollama",
			Model:          "qwen2.5-coder:1.5b",
			BaseURL:        "http://localhost:11434",
			MaxNewTokens:   512,
			Temperature:    0.2,
			TopP:           0.95,
			MaxInputTokens: 2048,
			Encoding:       "cl100k_base",
		},
		Metrics: MetricsConfig{
			LogPath: "./logs/metrics.csv",
		},
		Secrets: SecretsConfig{
			Enabled:         true,
			RedactionString: "[REDACTED]",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535, got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("%w: logging.format must be 'json' or 'console', got %q", ErrInvalidConfig, c.Logging.Format)
	}

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei", "openai":
		if err := validateURL(c.Embeddings.BaseURL); err != nil {
			return fmt.Errorf("%w: embeddings.base_url: %v", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown embeddings.provider %q", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("%w: embeddings.model is required", ErrInvalidConfig)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("%w: embeddings.cache_size must be >= 0", ErrInvalidConfig)
	}

	if c.Corpus.Dir == "" {
		return fmt.Errorf("%w: corpus.dir is required", ErrInvalidConfig)
	}
	if c.Retrieval.MaxDistance < 0 {
		return fmt.Errorf("%w: retrieval.max_distance must be >= 0", ErrInvalidConfig)
	}

	g := c.Generation
	switch g.Provider {
	case "langchain":
		if g.Backend != "ollama" && g.Backend != "openai" {
			return fmt.Errorf("%w: unknown generation.backend %q", ErrInvalidConfig, g.Backend)
		}
	case "openai":
	default:
		return fmt.Errorf("%w: unknown generation.provider %q", ErrInvalidConfig, g.Provider)
	}
	if g.Model == "" {
		return fmt.Errorf("%w: generation.model is required", ErrInvalidConfig)
	}
	if g.BaseURL != "" {
		if err := validateURL(g.BaseURL); err != nil {
			return fmt.Errorf("%w: generation.base_url: %v", ErrInvalidConfig, err)
		}
	}
	if g.MaxNewTokens <= 0 {
		return fmt.Errorf("%w: generation.max_new_tokens must be positive", ErrInvalidConfig)
	}
	if g.Temperature < 0 {
		return fmt.Errorf("%w: generation.temperature must be >= 0", ErrInvalidConfig)
	}
	if g.TopP <= 0 || g.TopP > 1 {
		return fmt.Errorf("%w: generation.top_p must be in (0, 1]", ErrInvalidConfig)
	}
	if g.MaxInputTokens <= 0 {
		return fmt.Errorf("%w: generation.max_input_tokens must be positive", ErrInvalidConfig)
	}
	if g.RateLimit < 0 {
		return fmt.Errorf("%w: generation.rate_limit must be >= 0", ErrInvalidConfig)
	}

	if c.Metrics.LogPath == "" {
		return fmt.Errorf("%w: metrics.log_path is required", ErrInvalidConfig)
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("%w: observability.sample_rate must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
