// Package config loads application configuration with koanf, merging
// defaults, an optional config file, and environment variables in increasing
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lexgrove/evidentia/ai"
)

// envPrefix namespaces environment overrides. A double underscore separates
// nesting levels: EVIDENTIA_SERVER__PORT=9090 sets server.port.
const envPrefix = "EVIDENTIA_"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	AI        AIConfig        `koanf:"ai"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Admission AdmissionConfig `koanf:"admission"`
	App       AppConfig       `koanf:"app"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// DatabaseConfig holds badger storage configuration.
type DatabaseConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// AIConfig holds model service configuration.
type AIConfig struct {
	EmbeddingHost       string `koanf:"embedding_host"`
	GenerationHost      string `koanf:"generation_host"`
	EmbeddingModel      string `koanf:"embedding_model"`
	GenerationModel     string `koanf:"generation_model"`
	EmbeddingDimensions int    `koanf:"embedding_dimensions"`
}

// EmbeddingConfig tunes the embedding coordinator.
type EmbeddingConfig struct {
	BatchSize      int     `koanf:"batch_size"`
	Concurrency    int     `koanf:"concurrency"`
	CallsPerSecond float64 `koanf:"calls_per_second"` // 0 disables rate limiting
	Burst          int     `koanf:"burst"`
	MaxRetries     int     `koanf:"max_retries"`
}

// AdmissionConfig tunes the generation admission controller.
type AdmissionConfig struct {
	StaleAfter      int `koanf:"stale_after"`      // seconds
	Cooldown        int `koanf:"cooldown"`         // seconds
	MaxQueueWait    int `koanf:"max_queue_wait"`   // seconds
	ResultTTL       int `koanf:"result_ttl"`       // seconds
	MaxAttempts     int `koanf:"max_attempts"`     // model call retries
	SignalThreshold int `koanf:"signal_threshold"` // retries before queue mode
}

// AppConfig holds general application settings.
type AppConfig struct {
	LogLevel  string `koanf:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `koanf:"log_format"` // "text" or "json"
}

// Load builds the configuration. Precedence, lowest to highest: built-in
// defaults, the config file (explicit path must exist; the default
// evidentia.yaml is optional), then EVIDENTIA_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else if _, err := os.Stat("evidentia.yaml"); err == nil {
		if err := k.Load(file.Provider("evidentia.yaml"), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading evidentia.yaml: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.host":          "localhost",
		"server.port":          8080,
		"server.read_timeout":  30,
		"server.write_timeout": 120,

		"database.path":      "evidentia.db",
		"database.in_memory": false,

		"ai.embedding_host":       "http://localhost:11434/v1",
		"ai.generation_host":      "http://localhost:11434/v1",
		"ai.embedding_model":      "embeddinggemma",
		"ai.generation_model":     "qwen2.5:3b",
		"ai.embedding_dimensions": 768,

		"embedding.batch_size":       10,
		"embedding.concurrency":      5,
		"embedding.calls_per_second": 0.0,
		"embedding.burst":            1,
		"embedding.max_retries":      3,

		"admission.stale_after":      300,
		"admission.cooldown":         120,
		"admission.max_queue_wait":   600,
		"admission.result_ttl":       600,
		"admission.max_attempts":     5,
		"admission.signal_threshold": 3,

		"app.log_level":  "info",
		"app.log_format": "text",
	}

	for key, value := range defaults {
		_ = k.Set(key, value)
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", cfg.Server.Port)
	}
	if !cfg.Database.InMemory && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	if cfg.Embedding.BatchSize < 1 {
		return fmt.Errorf("embedding.batch_size must be positive")
	}
	if cfg.Embedding.Concurrency < 1 {
		return fmt.Errorf("embedding.concurrency must be positive")
	}
	if cfg.Embedding.CallsPerSecond < 0 {
		return fmt.Errorf("embedding.calls_per_second must not be negative")
	}
	if cfg.Admission.SignalThreshold > cfg.Admission.MaxAttempts {
		return fmt.Errorf("admission.signal_threshold %d exceeds admission.max_attempts %d",
			cfg.Admission.SignalThreshold, cfg.Admission.MaxAttempts)
	}

	switch cfg.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level %q is not one of debug, info, warn, error", cfg.App.LogLevel)
	}
	switch cfg.App.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format %q is not one of text, json", cfg.App.LogFormat)
	}

	return cfg.ModelConfig().Validate()
}

// ModelConfig converts the AI section into the provider client config.
func (c *Config) ModelConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithEmbeddingDimensions(c.AI.EmbeddingDimensions),
	)
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// StaleAfter returns the lock staleness window.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Admission.StaleAfter) * time.Second
}

// Cooldown returns the queue-mode deactivation delay.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Admission.Cooldown) * time.Second
}

// MaxQueueWait returns how long a queued request may wait before eviction.
func (c *Config) MaxQueueWait() time.Duration {
	return time.Duration(c.Admission.MaxQueueWait) * time.Second
}

// ResultTTL returns how long resolved queued outcomes stay pollable.
func (c *Config) ResultTTL() time.Duration {
	return time.Duration(c.Admission.ResultTTL) * time.Second
}
