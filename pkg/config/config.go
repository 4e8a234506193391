// Package config loads transformation configs from disk and holds the
// settings of the HTTP service.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aleksaelezovic/sparqlgraph/pkg/transform"
)

// Load reads a transformation config. The decoder is picked by file
// extension: .yaml and .yml use YAML, everything else JSON.
func Load(path string) (*transform.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a transformation config. ext selects the
// format the same way as in Load.
func Parse(data []byte, ext string) (*transform.Config, error) {
	var cfg transform.Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Environment variables read by LoadServerConfig
const (
	EnvAddr     = "SPARQLGRAPH_ADDR"
	EnvCacheDir = "SPARQLGRAPH_CACHE_DIR"
	EnvCacheTTL = "SPARQLGRAPH_CACHE_TTL"
	EnvMaxBody  = "SPARQLGRAPH_MAX_BODY"
	EnvLogLevel = "LOG_LEVEL"
)

// ServerConfig holds the settings of the HTTP service
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout" validate:"gt=0"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout" validate:"gt=0"`
	IdleTimeout  time.Duration `json:"idleTimeout" yaml:"idleTimeout" validate:"gt=0"`

	// CacheDir is the badger directory of the graph cache. Empty keeps
	// the cache in memory.
	CacheDir string        `json:"cacheDir,omitempty" yaml:"cacheDir,omitempty"`
	CacheTTL time.Duration `json:"cacheTTL" yaml:"cacheTTL" validate:"gte=0"`

	// MaxBodyBytes limits request bodies
	MaxBodyBytes int64 `json:"maxBodyBytes" yaml:"maxBodyBytes" validate:"gt=0"`

	LogLevel string `json:"logLevel" yaml:"logLevel" validate:"oneof=debug info warn error"`
}

// DefaultServerConfig returns the settings used when nothing is overridden
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "localhost:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		CacheTTL:     24 * time.Hour,
		MaxBodyBytes: 10 << 20,
		LogLevel:     "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadServerConfig returns the default settings with environment
// overrides applied.
func LoadServerConfig() (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment. lookup has the
// signature of os.LookupEnv.
func (c *ServerConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Addr = v
	}
	if v, ok := lookup(EnvCacheDir); ok {
		c.CacheDir = v
	}
	if v, ok := lookup(EnvCacheTTL); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCacheTTL, err)
		}
		c.CacheTTL = ttl
	}
	if v, ok := lookup(EnvMaxBody); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxBody, err)
		}
		c.MaxBodyBytes = n
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

// Validate checks the settings
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c *ServerConfig) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel converts a level name to a slog level. Unknown names map to
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
