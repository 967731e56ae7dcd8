package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort     = 8080
	defaultDataDir  = "data"
	defaultLogLevel = "info"
)

// DefaultExtensions is the archive classification set used when none is configured.
var DefaultExtensions = []string{"zip", "rar", "7z", "tar", "gz", "bz2"}

// Config describes runtime configuration for the service.
type Config struct {
	Port     int    `yaml:"port" env:"ZIPDIVE_PORT"`
	DataDir  string `yaml:"data_dir" env:"ZIPDIVE_DATA_DIR"`
	ToolPath string `yaml:"tool_path" env:"ZIPDIVE_TOOL_PATH"`

	Extensions []string `yaml:"extensions" env:"ZIPDIVE_EXTENSIONS" envSeparator:","`

	// MaxConcurrentExtractions caps tool subprocesses per layer. Zero means unbounded.
	MaxConcurrentExtractions int `yaml:"max_concurrent_extractions" env:"ZIPDIVE_MAX_CONCURRENT_EXTRACTIONS"`
	// ExtractTimeout bounds a single tool invocation. Zero means no timeout.
	ExtractTimeout time.Duration `yaml:"extract_timeout" env:"ZIPDIVE_EXTRACT_TIMEOUT"`

	AutoAdvance bool   `yaml:"auto_advance" env:"ZIPDIVE_AUTO_ADVANCE"`
	LogLevel    string `yaml:"log_level" env:"ZIPDIVE_LOG_LEVEL"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Port:       defaultPort,
		DataDir:    defaultDataDir,
		Extensions: append([]string(nil), DefaultExtensions...),
		LogLevel:   defaultLogLevel,
	}
}

// Load reads YAML config from the provided path and applies ZIPDIVE_*
// environment overrides on top. A missing or empty file yields defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return normalize(cfg)
}

func normalize(cfg Config) (Config, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.MaxConcurrentExtractions < 0 {
		return cfg, fmt.Errorf("invalid max_concurrent_extractions: %d (must be >= 0)", cfg.MaxConcurrentExtractions)
	}
	if cfg.ExtractTimeout < 0 {
		return cfg, fmt.Errorf("invalid extract_timeout: %s (must be >= 0)", cfg.ExtractTimeout)
	}
	cfg.Extensions = NormalizeExtensions(cfg.Extensions)
	return cfg, nil
}

// NormalizeExtensions lower-cases, strips the leading dot and deduplicates.
// An empty result falls back to DefaultExtensions.
func NormalizeExtensions(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, ext := range in {
		e := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	if len(normalized) == 0 {
		return append([]string(nil), DefaultExtensions...)
	}
	return normalized
}
