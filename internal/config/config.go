// Package config resolves minisql's runtime configuration from a YAML
// file overlay, environment variables, and an optional .env file, in that
// precedence order (env wins over file, file wins over defaults).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is minisql's process-wide runtime configuration.
type Config struct {
	DataDir       string   `yaml:"data_dir"`
	CORSOrigins   []string `yaml:"cors_origins"`
	MaxQueryLen   int      `yaml:"max_query_len"`
	MaxResultRows int      `yaml:"max_result_rows"`
	MaxHistory    int      `yaml:"max_history"`
	LogLevel      string   `yaml:"log_level"`
	HTTPAddr      string   `yaml:"http_addr"`
}

// DefaultConfig returns the configuration used when no file or
// environment variable overrides a field.
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data",
		CORSOrigins:   []string{"*"},
		MaxQueryLen:   65536,
		MaxResultRows: 10000,
		MaxHistory:    100,
		LogLevel:      "info",
		HTTPAddr:      ":8080",
	}
}

// LoadFromFile reads a YAML config file on top of DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv overlays MINISQL_* environment variables onto cfg, in
// place. A .env file, if present in the working directory, is
// loaded first via godotenv so local development doesn't need to export
// variables by hand; its absence is not an error.
func LoadFromEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("MINISQL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MINISQL_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("MINISQL_MAX_QUERY_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxQueryLen = n
		}
	}
	if v := os.Getenv("MINISQL_MAX_RESULT_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxResultRows = n
		}
	}
	if v := os.Getenv("MINISQL_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxHistory = n
		}
	}
	if v := os.Getenv("MINISQL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MINISQL_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configuration values the server cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.MaxQueryLen <= 0 {
		return fmt.Errorf("max_query_len must be positive, got %d", c.MaxQueryLen)
	}
	if c.MaxResultRows <= 0 {
		return fmt.Errorf("max_result_rows must be positive, got %d", c.MaxResultRows)
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("max_history must be positive, got %d", c.MaxHistory)
	}
	return nil
}

// Load resolves the final Config: defaults, then an optional YAML file
// (configPath, ignored when empty), then environment overrides.
func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error
	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}
	LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
