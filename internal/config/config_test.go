package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate: %v", err)
	}
	if cfg.DataDir == "" || cfg.HTTPAddr == "" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("data_dir: /srv/minisql\nmax_query_len: 2048\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.DataDir != "/srv/minisql" {
		t.Errorf("got data_dir %q, want /srv/minisql", cfg.DataDir)
	}
	if cfg.MaxQueryLen != 2048 {
		t.Errorf("got max_query_len %d, want 2048", cfg.MaxQueryLen)
	}
	// Fields absent from the file keep the defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("got log_level %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromFileMissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("MINISQL_DATA_DIR", "/from/env")
	t.Setenv("MINISQL_MAX_HISTORY", "7")
	t.Setenv("MINISQL_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DataDir != "/from/env" {
		t.Errorf("got data_dir %q, want /from/env", cfg.DataDir)
	}
	if cfg.MaxHistory != 7 {
		t.Errorf("got max_history %d, want 7", cfg.MaxHistory)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("got cors_origins %v", cfg.CORSOrigins)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.DataDir = "" },
		func(c *Config) { c.MaxQueryLen = 0 },
		func(c *Config) { c.MaxResultRows = -1 },
		func(c *Config) { c.MaxHistory = 0 },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected Validate to reject %+v", i, cfg)
		}
	}
}

func TestLoadWithoutConfigPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("got %q, want ./data", cfg.DataDir)
	}
}
