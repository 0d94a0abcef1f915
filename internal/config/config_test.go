package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Cache.BaseTTL != 30*time.Minute {
		t.Errorf("BaseTTL = %v, want 30m", cfg.Cache.BaseTTL)
	}
	if cfg.Cache.LevelFactor != 0.5 {
		t.Errorf("LevelFactor = %v, want 0.5", cfg.Cache.LevelFactor)
	}
	if cfg.Skip.ExpectedResponseTime != 3*time.Second {
		t.Errorf("ExpectedResponseTime = %v, want 3s", cfg.Skip.ExpectedResponseTime)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.BaseTTL != Default().Cache.BaseTTL {
		t.Errorf("BaseTTL = %v, want default", cfg.Cache.BaseTTL)
	}
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helix.yaml")
	data := []byte("db_path: /tmp/x.db\ncache:\n  base_ttl: 10m\n  level_factor: 0.25\nskip:\n  expected_response_time: 2s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Cache.BaseTTL != 10*time.Minute {
		t.Errorf("BaseTTL = %v, want 10m", cfg.Cache.BaseTTL)
	}
	if cfg.Cache.LevelFactor != 0.25 {
		t.Errorf("LevelFactor = %v, want 0.25", cfg.Cache.LevelFactor)
	}
	if cfg.Skip.ExpectedResponseTime != 2*time.Second {
		t.Errorf("ExpectedResponseTime = %v, want 2s", cfg.Skip.ExpectedResponseTime)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HELIX_DB", "/env/helix.db")
	t.Setenv("HELIX_CACHE_TTL", "5m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/env/helix.db" {
		t.Errorf("DBPath = %q, want env value", cfg.DBPath)
	}
	if cfg.Cache.BaseTTL != 5*time.Minute {
		t.Errorf("BaseTTL = %v, want 5m", cfg.Cache.BaseTTL)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helix.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  base_ttl: -1m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for negative base_ttl")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helix.yaml")
	if err := os.WriteFile(path, []byte("cache: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
