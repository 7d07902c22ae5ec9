package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.API.BaseURL != "http://localhost:8000/api/v1" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v", cfg.API.Timeout)
	}
	if cfg.Poll.Interval != 10*time.Second {
		t.Errorf("Interval = %v", cfg.Poll.Interval)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mycafe.yaml")
	raw := `
api:
  base_url: "http://cafe.local:9000/api/v1"
  username: "garson"
  timeout: 5s
poll:
  interval: 3s
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://cafe.local:9000/api/v1" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Username != "garson" {
		t.Errorf("Username = %q", cfg.API.Username)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.API.Timeout)
	}
	if cfg.Poll.Interval != 3*time.Second {
		t.Errorf("Interval = %v", cfg.Poll.Interval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mycafe.yaml")
	if err := os.WriteFile(path, []byte("api:\n  base_url: \"http://file.local/api/v1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MYCAFE_API_URL", "http://env.local/api/v1")
	t.Setenv("MYCAFE_POLL_INTERVAL", "2s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://env.local/api/v1" {
		t.Errorf("env should win over file, BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("Interval = %v", cfg.Poll.Interval)
	}
}

func TestMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("api: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML should error")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "7")
	t.Setenv("TEST_DUR", "90s")

	if GetEnv("TEST_STR", "x") != "value" {
		t.Error("GetEnv should read the variable")
	}
	if GetEnv("TEST_UNSET", "x") != "x" {
		t.Error("GetEnv should fall back")
	}
	if GetEnvInt("TEST_INT", 1) != 7 {
		t.Error("GetEnvInt should parse")
	}
	if GetEnvInt("TEST_STR", 1) != 1 {
		t.Error("GetEnvInt should fall back on garbage")
	}
	if GetEnvDuration("TEST_DUR", time.Second) != 90*time.Second {
		t.Error("GetEnvDuration should parse")
	}
}
