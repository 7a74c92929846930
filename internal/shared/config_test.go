package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Backend.BaseURL != "http://localhost:9863" {
			t.Errorf("expected backend base_url http://localhost:9863, got %s", config.Backend.BaseURL)
		}

		if config.Backend.Token != "" {
			t.Errorf("expected empty backend token, got %s", config.Backend.Token)
		}

		if config.Sync.LogCap != 200 {
			t.Errorf("expected log cap 200, got %d", config.Sync.LogCap)
		}

		if config.Logging.Level != "info" {
			t.Errorf("expected logging level info, got %s", config.Logging.Level)
		}
	})

	t.Run("durations fall back on zero values", func(t *testing.T) {
		var config Config

		if got := config.Backend.ConnectTimeout(); got != 10*time.Second {
			t.Errorf("expected 10s connect timeout, got %v", got)
		}
		if got := config.Sync.BackoffInitial(); got != 2*time.Second {
			t.Errorf("expected 2s initial backoff, got %v", got)
		}
		if got := config.Sync.BackoffMax(); got != 30*time.Second {
			t.Errorf("expected 30s backoff cap, got %v", got)
		}

		config.Sync.BackoffInitialSecs = 5
		if got := config.Sync.BackoffInitial(); got != 5*time.Second {
			t.Errorf("expected 5s initial backoff, got %v", got)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Backend.BaseURL != defaultConfig.Backend.BaseURL {
			t.Errorf("created config base_url doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[backend]
base_url = "https://jobs.example.com"
token = "secret-token"
connect_timeout_secs = 5

[sync]
backoff_initial_secs = 1
backoff_max_secs = 15
log_cap = 50
refresh_rate = 2.0
refresh_burst = 5

[logging]
level = "debug"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Backend.BaseURL != "https://jobs.example.com" {
			t.Errorf("expected base_url https://jobs.example.com, got %s", config.Backend.BaseURL)
		}

		if config.Backend.Token != "secret-token" {
			t.Errorf("expected token secret-token, got %s", config.Backend.Token)
		}

		if config.Sync.BackoffMax() != 15*time.Second {
			t.Errorf("expected 15s backoff cap, got %v", config.Sync.BackoffMax())
		}

		if config.Sync.RefreshBurst != 5 {
			t.Errorf("expected refresh burst 5, got %d", config.Sync.RefreshBurst)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("expected non-empty ids")
	}
	if a == b {
		t.Error("expected unique ids")
	}
	if len(a) != 36 {
		t.Errorf("expected canonical uuid length 36, got %d", len(a))
	}
}
