package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Sync    SyncConfig    `toml:"sync"`
	Logging LoggingConfig `toml:"logging"`
}

// BackendConfig contains connection settings for the job backend.
type BackendConfig struct {
	BaseURL            string `toml:"base_url"`
	Token              string `toml:"token"`
	ConnectTimeoutSecs int    `toml:"connect_timeout_secs"`
}

// ConnectTimeout returns the configured connect timeout as a [time.Duration].
func (b BackendConfig) ConnectTimeout() time.Duration {
	if b.ConnectTimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.ConnectTimeoutSecs) * time.Second
}

// SyncConfig tunes the synchronization engine.
type SyncConfig struct {
	BackoffInitialSecs int     `toml:"backoff_initial_secs"`
	BackoffMaxSecs     int     `toml:"backoff_max_secs"`
	LogCap             int     `toml:"log_cap"`
	RefreshRate        float64 `toml:"refresh_rate"`
	RefreshBurst       int     `toml:"refresh_burst"`
}

// BackoffInitial returns the initial reconnect delay.
func (s SyncConfig) BackoffInitial() time.Duration {
	if s.BackoffInitialSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.BackoffInitialSecs) * time.Second
}

// BackoffMax returns the reconnect delay cap.
func (s SyncConfig) BackoffMax() time.Duration {
	if s.BackoffMaxSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.BackoffMaxSecs) * time.Second
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
