package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	// Credentials is the path to the OAuth client credentials JSON file
	Credentials string `json:"credentials"`
	// SessionDB is the path to the SQLite session database
	SessionDB string `json:"session_db"`

	// DefaultLabel is the label scope selected at startup
	DefaultLabel string `json:"default_label"`
	// PageSize is the number of messages per list page
	PageSize int `json:"page_size"`
	// BatchSize is the number of detail requests per batch call
	BatchSize int `json:"batch_size"`
	// BatchDelayMs is the pause between consecutive batch calls
	BatchDelayMs int `json:"batch_delay_ms"`

	LogFile string `json:"log_file"`
	Debug   bool   `json:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	credentials, sessionDB := DefaultSessionPaths()
	return &Config{
		Credentials:  credentials,
		SessionDB:    sessionDB,
		DefaultLabel: "INBOX",
		PageSize:     50,
		BatchSize:    10,
		BatchDelayMs: 300,
		LogFile:      filepath.Join(DefaultConfigDir(), "gmaelstrom.log"),
	}
}

// LoadConfig loads configuration from file, environment and defaults.
// Environment variables win over the file, which wins over defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// No file is fine; defaults apply.
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if v := os.Getenv("GMAELSTROM_CREDENTIALS"); v != "" {
		cfg.Credentials = v
	}
	if v := os.Getenv("GMAELSTROM_SESSION_DB"); v != "" {
		cfg.SessionDB = v
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchDelayMs < 0 {
		cfg.BatchDelayMs = 0
	}
	return cfg, nil
}

// DefaultConfigPath returns the default configuration file path, honoring
// the GMAELSTROM_CONFIG environment variable.
func DefaultConfigPath() string {
	if v := os.Getenv("GMAELSTROM_CONFIG"); v != "" {
		return v
	}
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.json")
}

// DefaultConfigDir returns the default configuration directory
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gmaelstrom")
}

// DefaultSessionPaths returns the default paths for credentials and the
// session database
func DefaultSessionPaths() (string, string) {
	dir := DefaultConfigDir()
	if dir == "" {
		return "", ""
	}
	return filepath.Join(dir, "credentials.json"), filepath.Join(dir, "session.db")
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
