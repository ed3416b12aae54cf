// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	ledgerPath := cfg.Storage.LedgerPath
//	clientID := cfg.TrueLayer.ClientID
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	TrueLayer     TrueLayerConfig     `yaml:"truelayer"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	Sync          SyncConfig          `yaml:"sync"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds the data file locations
type StorageConfig struct {
	LedgerPath      string `yaml:"ledger_path"`
	CategoriesPath  string `yaml:"categories_path"`
	ConnectionsPath string `yaml:"connections_path"`
	BackupDir       string `yaml:"backup_dir"`
}

// TrueLayerConfig holds the bank data provider credentials
type TrueLayerConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Environment  string `yaml:"environment"` // "sandbox" or "production"
	RedirectURI  string `yaml:"redirect_uri"`
	TimeoutSecs  int    `yaml:"timeout_seconds"`
	RetryMax     int    `yaml:"retry_max"`
}

// GeminiConfig holds the category suggestion model configuration
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// SyncConfig holds sync window tuning
type SyncConfig struct {
	OverlapDays  int `yaml:"overlap_days"`
	LookbackDays int `yaml:"lookback_days"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Timeout converts the configured timeout into a duration, zero meaning
// "use the client default".
func (t TrueLayerConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSecs) * time.Second
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${TRUELAYER_CLIENT_SECRET})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			LedgerPath:      getEnv("SPENDWELL_LEDGER_PATH", ""),
			CategoriesPath:  getEnv("SPENDWELL_CATEGORIES_PATH", ""),
			ConnectionsPath: getEnv("SPENDWELL_CONNECTIONS_PATH", ""),
			BackupDir:       getEnv("SPENDWELL_BACKUP_DIR", ""),
		},
		TrueLayer: TrueLayerConfig{
			ClientID:     os.Getenv("TRUELAYER_CLIENT_ID"),
			ClientSecret: os.Getenv("TRUELAYER_CLIENT_SECRET"),
			Environment:  getEnv("TRUELAYER_ENVIRONMENT", ""),
			RedirectURI:  getEnv("TRUELAYER_REDIRECT_URI", ""),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", ""),
		},
		Sync: SyncConfig{
			OverlapDays:  getEnvInt("SPENDWELL_SYNC_OVERLAP_DAYS", 0),
			LookbackDays: getEnvInt("SPENDWELL_SYNC_LOOKBACK_DAYS", 0),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", ""),
				Format: getEnv("LOG_FORMAT", ""),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func (c *Config) applyDefaults() {
	if c.Storage.LedgerPath == "" {
		c.Storage.LedgerPath = "transactions.csv"
	}
	if c.Storage.CategoriesPath == "" {
		c.Storage.CategoriesPath = "categories.json"
	}
	if c.Storage.ConnectionsPath == "" {
		c.Storage.ConnectionsPath = "connections.json"
	}
	if c.Storage.BackupDir == "" {
		c.Storage.BackupDir = "auto_backups"
	}
	if c.TrueLayer.Environment == "" {
		c.TrueLayer.Environment = "sandbox"
	}
	if c.TrueLayer.RedirectURI == "" {
		c.TrueLayer.RedirectURI = "https://console.truelayer.com/redirect-page"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Sync.OverlapDays <= 0 {
		c.Sync.OverlapDays = 3
	}
	if c.Sync.LookbackDays <= 0 {
		c.Sync.LookbackDays = 90
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// GetAPIKey retrieves an API key from config first, then tries multiple environment variable names
// Usage: GetAPIKey(cfg.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
func (c *Config) GetAPIKey(configValue string, envVarNames ...string) string {
	if configValue != "" {
		return configValue
	}

	for _, envVar := range envVarNames {
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}

	return ""
}
