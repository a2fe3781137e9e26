package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for paperd
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Trading     TradingConfig `toml:"trading"`
	Risk        RiskConfig    `toml:"risk"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds path configuration for the 2 storage areas.
type StorageConfig struct {
	Ledger AreaConfig `toml:"ledger"` // Accounts + users (BadgerHold)
	Trade  AreaConfig `toml:"trade"`  // Orders, decisions, positions (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds external collaborator configurations
type ClientsConfig struct {
	Model     ModelConfig     `toml:"model"`
	Execution ExecutionConfig `toml:"execution"`
}

// ModelConfig holds prediction-service client configuration
type ModelConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	ObsLength int    `toml:"obs_length"` // expected observation vector length
}

// GetTimeout parses and returns the timeout duration
func (c *ModelConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// ExecutionConfig holds execution-adapter configuration.
// Mode "paper" fills instantly in-process; "http" forwards to a venue endpoint.
type ExecutionConfig struct {
	Mode    string `toml:"mode"`
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ExecutionConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// TradingConfig holds paper-trading account and sizing parameters.
type TradingConfig struct {
	InitialBalance float64 `toml:"initial_balance"` // starting cash for new accounts
	OrderValue     float64 `toml:"order_value"`     // fixed notional per automated order
	AccountSize    float64 `toml:"account_size"`    // reference size for the max-position gate
}

// RiskConfig holds the automated-pipeline risk gates.
// Each gate is an independent predicate with its own enabled flag.
type RiskConfig struct {
	MinIntervalEnabled bool    `toml:"min_interval_enabled"`
	MinInterval        string  `toml:"min_interval"` // duration string, e.g. "60s"
	DailyCapEnabled    bool    `toml:"daily_cap_enabled"`
	DailyCap           int     `toml:"daily_cap"`
	MaxNotionalEnabled bool    `toml:"max_notional_enabled"`
	MaxPositionPct     float64 `toml:"max_position_pct"` // fraction of trading.account_size
}

// GetMinInterval parses and returns the min-interval duration.
func (c *RiskConfig) GetMinInterval() time.Duration {
	d, err := time.ParseDuration(c.MinInterval)
	if err != nil {
		return 0
	}
	return d
}

// AuthConfig holds authentication configuration for JWT issuance/validation.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Ledger: AreaConfig{Path: "data/ledger"},
			Trade:  AreaConfig{Path: "data/trade"},
		},
		Clients: ClientsConfig{
			Model: ModelConfig{
				BaseURL:   "http://localhost:8001",
				RateLimit: 10,
				Timeout:   "10s",
				ObsLength: 30,
			},
			Execution: ExecutionConfig{
				Mode:    "paper",
				Timeout: "10s",
			},
		},
		Trading: TradingConfig{
			InitialBalance: 100000,
			OrderValue:     1000,
			AccountSize:    100000,
		},
		Risk: RiskConfig{
			MinIntervalEnabled: true,
			MinInterval:        "0s",
			DailyCapEnabled:    false,
			DailyCap:           20,
			MaxNotionalEnabled: false,
			MaxPositionPct:     0.25,
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PAPERD_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("PAPERD_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PAPERD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PAPERD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("PAPERD_DATA_PATH"); path != "" {
		config.Storage.Ledger.Path = filepath.Join(path, "ledger")
		config.Storage.Trade.Path = filepath.Join(path, "trade")
	}

	if url := os.Getenv("PAPERD_MODEL_URL"); url != "" {
		config.Clients.Model.BaseURL = url
	}

	if mode := os.Getenv("PAPERD_EXECUTION_MODE"); mode != "" {
		config.Clients.Execution.Mode = mode
	}

	if v := os.Getenv("PAPERD_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("PAPERD_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
