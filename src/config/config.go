package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"quote-ticker/src/models"
	"quote-ticker/src/utils"

	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvPort        = "QUOTE_TICKER_PORT"
	EnvDBType      = "QUOTE_TICKER_DB_TYPE"
	EnvDBPath      = "QUOTE_TICKER_DB_PATH"
	EnvDBDSN       = "QUOTE_TICKER_DB_DSN"
	EnvAlphaAPIKey = "ALPHA_VANTAGE_API_KEY"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Environment wins over the file
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "quote-ticker"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 3001
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}
	if len(c.Quotes.DefaultSymbols) == 0 {
		c.Quotes.DefaultSymbols = append([]string(nil), utils.DefaultSymbols...)
	}
	if c.Quotes.RefreshIntervalMinutes == 0 {
		c.Quotes.RefreshIntervalMinutes = utils.DefaultRefreshMinutes
	}
	if c.Quotes.AlphaVantagePerMinute == 0 {
		c.Quotes.AlphaVantagePerMinute = 5
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", EnvPort, v, err)
		}
		c.Port = port
	}
	if v := os.Getenv(EnvDBType); v != "" {
		c.Storage.DBType = strings.ToLower(v)
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv(EnvAlphaAPIKey); v != "" {
		c.Quotes.AlphaVantageAPIKey = v
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	case "redis":
		// empty addr starts an embedded server
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Quotes configuration
	if c.Quotes.RefreshIntervalMinutes < utils.MinRefreshMinutes {
		return fmt.Errorf("refresh interval must be at least %d minutes", utils.MinRefreshMinutes)
	}
	if c.Quotes.AlphaVantagePerMinute < 0 {
		return fmt.Errorf("alpha vantage rate cannot be negative")
	}
	for i, sym := range c.Quotes.DefaultSymbols {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("default symbol %d cannot be empty", i)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
