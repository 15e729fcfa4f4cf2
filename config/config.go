package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"dndbot/database"
	"dndbot/domain"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendDynamo   = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken string `env:"DISCORD_TOKEN"`
	DiscordAppID string `env:"DISCORD_APP_ID"`
	GuildID      string `env:"GUILD_ID"` // commands are registered to this guild only when set

	// Store configuration
	StoreBackend     string `env:"STORE_BACKEND" envDefault:"dynamodb"`
	AWSAccessKeyID   string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey     string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion        string `env:"AWS_REGION"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT"` // DynamoDB Local
	TablePrefix      string `env:"TABLE_PREFIX"`

	// Database configuration, postgres backend only
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Provisioning
	ProvisionOnStart       bool          `env:"PROVISION_ON_START" envDefault:"true"`
	ProvisionSettleTimeout time.Duration `env:"PROVISION_SETTLE_TIMEOUT" envDefault:"2m"`

	// Wallet writes
	WalletMaxAttempts int `env:"WALLET_MAX_ATTEMPTS" envDefault:"5"`

	// NATS configuration; events are dropped when unset
	NATSServers string `env:"NATS_SERVERS"`

	// Environment
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"` // "development" or "production"
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance. It panics if the
// configuration cannot be loaded; entry points call Load first.
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// Load reads the configuration and installs it as the global instance
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	SetTestConfig(cfg)
	return cfg, nil
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the process runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from a .env file, if any, and the environment
func load() (*Config, error) {
	// variables already set in the environment win over the file
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports every missing required variable at once
func (c *Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	if c.Environment != "test" {
		require("DISCORD_TOKEN", c.DiscordToken)
	}

	switch c.StoreBackend {
	case BackendDynamo:
		require("AWS_ACCESS_KEY_ID", c.AWSAccessKeyID)
		require("AWS_SECRET_ACCESS_KEY", c.AWSSecretKey)
		require("AWS_REGION", c.AWSRegion)
	case BackendPostgres:
		require("DATABASE_URL", c.DatabaseURL)
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if len(missing) > 0 {
		return &domain.ConfigurationError{Missing: missing}
	}
	if c.WalletMaxAttempts < 1 {
		return fmt.Errorf("WALLET_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		StoreBackend:           BackendMemory,
		ProvisionOnStart:       true,
		ProvisionSettleTimeout: 5 * time.Second,
		WalletMaxAttempts:      5,
		Environment:            "test",
		LogLevel:               "debug",
		ShutdownTimeout:        time.Second,
	}
}
