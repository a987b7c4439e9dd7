package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all bridge configuration
type Config struct {
	Environment string
	Platform    string
	Correlation CorrelationConfig
	Recovery    RecoveryConfig
	IAP         IAPConfig
	Sentry      SentryConfig
}

// CorrelationConfig holds request correlation configuration
type CorrelationConfig struct {
	// Timeout bounds how long an asynchronous backend may take to answer
	// a correlated request before it resolves to a timeout error.
	Timeout time.Duration
}

// RecoveryConfig holds pending-purchase recovery configuration
type RecoveryConfig struct {
	// AutoRun triggers a recovery pass after every successful connect.
	AutoRun bool
}

// IAPConfig holds receipt verification configuration
type IAPConfig struct {
	AppleSharedSecret string
	AppleProduction   bool
	GoogleKeyJSON     string
	GooglePackageName string
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// .env file is optional for production (env vars are used)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "production")
	viper.SetDefault("platform", "android")

	// Correlation defaults
	viper.SetDefault("correlation.timeout", 15*time.Second)

	// Recovery defaults
	viper.SetDefault("recovery.autorun", true)

	// IAP defaults
	viper.SetDefault("iap.appleproduction", true)
	viper.SetDefault("iap.applesharedsecret", "")
	viper.SetDefault("iap.googlekeyjson", "")
	viper.SetDefault("iap.googlepackagename", "")

	// Sentry defaults
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "")
	viper.SetDefault("sentry.release", "")
}

func validate(cfg *Config) error {
	if cfg.Correlation.Timeout <= 0 {
		return fmt.Errorf("CORRELATION_TIMEOUT must be positive")
	}
	if cfg.Platform != "android" && cfg.Platform != "ios" {
		return fmt.Errorf("PLATFORM must be android or ios")
	}
	return nil
}
