package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/tidefall/docstore/internal/core/constants"
)

const (
	DefaultDatabaseURI  = "mongodb://localhost:27017"
	DefaultDatabaseName = "docstore"
	DefaultCollection   = "documents"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URI:                    DefaultDatabaseURI,
			Database:               DefaultDatabaseName,
			Collection:             DefaultCollection,
			ServerSelectionTimeout: constants.DefaultServerSelectionTimeout,
			HeartbeatInterval:      constants.DefaultHeartbeatInterval,
			MaxPoolSize:            constants.DefaultMaxPoolSize,
		},
		Store: StoreConfig{
			OperationTimeout: constants.DefaultOperationTimeout,
			ReadAttempts:     constants.DefaultReadAttempts,
			WriteAttempts:    constants.DefaultWriteAttempts,
			RetryBaseDelay:   constants.DefaultRetryBaseDelay,
			RetryMaxDelay:    constants.DefaultRetryMaxDelay,
			ChangeBufferSize: constants.DefaultChangeBufferSize,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogDir:     "./logs",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			FileOutput: false,
		},
	}
}

// registerDefaults seeds every known key so viper's env lookup has a
// key set to match DOCSTORE_* variables against, and Unmarshal sees the
// full default tree merged under file and env values.
func registerDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.uri", cfg.Database.URI)
	v.SetDefault("database.database", cfg.Database.Database)
	v.SetDefault("database.collection", cfg.Database.Collection)
	v.SetDefault("database.server_selection_timeout", cfg.Database.ServerSelectionTimeout)
	v.SetDefault("database.heartbeat_interval", cfg.Database.HeartbeatInterval)
	v.SetDefault("database.max_pool_size", cfg.Database.MaxPoolSize)

	v.SetDefault("store.operation_timeout", cfg.Store.OperationTimeout)
	v.SetDefault("store.read_attempts", cfg.Store.ReadAttempts)
	v.SetDefault("store.write_attempts", cfg.Store.WriteAttempts)
	v.SetDefault("store.retry_base_delay", cfg.Store.RetryBaseDelay)
	v.SetDefault("store.retry_max_delay", cfg.Store.RetryMaxDelay)
	v.SetDefault("store.change_buffer_size", cfg.Store.ChangeBufferSize)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.log_dir", cfg.Logging.LogDir)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.file_output", cfg.Logging.FileOutput)
}

// Load loads configuration from file and environment variables. The
// optional onChange hook fires when the config file is rewritten.
func Load(onChange func()) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("DOCSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	registerDefaults(v, config)

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("DOCSTORE_CONFIG_FILE"); configFile != "" {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() != "" {
		if onChange != nil {
			v.OnConfigChange(func(event fsnotify.Event) {
				onChange()
			})
		}
		v.WatchConfig()
	}

	return config, nil
}

// Validate checks the loaded configuration for values the store cannot
// operate with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URI) == "" {
		return fmt.Errorf("database.uri must not be empty")
	}
	if strings.TrimSpace(c.Database.Database) == "" {
		return fmt.Errorf("database.database must not be empty")
	}
	if c.Store.OperationTimeout <= 0 {
		return fmt.Errorf("store.operation_timeout must be positive, got %v", c.Store.OperationTimeout)
	}
	if c.Store.ReadAttempts < 1 {
		return fmt.Errorf("store.read_attempts must be at least 1, got %d", c.Store.ReadAttempts)
	}
	if c.Store.WriteAttempts < 1 {
		return fmt.Errorf("store.write_attempts must be at least 1, got %d", c.Store.WriteAttempts)
	}
	if c.Store.RetryBaseDelay < 0 {
		return fmt.Errorf("store.retry_base_delay must not be negative, got %v", c.Store.RetryBaseDelay)
	}

	return nil
}
