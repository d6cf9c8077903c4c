package config

import (
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig holds the managed document-database connection settings
type DatabaseConfig struct {
	URI                    string        `yaml:"uri" mapstructure:"uri"`
	Database               string        `yaml:"database" mapstructure:"database"`
	Collection             string        `yaml:"collection" mapstructure:"collection"`
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout" mapstructure:"server_selection_timeout"`
	HeartbeatInterval      time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	MaxPoolSize            uint64        `yaml:"max_pool_size" mapstructure:"max_pool_size"`
}

// StoreConfig holds retry and timeout behaviour for remote calls
type StoreConfig struct {
	OperationTimeout time.Duration `yaml:"operation_timeout" mapstructure:"operation_timeout"`
	ReadAttempts     int           `yaml:"read_attempts" mapstructure:"read_attempts"`
	WriteAttempts    int           `yaml:"write_attempts" mapstructure:"write_attempts"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
	ChangeBufferSize int           `yaml:"change_buffer_size" mapstructure:"change_buffer_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	LogDir     string `yaml:"log_dir" mapstructure:"log_dir"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	FileOutput bool   `yaml:"file_output" mapstructure:"file_output"`
}
