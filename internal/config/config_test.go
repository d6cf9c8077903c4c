package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidefall/docstore/internal/core/constants"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultDatabaseURI, cfg.Database.URI)
	assert.Equal(t, DefaultDatabaseName, cfg.Database.Database)
	assert.Equal(t, 15*time.Second, cfg.Store.OperationTimeout)
	assert.Equal(t, constants.DefaultReadAttempts, cfg.Store.ReadAttempts)
	assert.Equal(t, constants.DefaultWriteAttempts, cfg.Store.WriteAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Store.RetryBaseDelay)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_RejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_uri", func(c *Config) { c.Database.URI = " " }},
		{"empty_database", func(c *Config) { c.Database.Database = "" }},
		{"zero_timeout", func(c *Config) { c.Store.OperationTimeout = 0 }},
		{"negative_timeout", func(c *Config) { c.Store.OperationTimeout = -time.Second }},
		{"zero_read_attempts", func(c *Config) { c.Store.ReadAttempts = 0 }},
		{"zero_write_attempts", func(c *Config) { c.Store.WriteAttempts = 0 }},
		{"negative_base_delay", func(c *Config) { c.Store.RetryBaseDelay = -time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AcceptsMinimalAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.ReadAttempts = 1
	cfg.Store.WriteAttempts = 1

	assert.NoError(t, cfg.Validate())
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoad_ReadsFileValues(t *testing.T) {
	path := writeConfigFile(t, `
database:
  uri: mongodb://db.internal:27017
  database: people_db
  collection: people
  server_selection_timeout: 2s
store:
  operation_timeout: 3s
  read_attempts: 2
  write_attempts: 6
  retry_base_delay: 250ms
logging:
  level: debug
`)
	t.Setenv("DOCSTORE_CONFIG_FILE", path)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db.internal:27017", cfg.Database.URI)
	assert.Equal(t, "people_db", cfg.Database.Database)
	assert.Equal(t, "people", cfg.Database.Collection)
	assert.Equal(t, 2*time.Second, cfg.Database.ServerSelectionTimeout)
	assert.Equal(t, 3*time.Second, cfg.Store.OperationTimeout)
	assert.Equal(t, 2, cfg.Store.ReadAttempts)
	assert.Equal(t, 6, cfg.Store.WriteAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.RetryBaseDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Keys the file omits fall back to defaults.
	assert.Equal(t, constants.DefaultHeartbeatInterval, cfg.Database.HeartbeatInterval)
	assert.Equal(t, constants.DefaultRetryMaxDelay, cfg.Store.RetryMaxDelay)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
store:
  operation_timeout: 3s
  read_attempts: 2
`)
	t.Setenv("DOCSTORE_CONFIG_FILE", path)
	t.Setenv("DOCSTORE_STORE_OPERATION_TIMEOUT", "7s")
	t.Setenv("DOCSTORE_STORE_READ_ATTEMPTS", "5")
	t.Setenv("DOCSTORE_DATABASE_COLLECTION", "audit")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.Store.OperationTimeout)
	assert.Equal(t, 5, cfg.Store.ReadAttempts)
	assert.Equal(t, "audit", cfg.Database.Collection)
}

func TestLoad_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("DOCSTORE_STORE_WRITE_ATTEMPTS", "9")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Store.WriteAttempts)
	assert.Equal(t, constants.DefaultReadAttempts, cfg.Store.ReadAttempts)
}

func TestLoad_RejectsInvalidFileValues(t *testing.T) {
	path := writeConfigFile(t, `
store:
  read_attempts: 0
`)
	t.Setenv("DOCSTORE_CONFIG_FILE", path)

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read_attempts")
}
