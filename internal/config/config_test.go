package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultConfigFile), cfg.Path())
	assert.FileExists(t, cfg.Path())
	assert.Equal(t, DefaultAPIPort, cfg.GetAPI().Port)
	assert.True(t, Validate(cfg).IsValid())
}

func TestLoad_OverlaysDefaultsAndResaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"storage":{"replay_directory":"/srv/aof"}}`), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/aof", cfg.GetStorage().ReplayDirectory)
	assert.Equal(t, DefaultConfig().Storage.CatalogPath, cfg.GetStorage().CatalogPath)
	assert.Equal(t, "04:00", cfg.GetReplayCleaner().CleanupTime)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "replay_cleaner")
	assert.Contains(t, raw, "mqtt")
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{"), 0644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestUpdateField(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.UpdateField("replay_cleaner", "retention_days", 14))
	assert.Equal(t, 14, cfg.GetReplayCleaner().RetentionDays)

	require.NoError(t, cfg.UpdateField("api", "allowed_origins", []string{"https://replays.example"}))
	assert.Equal(t, []string{"https://replays.example"}, cfg.GetAPI().AllowedOrigins)

	assert.Error(t, cfg.UpdateField("nope", "x", 1))
	assert.Error(t, cfg.UpdateField("api", "no_such_key", 1))
	assert.Error(t, cfg.UpdateField("api", "port", "not a number"))
	assert.Equal(t, DefaultAPIPort, cfg.GetAPI().Port)
}

func TestUpdateField_RollsBackInvalidValue(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.UpdateField("replay_cleaner", "retention_days", 0)
	require.Error(t, err)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "replay_cleaner.retention_days", verr.Field)
	assert.Equal(t, 30, cfg.GetReplayCleaner().RetentionDays)

	require.Error(t, cfg.UpdateField("health", "disk_warn_percent", 150))
	assert.Equal(t, 80, cfg.GetHealth().DiskWarnPercent)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		asError bool
	}{
		{"empty replay dir", func(c *Config) { c.Storage.ReplayDirectory = " " }, "storage.replay_directory", true},
		{"bad api port", func(c *Config) { c.API.Port = 70000 }, "api.port", true},
		{"privileged port", func(c *Config) { c.API.Port = 80 }, "api.port", false},
		{"bad cleanup time", func(c *Config) { c.ReplayCleaner.CleanupTime = "25:99" }, "replay_cleaner.cleanup_time", true},
		{"zero retention", func(c *Config) { c.ReplayCleaner.RetentionDays = 0 }, "replay_cleaner.retention_days", true},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true }, "mqtt.broker_url", true},
		{"tls without cert", func(c *Config) { c.API.TLSEnabled = true }, "api.tls_cert_file", true},
		{"wildcard origin", func(c *Config) { c.API.AllowedOrigins = []string{"*"} }, "api.allowed_origins", false},
		{"disk threshold over 100", func(c *Config) { c.Health.DiskWarnPercent = 120 }, "health.disk_warn_percent", true},
		{"fast heartbeat", func(c *Config) { c.Health.HeartbeatInterval = 1 }, "health.heartbeat_interval", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			result := Validate(cfg)
			list := result.Warnings
			if tc.asError {
				list = result.Errors
				assert.False(t, result.IsValid())
			}

			var fields []string
			for _, e := range list {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestValidate_DisabledSectionsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Enabled = false
	cfg.API.Port = 0
	cfg.ReplayCleaner.Enabled = false
	cfg.ReplayCleaner.CleanupTime = "bad"

	assert.True(t, Validate(cfg).IsValid())
}

func TestValidate_RetentionCheckedWhenCleanerDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReplayCleaner.Enabled = false
	cfg.ReplayCleaner.RetentionDays = 0

	result := Validate(cfg)
	require.False(t, result.IsValid())
	assert.Equal(t, "replay_cleaner.retention_days", result.Errors[0].Field)
}
