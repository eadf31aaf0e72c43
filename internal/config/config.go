// Package config handles configuration loading, validation and persistence
// for aofkeeper.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/aof-gg/aofkeeper/internal/util"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5080
	DefaultMQTTPort   = 8883
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Storage       StorageConfig       `json:"storage"`
	API           APIConfig           `json:"api"`
	ReplayCleaner ReplayCleanerConfig `json:"replay_cleaner"`
	MQTT          MQTTConfig          `json:"mqtt"`
	Health        HealthConfig        `json:"health"`
	Logging       util.LogConfig      `json:"logging"`
}

// StorageConfig locates the replay files and their catalog.
type StorageConfig struct {
	ReplayDirectory string `json:"replay_directory"`
	CatalogPath     string `json:"catalog_path"`
}

// APIConfig holds REST API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	BindAddress    string   `json:"bind_address"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	MaxUploadMB    int      `json:"max_upload_mb"`
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
}

// ReplayCleanerConfig holds replay cleanup settings.
type ReplayCleanerConfig struct {
	Enabled           bool   `json:"enabled"`
	CleanupTime       string `json:"cleanup_time"`
	RetentionDays     int    `json:"retention_days"`
	TmpRetentionHours int    `json:"tmp_retention_hours"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// HealthConfig holds the intervals of the periodic health checks, in
// seconds. A non-positive interval disables that check.
type HealthConfig struct {
	DiskCheckInterval   int `json:"disk_check_interval"`
	ConsistencyInterval int `json:"consistency_interval"`
	HeartbeatInterval   int `json:"heartbeat_interval"`
	DiskWarnPercent     int `json:"disk_warn_percent"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			ReplayDirectory: "replays",
			CatalogPath:     filepath.Join("data", "catalog.db"),
		},
		API: APIConfig{
			Enabled:      true,
			BindAddress:  "127.0.0.1",
			Port:         DefaultAPIPort,
			RateLimitRPS: 50,
			MaxUploadMB:  64,
		},
		ReplayCleaner: ReplayCleanerConfig{
			Enabled:           true,
			CleanupTime:       "04:00",
			RetentionDays:     30,
			TmpRetentionHours: 24,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Port:        DefaultMQTTPort,
			UseTLS:      true,
			TopicPrefix: "aofkeeper",
		},
		Health: HealthConfig{
			DiskCheckInterval:   300,
			ConsistencyInterval: 3600,
			HeartbeatInterval:   60,
			DiskWarnPercent:     80,
		},
		Logging: util.DefaultLogConfig(),
	}
}

// Load reads configuration from config.json in configDir. A missing file is
// created with defaults; an existing file is overlaid on the defaults and
// saved again so new options appear in it.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetStorage returns a copy of the storage configuration.
func (c *Config) GetStorage() StorageConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Storage
}

// GetAPI returns a copy of the API configuration.
func (c *Config) GetAPI() APIConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	api := c.API
	api.AllowedOrigins = append([]string(nil), c.API.AllowedOrigins...)
	return api
}

// GetReplayCleaner returns a copy of the replay cleaner configuration.
func (c *Config) GetReplayCleaner() ReplayCleanerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ReplayCleaner
}

// GetMQTT returns a copy of the MQTT configuration.
func (c *Config) GetMQTT() MQTTConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MQTT
}

// GetHealth returns a copy of the health check configuration.
func (c *Config) GetHealth() HealthConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Health
}

// GetLogging returns a copy of the logging configuration.
func (c *Config) GetLogging() util.LogConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

// UpdateField sets one key of a top-level section, e.g.
// UpdateField("replay_cleaner", "retention_days", 14). The value goes through
// the JSON representation, so it must have the field's JSON type. A change
// that fails validation is rolled back and its validation errors returned.
// The caller saves the configuration.
func (c *Config) UpdateField(section, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var target interface{}
	switch section {
	case "storage":
		target = &c.Storage
	case "api":
		target = &c.API
	case "replay_cleaner":
		target = &c.ReplayCleaner
	case "mqtt":
		target = &c.MQTT
	case "health":
		target = &c.Health
	case "logging":
		target = &c.Logging
	default:
		return fmt.Errorf("unknown config section %q", section)
	}

	previous, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("failed to marshal section %s: %w", section, err)
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(previous, &m); err != nil {
		return fmt.Errorf("failed to read section %s: %w", section, err)
	}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("unknown config field %s.%s", section, key)
	}

	m[key] = value

	updated, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to update field %s.%s: %w", section, key, err)
	}
	if err := json.Unmarshal(updated, target); err != nil {
		if restoreErr := json.Unmarshal(previous, target); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return fmt.Errorf("failed to update field %s.%s: %w", section, key, err)
	}

	if result := validate(c); !result.IsValid() {
		if err := json.Unmarshal(previous, target); err != nil {
			return fmt.Errorf("failed to roll back %s: %w", section, err)
		}
		errs := make([]error, 0, len(result.Errors))
		for _, e := range result.Errors {
			errs = append(errs, e)
		}
		return errors.Join(errs...)
	}

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
