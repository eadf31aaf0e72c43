package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return validate(cfg)
}

// validate expects the caller to hold cfg.mu.
func validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateStorage(&cfg.Storage, result)
	validateAPI(&cfg.API, result)
	validateReplayCleaner(&cfg.ReplayCleaner, result)
	validateMQTT(&cfg.MQTT, result)
	validateHealth(&cfg.Health, result)

	return result
}

func validateStorage(s *StorageConfig, result *ValidationResult) {
	if strings.TrimSpace(s.ReplayDirectory) == "" {
		result.AddError("storage.replay_directory", "replay directory is required")
	}
	if strings.TrimSpace(s.CatalogPath) == "" {
		result.AddError("storage.catalog_path", "catalog path is required")
	}
}

func validateAPI(api *APIConfig, result *ValidationResult) {
	if !api.Enabled {
		return
	}

	validatePort(api.Port, "api.port", result)

	if api.RateLimitRPS < 1 {
		result.AddWarning("api.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
	if api.MaxUploadMB < 1 {
		result.AddError("api.max_upload_mb", "upload limit must be at least 1 MB")
	}

	if api.TLSEnabled {
		if strings.TrimSpace(api.TLSCertFile) == "" {
			result.AddError("api.tls_cert_file", "TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(api.TLSKeyFile) == "" {
			result.AddError("api.tls_key_file", "TLS key file is required when TLS is enabled")
		}
	}

	for _, origin := range api.AllowedOrigins {
		if origin == "*" {
			result.AddWarning("api.allowed_origins", "wildcard origin allows any site to call the API")
		}
	}
}

func validateReplayCleaner(rc *ReplayCleanerConfig, result *ValidationResult) {
	// The one-shot prune honours the retention period even with the
	// scheduled cleaner disabled.
	if rc.RetentionDays < 1 {
		result.AddError("replay_cleaner.retention_days", "retention days must be at least 1")
	}
	if !rc.Enabled {
		return
	}

	if _, err := time.Parse("15:04", rc.CleanupTime); err != nil {
		result.AddError("replay_cleaner.cleanup_time",
			fmt.Sprintf("invalid time %q (expected HH:MM)", rc.CleanupTime))
	}
	if rc.TmpRetentionHours < 1 {
		result.AddWarning("replay_cleaner.tmp_retention_hours",
			"temporary files younger than one hour may belong to writes in progress")
	}
}

func validateMQTT(m *MQTTConfig, result *ValidationResult) {
	if !m.Enabled {
		return
	}

	if strings.TrimSpace(m.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if m.Port < 1 || m.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if m.CertFile != "" && m.KeyFile == "" {
		result.AddError("mqtt.key_file", "client key is required with a client certificate")
	}
	if strings.TrimSpace(m.TopicPrefix) == "" {
		result.AddWarning("mqtt.topic_prefix", "empty topic prefix publishes at the broker root")
	}
}

func validateHealth(h *HealthConfig, result *ValidationResult) {
	if h.DiskWarnPercent < 1 || h.DiskWarnPercent > 100 {
		result.AddError("health.disk_warn_percent", "disk warning threshold must be between 1 and 100")
	}
	if h.HeartbeatInterval > 0 && h.HeartbeatInterval < 5 {
		result.AddWarning("health.heartbeat_interval", "heartbeats more often than every 5 seconds flood the broker")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
