package config

import (
	"fmt"
	"strings"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	// Server validation
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}
	if cfg.Server.TLSEnabled {
		if cfg.Server.CertFile == "" {
			errs = append(errs, "server.cert_file must be set when tls_enabled is true")
		}
		if cfg.Server.KeyFile == "" {
			errs = append(errs, "server.key_file must be set when tls_enabled is true")
		}
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}
	if cfg.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Sprintf("server.max_body_size must be non-negative, got %d", cfg.Server.MaxBodySize))
	}

	// Auth validation
	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		errs = append(errs, "auth.token must be set when auth.enabled is true")
	}
	if cfg.Auth.OwnerEmail == "" {
		errs = append(errs, "auth.owner_email must not be empty")
	}
	if cfg.Auth.TokenTTLDays < 0 {
		errs = append(errs, fmt.Sprintf("auth.token_ttl_days must be non-negative, got %d", cfg.Auth.TokenTTLDays))
	}

	// Analysis validation
	if !isValidEnum(cfg.Analysis.Provider, ValidAnalysisProviders) {
		errs = append(errs, fmt.Sprintf("analysis.provider must be one of %v, got %q", ValidAnalysisProviders, cfg.Analysis.Provider))
	}
	if cfg.Analysis.Model == "" {
		errs = append(errs, "analysis.model must not be empty")
	}
	if cfg.Analysis.APIBase == "" {
		errs = append(errs, "analysis.api_base must not be empty")
	}
	if cfg.Analysis.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("analysis.timeout must be non-negative, got %d", cfg.Analysis.Timeout))
	}
	if cfg.Analysis.MaxInputTokens < 1 {
		errs = append(errs, fmt.Sprintf("analysis.max_input_tokens must be at least 1, got %d", cfg.Analysis.MaxInputTokens))
	}
	if cfg.Analysis.FreeMonthlyLimit < 0 {
		errs = append(errs, fmt.Sprintf("analysis.free_monthly_limit must be non-negative, got %d", cfg.Analysis.FreeMonthlyLimit))
	}
	if cfg.Analysis.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("analysis.cache_ttl_seconds must be non-negative, got %d", cfg.Analysis.CacheTTLSeconds))
	}
	if cfg.Analysis.CacheSize < 0 {
		errs = append(errs, fmt.Sprintf("analysis.cache_size must be non-negative, got %d", cfg.Analysis.CacheSize))
	}

	// Telegram validation
	if cfg.Telegram.Enabled {
		if cfg.Telegram.KeyRef == "" {
			errs = append(errs, "telegram.key_ref must be set when telegram.enabled is true")
		}
		if cfg.Telegram.APIBase == "" {
			errs = append(errs, "telegram.api_base must not be empty")
		}
	}
	if cfg.Telegram.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("telegram.timeout must be non-negative, got %d", cfg.Telegram.Timeout))
	}

	// Billing validation
	if !isValidEnum(cfg.Billing.Processor, ValidProcessors) {
		errs = append(errs, fmt.Sprintf("billing.processor must be one of %v, got %q", ValidProcessors, cfg.Billing.Processor))
	}
	if cfg.Billing.Processor == "stripe" && cfg.Billing.StripePriceID == "" {
		errs = append(errs, "billing.stripe_price_id must be set when billing.processor is \"stripe\"")
	}
	if cfg.Billing.Processor == "lemonsqueezy" {
		if cfg.Billing.LemonStoreID == "" {
			errs = append(errs, "billing.lemon_store_id must be set when billing.processor is \"lemonsqueezy\"")
		}
		if cfg.Billing.LemonVariantID == "" {
			errs = append(errs, "billing.lemon_variant_id must be set when billing.processor is \"lemonsqueezy\"")
		}
	}

	// Resilience validation
	if cfg.Resilience.WriteRetryAttempts < 1 {
		errs = append(errs, fmt.Sprintf("resilience.write_retry_attempts must be at least 1, got %d", cfg.Resilience.WriteRetryAttempts))
	}
	if cfg.Resilience.WriteRetryDelayMs < 0 {
		errs = append(errs, fmt.Sprintf("resilience.write_retry_delay_ms must be non-negative, got %d", cfg.Resilience.WriteRetryDelayMs))
	}
	if cfg.Resilience.CBFailureThreshold < 1 {
		errs = append(errs, fmt.Sprintf("resilience.cb_failure_threshold must be at least 1, got %d", cfg.Resilience.CBFailureThreshold))
	}
	if cfg.Resilience.CBResetTimeoutSec <= 0 {
		errs = append(errs, fmt.Sprintf("resilience.cb_reset_timeout_seconds must be positive, got %d", cfg.Resilience.CBResetTimeoutSec))
	}
	if cfg.Resilience.CBHalfOpenMax < 1 {
		errs = append(errs, fmt.Sprintf("resilience.cb_half_open_max_calls must be at least 1, got %d", cfg.Resilience.CBHalfOpenMax))
	}

	// Metrics validation
	if cfg.Metrics.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("metrics.retention_days must be at least 1, got %d", cfg.Metrics.RetentionDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
