package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

// set stores a new Config atomically.
func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for PromptVault.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     toml:"server"`
	Auth       AuthConfig       `mapstructure:"auth"       toml:"auth"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"   toml:"analysis"`
	Telegram   TelegramConfig   `mapstructure:"telegram"   toml:"telegram"`
	Billing    BillingConfig    `mapstructure:"billing"    toml:"billing"`
	Resilience ResilienceConfig `mapstructure:"resilience" toml:"resilience"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"  toml:"dashboard"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    toml:"metrics"`
}

// ServerConfig holds the core server settings.
type ServerConfig struct {
	BindAddress  string `mapstructure:"bind_address"  toml:"bind_address"`
	Port         int    `mapstructure:"port"          toml:"port"`
	BaseURL      string `mapstructure:"base_url"      toml:"base_url"`
	LogLevel     string `mapstructure:"log_level"     toml:"log_level"`
	DataDir      string `mapstructure:"data_dir"      toml:"data_dir"`
	TLSEnabled   bool   `mapstructure:"tls_enabled"   toml:"tls_enabled"`
	CertFile     string `mapstructure:"cert_file"     toml:"cert_file"`
	KeyFile      string `mapstructure:"key_file"      toml:"key_file"`
	ReadTimeout  int    `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"  toml:"idle_timeout"`
	MaxBodySize  int64  `mapstructure:"max_body_size" toml:"max_body_size"`
}

// PublicURL returns the externally visible base URL, falling back to the
// bind address when none is configured.
func (s ServerConfig) PublicURL() string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", s.BindAddress, s.Port)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	Enabled         bool   `mapstructure:"enabled"           toml:"enabled"`
	Token           string `mapstructure:"token"             toml:"token"`
	JWTKeyRef       string `mapstructure:"jwt_key_ref"       toml:"jwt_key_ref"`
	ExtensionKey    string `mapstructure:"extension_key"     toml:"extension_key"`
	OwnerEmail      string `mapstructure:"owner_email"       toml:"owner_email"`
	TokenTTLDays    int    `mapstructure:"token_ttl_days"    toml:"token_ttl_days"`
}

// TokenTTL returns the lifetime of issued API tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLDays <= 0 {
		return time.Duration(DefaultTokenTTLDays) * 24 * time.Hour
	}
	return time.Duration(a.TokenTTLDays) * 24 * time.Hour
}

// AnalysisConfig describes the prompt-analysis provider.
type AnalysisConfig struct {
	Enabled          bool   `mapstructure:"enabled"            toml:"enabled"`
	Provider         string `mapstructure:"provider"           toml:"provider"`
	Model            string `mapstructure:"model"              toml:"model"`
	APIBase          string `mapstructure:"api_base"           toml:"api_base"`
	KeyRef           string `mapstructure:"key_ref"            toml:"key_ref"`
	Timeout          int    `mapstructure:"timeout"            toml:"timeout"` // seconds
	MaxInputTokens   int    `mapstructure:"max_input_tokens"   toml:"max_input_tokens"`
	FreeMonthlyLimit int    `mapstructure:"free_monthly_limit" toml:"free_monthly_limit"`
	CacheTTLSeconds  int    `mapstructure:"cache_ttl_seconds"  toml:"cache_ttl_seconds"`
	CacheSize        int    `mapstructure:"cache_size"         toml:"cache_size"`
}

// TimeoutDuration returns the provider timeout as a time.Duration.
func (a AnalysisConfig) TimeoutDuration() time.Duration {
	if a.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.Timeout) * time.Second
}

// TelegramConfig controls the Telegram bot integration.
type TelegramConfig struct {
	Enabled       bool   `mapstructure:"enabled"        toml:"enabled"`
	KeyRef        string `mapstructure:"key_ref"        toml:"key_ref"`
	WebhookSecret string `mapstructure:"webhook_secret" toml:"webhook_secret"`
	APIBase       string `mapstructure:"api_base"       toml:"api_base"`
	Timeout       int    `mapstructure:"timeout"        toml:"timeout"` // seconds
}

// TimeoutDuration returns the bot API timeout as a time.Duration.
func (t TelegramConfig) TimeoutDuration() time.Duration {
	if t.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(t.Timeout) * time.Second
}

// BillingConfig controls subscription billing.
type BillingConfig struct {
	Processor string `mapstructure:"processor" toml:"processor"` // "stripe", "lemonsqueezy", "none"

	StripeKeyRef        string `mapstructure:"stripe_key_ref"         toml:"stripe_key_ref"`
	StripeWebhookRef    string `mapstructure:"stripe_webhook_ref"     toml:"stripe_webhook_ref"`
	StripePriceID       string `mapstructure:"stripe_price_id"        toml:"stripe_price_id"`
	LemonKeyRef         string `mapstructure:"lemon_key_ref"          toml:"lemon_key_ref"`
	LemonWebhookRef     string `mapstructure:"lemon_webhook_ref"      toml:"lemon_webhook_ref"`
	LemonStoreID        string `mapstructure:"lemon_store_id"         toml:"lemon_store_id"`
	LemonVariantID      string `mapstructure:"lemon_variant_id"       toml:"lemon_variant_id"`
	SuccessPath         string `mapstructure:"success_path"           toml:"success_path"`
	CancelPath          string `mapstructure:"cancel_path"            toml:"cancel_path"`
}

// ResilienceConfig controls write retries and the analysis circuit breaker.
type ResilienceConfig struct {
	WriteRetryAttempts int  `mapstructure:"write_retry_attempts"     toml:"write_retry_attempts"`
	WriteRetryDelayMs  int  `mapstructure:"write_retry_delay_ms"     toml:"write_retry_delay_ms"`
	CBEnabled          bool `mapstructure:"circuit_breaker_enabled"  toml:"circuit_breaker_enabled"`
	CBFailureThreshold int  `mapstructure:"cb_failure_threshold"     toml:"cb_failure_threshold"`
	CBResetTimeoutSec  int  `mapstructure:"cb_reset_timeout_seconds" toml:"cb_reset_timeout_seconds"`
	CBHalfOpenMax      int  `mapstructure:"cb_half_open_max_calls"   toml:"cb_half_open_max_calls"`
}

// DashboardConfig controls the embedded web dashboard.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"         toml:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// MetricsConfig controls metrics storage.
type MetricsConfig struct {
	RetentionDays int `mapstructure:"retention_days" toml:"retention_days"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (PROMPTVAULT_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.promptvault/promptvault.toml
//  4. ./promptvault.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Set all defaults from the default config so viper knows every key.
	setViperDefaults(v)

	// Environment variable overlay: PROMPTVAULT_SERVER_PORT etc.
	v.SetEnvPrefix("PROMPTVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Determine which file(s) to read.
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".promptvault"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("promptvault")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file exists we still proceed with defaults + env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Store the resolved config file path.
	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Expand ~ in data_dir.
	cfg.Server.DataDir = expandHome(cfg.Server.DataDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to ~/.promptvault/promptvault.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".promptvault")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	cfg := Get()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ImportConfig reads a TOML config file and merges it into the current config.
// The imported config is also persisted to the active config file so changes
// survive restarts.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	// Persist to the active config file so changes survive restart.
	if dest := ConfigFilePath(); dest != "" {
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config for persistence: %w", err)
		}
		if err := os.WriteFile(dest, out, 0o600); err != nil {
			return fmt.Errorf("persisting imported config: %w", err)
		}
	}

	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.tls_enabled", d.Server.TLSEnabled)
	v.SetDefault("server.cert_file", d.Server.CertFile)
	v.SetDefault("server.key_file", d.Server.KeyFile)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)

	// Auth
	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("auth.token", d.Auth.Token)
	v.SetDefault("auth.jwt_key_ref", d.Auth.JWTKeyRef)
	v.SetDefault("auth.extension_key", d.Auth.ExtensionKey)
	v.SetDefault("auth.owner_email", d.Auth.OwnerEmail)
	v.SetDefault("auth.token_ttl_days", d.Auth.TokenTTLDays)

	// Analysis
	v.SetDefault("analysis.enabled", d.Analysis.Enabled)
	v.SetDefault("analysis.provider", d.Analysis.Provider)
	v.SetDefault("analysis.model", d.Analysis.Model)
	v.SetDefault("analysis.api_base", d.Analysis.APIBase)
	v.SetDefault("analysis.key_ref", d.Analysis.KeyRef)
	v.SetDefault("analysis.timeout", d.Analysis.Timeout)
	v.SetDefault("analysis.max_input_tokens", d.Analysis.MaxInputTokens)
	v.SetDefault("analysis.free_monthly_limit", d.Analysis.FreeMonthlyLimit)
	v.SetDefault("analysis.cache_ttl_seconds", d.Analysis.CacheTTLSeconds)
	v.SetDefault("analysis.cache_size", d.Analysis.CacheSize)

	// Telegram
	v.SetDefault("telegram.enabled", d.Telegram.Enabled)
	v.SetDefault("telegram.key_ref", d.Telegram.KeyRef)
	v.SetDefault("telegram.webhook_secret", d.Telegram.WebhookSecret)
	v.SetDefault("telegram.api_base", d.Telegram.APIBase)
	v.SetDefault("telegram.timeout", d.Telegram.Timeout)

	// Billing
	v.SetDefault("billing.processor", d.Billing.Processor)
	v.SetDefault("billing.stripe_key_ref", d.Billing.StripeKeyRef)
	v.SetDefault("billing.stripe_webhook_ref", d.Billing.StripeWebhookRef)
	v.SetDefault("billing.stripe_price_id", d.Billing.StripePriceID)
	v.SetDefault("billing.lemon_key_ref", d.Billing.LemonKeyRef)
	v.SetDefault("billing.lemon_webhook_ref", d.Billing.LemonWebhookRef)
	v.SetDefault("billing.lemon_store_id", d.Billing.LemonStoreID)
	v.SetDefault("billing.lemon_variant_id", d.Billing.LemonVariantID)
	v.SetDefault("billing.success_path", d.Billing.SuccessPath)
	v.SetDefault("billing.cancel_path", d.Billing.CancelPath)

	// Resilience
	v.SetDefault("resilience.write_retry_attempts", d.Resilience.WriteRetryAttempts)
	v.SetDefault("resilience.write_retry_delay_ms", d.Resilience.WriteRetryDelayMs)
	v.SetDefault("resilience.circuit_breaker_enabled", d.Resilience.CBEnabled)
	v.SetDefault("resilience.cb_failure_threshold", d.Resilience.CBFailureThreshold)
	v.SetDefault("resilience.cb_reset_timeout_seconds", d.Resilience.CBResetTimeoutSec)
	v.SetDefault("resilience.cb_half_open_max_calls", d.Resilience.CBHalfOpenMax)

	// Dashboard
	v.SetDefault("dashboard.enabled", d.Dashboard.Enabled)
	v.SetDefault("dashboard.allowed_origins", d.Dashboard.AllowedOrigins)

	// Metrics
	v.SetDefault("metrics.retention_days", d.Metrics.RetentionDays)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
