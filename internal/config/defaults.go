package config

// DefaultBindAddress is the default bind address (localhost only for security).
const DefaultBindAddress = "127.0.0.1"

// DefaultPort is the default port for the API server.
const DefaultPort = 8199

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.promptvault"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "promptvault.toml"

// DefaultReadTimeout is the default HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the default HTTP server write timeout in seconds.
// High enough to cover a slow analysis provider round trip.
const DefaultWriteTimeout = 60

// DefaultIdleTimeout is the default HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// DefaultMaxBodySize is the default maximum request body size in bytes (1 MB).
const DefaultMaxBodySize = 1 << 20

// DefaultTokenTTLDays is the default lifetime of issued API tokens.
const DefaultTokenTTLDays = 90

// DefaultAnalysisModel is the default analysis model.
const DefaultAnalysisModel = "gpt-4o-mini"

// DefaultAnalysisAPIBase is the default analysis provider endpoint.
const DefaultAnalysisAPIBase = "https://api.openai.com/v1"

// DefaultAnalysisTimeout is the default analysis provider timeout in seconds.
const DefaultAnalysisTimeout = 30

// DefaultMaxInputTokens caps how much prompt content is sent for analysis.
const DefaultMaxInputTokens = 600

// DefaultFreeMonthlyLimit is the free-plan monthly AI analysis allowance.
const DefaultFreeMonthlyLimit = 10

// DefaultAnalysisCacheTTL is the default analysis result cache TTL in seconds.
const DefaultAnalysisCacheTTL = 3600

// DefaultAnalysisCacheSize is the default in-memory analysis cache capacity.
const DefaultAnalysisCacheSize = 256

// DefaultTelegramAPIBase is the Telegram Bot API endpoint.
const DefaultTelegramAPIBase = "https://api.telegram.org"

// DefaultTelegramTimeout is the default bot API timeout in seconds.
const DefaultTelegramTimeout = 10

// DefaultWriteRetryAttempts bounds retries of conflicting store writes.
const DefaultWriteRetryAttempts = 3

// DefaultWriteRetryDelayMs is the base backoff between write retries.
const DefaultWriteRetryDelayMs = 25

// DefaultCBFailureThreshold is the default number of consecutive provider
// failures before opening the circuit.
const DefaultCBFailureThreshold = 5

// DefaultCBResetTimeout is the default circuit breaker reset timeout in seconds.
const DefaultCBResetTimeout = 60

// DefaultCBHalfOpenMax is the default number of successful calls in half-open
// state to close the circuit.
const DefaultCBHalfOpenMax = 1

// DefaultRetentionDays is the default analysis log retention in days.
const DefaultRetentionDays = 90

// DefaultOwnerEmail identifies the single seeded account.
const DefaultOwnerEmail = "owner@promptvault.local"

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidProcessors lists the allowed billing processor values.
var ValidProcessors = []string{"none", "stripe", "lemonsqueezy"}

// ValidAnalysisProviders lists the allowed analysis provider values.
var ValidAnalysisProviders = []string{"openai"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  DefaultBindAddress,
			Port:         DefaultPort,
			BaseURL:      "",
			LogLevel:     DefaultLogLevel,
			DataDir:      DefaultDataDir,
			TLSEnabled:   false,
			CertFile:     "",
			KeyFile:      "",
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
		},
		Auth: AuthConfig{
			Enabled:      false,
			Token:        "",
			JWTKeyRef:    "keyring://promptvault/jwt",
			ExtensionKey: "",
			OwnerEmail:   DefaultOwnerEmail,
			TokenTTLDays: DefaultTokenTTLDays,
		},
		Analysis: AnalysisConfig{
			Enabled:          true,
			Provider:         "openai",
			Model:            DefaultAnalysisModel,
			APIBase:          DefaultAnalysisAPIBase,
			KeyRef:           "keyring://promptvault/openai",
			Timeout:          DefaultAnalysisTimeout,
			MaxInputTokens:   DefaultMaxInputTokens,
			FreeMonthlyLimit: DefaultFreeMonthlyLimit,
			CacheTTLSeconds:  DefaultAnalysisCacheTTL,
			CacheSize:        DefaultAnalysisCacheSize,
		},
		Telegram: TelegramConfig{
			Enabled:       false,
			KeyRef:        "keyring://promptvault/telegram",
			WebhookSecret: "",
			APIBase:       DefaultTelegramAPIBase,
			Timeout:       DefaultTelegramTimeout,
		},
		Billing: BillingConfig{
			Processor:        "none",
			StripeKeyRef:     "keyring://promptvault/stripe",
			StripeWebhookRef: "keyring://promptvault/stripe-webhook",
			StripePriceID:    "",
			LemonKeyRef:      "keyring://promptvault/lemonsqueezy",
			LemonWebhookRef:  "keyring://promptvault/lemonsqueezy-webhook",
			LemonStoreID:     "",
			LemonVariantID:   "",
			SuccessPath:      "/billing?success=true",
			CancelPath:       "/billing?canceled=true",
		},
		Resilience: ResilienceConfig{
			WriteRetryAttempts: DefaultWriteRetryAttempts,
			WriteRetryDelayMs:  DefaultWriteRetryDelayMs,
			CBEnabled:          true,
			CBFailureThreshold: DefaultCBFailureThreshold,
			CBResetTimeoutSec:  DefaultCBResetTimeout,
			CBHalfOpenMax:      DefaultCBHalfOpenMax,
		},
		Dashboard: DashboardConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
		},
		Metrics: MetricsConfig{
			RetentionDays: DefaultRetentionDays,
		},
	}
}
