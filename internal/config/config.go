// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database path, resilience tuning
// (breaker thresholds, flag cache TTL, retry budget), provider credentials,
// rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-failover-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ProviderConfig holds credentials and endpoints for one upstream provider.
// BaseURL overrides are primarily for tests and self-hosted gateways.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// TwilioConfig holds the telephony provider credentials.
type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
}

// ResilienceConfig tunes the breaker, flag cache, retry and dedup behavior.
type ResilienceConfig struct {
	FailureThreshold int           // failures that open a closed circuit
	Cooldown         time.Duration // open-circuit refusal window
	ExtendedCooldown time.Duration // applied after a failed half-open trial
	FlagCacheTTL     time.Duration // staleness bound for the flag cache
	MaxRetries       int           // per-provider retries beyond the first attempt
	ProviderTimeout  time.Duration // per-attempt deadline; 0 disables
	IdempotencyTTL   time.Duration // how long a dedup claim stays authoritative
	SweepInterval    time.Duration // expired-claim sweep cadence
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Resilience
	Resilience ResilienceConfig

	// Providers
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Twilio    TwilioConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Resilience
		Resilience: ResilienceConfig{
			FailureThreshold: getint("FAILURE_THRESHOLD", 3),
			Cooldown:         getdur("CIRCUIT_COOLDOWN", 5*time.Minute),
			ExtendedCooldown: getdur("CIRCUIT_EXTENDED_COOLDOWN", 10*time.Minute),
			FlagCacheTTL:     getdur("FLAG_CACHE_TTL", 30*time.Second),
			MaxRetries:       getint("PROVIDER_MAX_RETRIES", 1),
			ProviderTimeout:  getdur("PROVIDER_TIMEOUT", 30*time.Second),
			IdempotencyTTL:   getdur("IDEMPOTENCY_TTL", 24*time.Hour),
			SweepInterval:    getdur("IDEMPOTENCY_SWEEP_INTERVAL", 10*time.Minute),
		},

		// Providers
		OpenAI: ProviderConfig{
			BaseURL: getenv("OPENAI_BASE_URL", ""),
			APIKey:  getenv("OPENAI_API_KEY", ""),
			Model:   getenv("OPENAI_MODEL", ""),
		},
		Anthropic: ProviderConfig{
			BaseURL: getenv("ANTHROPIC_BASE_URL", ""),
			APIKey:  getenv("ANTHROPIC_API_KEY", ""),
			Model:   getenv("ANTHROPIC_MODEL", ""),
		},
		Twilio: TwilioConfig{
			BaseURL:    getenv("TWILIO_BASE_URL", ""),
			AccountSID: getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getenv("TWILIO_FROM_NUMBER", ""),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-failover-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Resilience.FailureThreshold < 1 {
		return cfg, errors.New("FAILURE_THRESHOLD must be >= 1")
	}
	if cfg.Resilience.Cooldown <= 0 || cfg.Resilience.ExtendedCooldown <= 0 {
		return cfg, errors.New("circuit cooldowns must be positive durations")
	}
	if cfg.Resilience.ExtendedCooldown < cfg.Resilience.Cooldown {
		return cfg, errors.New("CIRCUIT_EXTENDED_COOLDOWN must be >= CIRCUIT_COOLDOWN")
	}
	if cfg.Resilience.FlagCacheTTL <= 0 {
		return cfg, errors.New("FLAG_CACHE_TTL must be > 0")
	}
	if cfg.Resilience.MaxRetries < 0 {
		return cfg, errors.New("PROVIDER_MAX_RETRIES must be >= 0")
	}
	if cfg.Resilience.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Resilience.SweepInterval <= 0 {
		return cfg, errors.New("IDEMPOTENCY_SWEEP_INTERVAL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures the base path begins with a slash and carries no
// trailing slash; "/" collapses to the root group.
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
