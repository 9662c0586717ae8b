package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int
	AppURL     string
	// TrustedProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustedProxy bool

	// Database
	DatabaseURL string
	AutoMigrate bool

	// Auth collaborator
	JWTSecret    string
	JWTAudience  string
	CookieSecure bool

	// Payment provider
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePrices        map[string]string
	TrialDays           int

	// CAPTCHA
	HCaptchaSecret string

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	ContactInbox string

	MarketingHosts  []string
	DebugErrors     bool
	MetricsPrefix   string
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// RateLimitConfig configures the per-endpoint limiters.
type RateLimitConfig struct {
	Enabled bool
	// Store is "memory" or "postgres".
	Store string

	RegisterRequests int
	RegisterWindow   time.Duration
	ClaimRequests    int
	ClaimWindow      time.Duration
	ContactRequests  int
	ContactWindow    time.Duration
}

// SecurityHeadersConfig configures response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig bounds request input.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		AppURL:     strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),

		TrustedProxy: getEnvBool("TRUSTED_PROXY", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),

		JWTSecret:    getEnv("SUPABASE_JWT_SECRET", ""),
		JWTAudience:  getEnv("JWT_AUDIENCE", "authenticated"),
		CookieSecure: getEnvBool("COOKIE_SECURE", true),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePrices: map[string]string{
			"start":      getEnv("STRIPE_PRICE_START", ""),
			"flow":       getEnv("STRIPE_PRICE_FLOW", ""),
			"pro":        getEnv("STRIPE_PRICE_PRO", ""),
			"enterprise": getEnv("STRIPE_PRICE_ENTERPRISE", ""),
		},
		TrialDays: getEnvInt("TRIAL_DAYS", 30),

		HCaptchaSecret: getEnv("HCAPTCHA_SECRET", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Bizora"),
		ContactInbox: getEnv("CONTACT_INBOX", ""),

		MarketingHosts: getEnvList("MARKETING_HOSTS", []string{"localhost", "www.bizora.nl", "bizora.nl"}),
		DebugErrors:    getEnvBool("DEBUG_ERRORS", false),
		MetricsPrefix:  getEnv("METRICS_PREFIX", "bizora"),

		RateLimit: RateLimitConfig{
			Enabled:          getEnvBool("RATE_LIMIT_ENABLED", true),
			Store:            getEnv("RATE_LIMIT_STORE", "memory"),
			RegisterRequests: getEnvInt("RATE_LIMIT_REGISTER_REQUESTS", 10),
			RegisterWindow:   getEnvDuration("RATE_LIMIT_REGISTER_WINDOW", 10*time.Minute),
			ClaimRequests:    getEnvInt("RATE_LIMIT_CLAIM_REQUESTS", 1),
			ClaimWindow:      getEnvDuration("RATE_LIMIT_CLAIM_WINDOW", 10*time.Second),
			ContactRequests:  getEnvInt("RATE_LIMIT_CONTACT_REQUESTS", 5),
			ContactWindow:    getEnvDuration("RATE_LIMIT_CONTACT_WINDOW", 10*time.Minute),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_HEADERS_CSP", "default-src 'self'; script-src 'self' https://js.hcaptcha.com https://js.stripe.com; frame-src https://*.hcaptcha.com https://checkout.stripe.com"),
			HSTSMaxAge:         getEnvInt("SECURITY_HEADERS_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_HEADERS_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_HEADERS_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("SECURITY_HEADERS_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_HEADERS_PERMISSIONS_POLICY", "geolocation=(), microphone=(), camera=()"),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
	}

	var missing []string
	for key, value := range map[string]string{
		"DATABASE_URL":          cfg.DatabaseURL,
		"SUPABASE_JWT_SECRET":   cfg.JWTSecret,
		"STRIPE_SECRET_KEY":     cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch cfg.RateLimit.Store {
	case "memory", "postgres":
	default:
		return nil, errors.New("RATE_LIMIT_STORE must be memory or postgres")
	}

	return cfg, nil
}

// HasSMTP returns true if outgoing mail is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasCaptcha returns true if CAPTCHA verification is configured.
func (c *Config) HasCaptcha() bool {
	return c.HCaptchaSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
