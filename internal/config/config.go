// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/tagctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mail provider identifiers for MAIL_PROVIDER.
const (
	ProviderGmail    = "gmail"
	ProviderSendGrid = "sendgrid"
)

// Config is populated from environment variables.
type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Scan throttling and retention
	ThrottleWindow time.Duration
	ScanRetention  time.Duration // 0 disables the retention sweeper

	// Mail transport
	MailProvider string // gmail | sendgrid | "" (disabled)

	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	GmailAddress      string

	SendGridAPIKey string
	SendGridSender string

	// Image uploads
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

// Load reads configuration from environment variables with sensible
// defaults, and validates the selected mail provider's credentials.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		ThrottleWindow: time.Duration(envInt("SCAN_THROTTLE_MINUTES", 30)) * time.Minute,
		ScanRetention:  time.Duration(envInt("SCAN_RETENTION_DAYS", 90)) * 24 * time.Hour,

		MailProvider: strings.ToLower(envOr("MAIL_PROVIDER", "")),

		GmailClientID:     envOr("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: envOr("GMAIL_CLIENT_SECRET", ""),
		GmailRefreshToken: envOr("GMAIL_REFRESH_TOKEN", ""),
		GmailAddress:      envOr("GMAIL_EMAIL", ""),

		SendGridAPIKey: envOr("SENDGRID_API_KEY", ""),
		SendGridSender: envOr("SENDGRID_SENDER", ""),

		CloudinaryCloudName: envOr("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    envOr("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: envOr("CLOUDINARY_API_SECRET", ""),
	}

	switch cfg.MailProvider {
	case "":
		// No transport configured. Scans still resolve and throttle, but
		// send attempts fail with "Server misconfigured".
	case ProviderGmail:
		if cfg.GmailClientID == "" || cfg.GmailClientSecret == "" ||
			cfg.GmailRefreshToken == "" || cfg.GmailAddress == "" {
			return nil, fmt.Errorf("MAIL_PROVIDER=gmail requires GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET, GMAIL_REFRESH_TOKEN, GMAIL_EMAIL")
		}
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" || cfg.SendGridSender == "" {
			return nil, fmt.Errorf("MAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY and SENDGRID_SENDER")
		}
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q (want gmail or sendgrid)", cfg.MailProvider)
	}

	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UploadsEnabled reports whether Cloudinary credentials are present.
func (c *Config) UploadsEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
