// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains example secrets that must never be used.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string `env:"OEVENT_ENV" envDefault:"development"`
	ServerHost string `env:"OEVENT_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OEVENT_SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"OEVENT_BASE_URL"` // Absolute URL used in emailed links; derived from host/port when empty
	DBPath     string `env:"OEVENT_DB_PATH" envDefault:"./data/oevent.db"`
	SecretKey  string `env:"OEVENT_SECRET_KEY,required"`
	LogLevel   string `env:"OEVENT_LOG_LEVEL" envDefault:"info"`
	UploadsDir string `env:"OEVENT_UPLOADS_DIR" envDefault:"./uploads"`

	// Account tokens
	TokenTTL time.Duration `env:"OEVENT_TOKEN_TTL" envDefault:"72h"`

	// Outbound mail. With no SMTP host, messages are written to the log.
	SMTPHost     string        `env:"OEVENT_SMTP_HOST"`
	SMTPPort     int           `env:"OEVENT_SMTP_PORT" envDefault:"587"`
	SMTPUser     string        `env:"OEVENT_SMTP_USER"`
	SMTPPassword string        `env:"OEVENT_SMTP_PASSWORD"`
	SMTPTLS      bool          `env:"OEVENT_SMTP_TLS" envDefault:"true"`
	SMTPFrom     string        `env:"OEVENT_SMTP_FROM" envDefault:"Event Management <noreply@localhost>"`
	MailTimeout  time.Duration `env:"OEVENT_MAIL_TIMEOUT" envDefault:"15s"`

	// Cache
	RedisURL    string        `env:"OEVENT_REDIS_URL"`
	CachePrefix string        `env:"OEVENT_CACHE_PREFIX" envDefault:"oevent:"`
	CacheTTL    time.Duration `env:"OEVENT_CACHE_TTL" envDefault:"5m"`

	// GeoIP
	GeoIPDBPath string `env:"OEVENT_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb

	// Housekeeping; zero disables the job.
	AuditRetention  time.Duration `env:"OEVENT_AUDIT_RETENTION" envDefault:"2160h"`
	InactiveUserTTL time.Duration `env:"OEVENT_INACTIVE_USER_TTL" envDefault:"0s"`

	// Superuser seeded on first start
	AdminUsername string `env:"OEVENT_ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"OEVENT_ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"OEVENT_ADMIN_PASSWORD"`

	// Cross-origin access to the JSON API and extra CSRF-trusted origins
	CORSOrigins    []string `env:"OEVENT_CORS_ORIGINS" envSeparator:","`
	TrustedOrigins []string `env:"OEVENT_TRUSTED_ORIGINS" envSeparator:","`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// SiteURL returns the absolute base URL without a trailing slash.
func (c Config) SiteURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "http://" + c.ServerAddr()
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// UseSMTP returns true if an SMTP relay is configured.
func (c Config) UseSMTP() bool {
	return c.SMTPHost != ""
}

// GeoIPEnabled returns true if a GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// MinSecretKeyLength is the minimum length of OEVENT_SECRET_KEY in bytes.
const MinSecretKeyLength = 32

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SecretKey) < MinSecretKeyLength {
		return nil, fmt.Errorf("OEVENT_SECRET_KEY must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSecretKeyLength, len(cfg.SecretKey))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SecretKey == weak {
			return nil, fmt.Errorf("OEVENT_SECRET_KEY is a known example value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("OEVENT_BASE_URL must be an absolute http(s) URL, got %q", cfg.BaseURL)
		}
	}

	if !cfg.IsDevelopment() && cfg.AdminPassword == "" {
		slog.Warn("OEVENT_ADMIN_PASSWORD is not set; the seeded superuser will use the default password")
	}

	if !hasMinimumEntropy(cfg.SecretKey) {
		slog.Warn("OEVENT_SECRET_KEY has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
