// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"HHA_DB_PATH" envDefault:"./data/hhaudit.db"`
	SessionSecret string `env:"HHA_SESSION_SECRET,required"`
	ServerHost    string `env:"HHA_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"HHA_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"HHA_ENV" envDefault:"development"`
	LogLevel      string `env:"HHA_LOG_LEVEL" envDefault:"info"`

	// Record store; audit sessions and users go to Redis when a URL is set.
	RedisURL    string `env:"HHA_REDIS_URL"`
	RedisPrefix string `env:"HHA_REDIS_PREFIX" envDefault:"hha:"`

	// Draft forms idle longer than DraftTTL are discarded by the sweeper.
	DraftTTL           time.Duration `env:"HHA_DRAFT_TTL" envDefault:"12h"`
	DraftSweepSchedule string        `env:"HHA_DRAFT_SWEEP_SCHEDULE" envDefault:"*/15 * * * *"`

	// Origins allowed to make cross-origin state-changing requests.
	TrustedOrigins []string `env:"HHA_TRUSTED_ORIGINS" envSeparator:","`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if the record store should live in Redis.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum required length for the session secret.
// The CSRF key is derived from its first 32 bytes.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("HHA_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("HHA_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("HHA_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if cfg.DraftTTL <= 0 {
		return nil, fmt.Errorf("HHA_DRAFT_TTL must be positive, got %s", cfg.DraftTTL)
	}
	if _, err := cron.ParseStandard(cfg.DraftSweepSchedule); err != nil {
		return nil, fmt.Errorf("HHA_DRAFT_SWEEP_SCHEDULE %q: %w", cfg.DraftSweepSchedule, err)
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
