// Package config loads process configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	minSigningKeyLength = 32
	minBcryptCost       = 4
	maxBcryptCost       = 14
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	Identity IdentityConfig
	Logging  LoggingConfig
}

type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER,default=sqlite"`
	URL    string `env:"DATABASE_URL,default=postbook.db"`
	// IdentityURL falls back to URL, putting both stores in one database.
	IdentityURL string `env:"IDENTITY_DATABASE_URL"`
}

type JWTConfig struct {
	SigningKey         string `env:"JWT_SIGNING_KEY"`
	Issuer             string `env:"JWT_ISSUER,default=postbook"`
	Audience           string `env:"JWT_AUDIENCE,default=postbook"`
	AccessTokenMinutes int    `env:"ACCESS_TOKEN_MINUTES,default=15"`
	RefreshTokenDays   int    `env:"REFRESH_TOKEN_DAYS,default=7"`
}

func (c JWTConfig) AccessTokenLifetime() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c JWTConfig) RefreshTokenLifetime() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

type IdentityConfig struct {
	BcryptCost            int           `env:"BCRYPT_COST,default=12"`
	LockoutMaxAttempts    int           `env:"LOCKOUT_MAX_ATTEMPTS,default=5"`
	LockoutDuration       time.Duration `env:"LOCKOUT_DURATION,default=15m"`
	RequireConfirmedEmail bool          `env:"REQUIRE_CONFIRMED_EMAIL,default=false"`
}

type LoggingConfig struct {
	Level string `env:"LOG_LEVEL,default=info"`
	// File receives JSON logs in addition to the text logs on stderr.
	File string `env:"LOG_FILE"`
}

// SlogLevel parses Level, falling back to info for unknown names.
func (c LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads .env when present, decodes the environment and validates the
// result.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.Database.IdentityURL == "" {
		cfg.Database.IdentityURL = cfg.Database.URL
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %s or %s, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	} else if len(c.JWT.SigningKey) < minSigningKeyLength {
		errs = append(errs, fmt.Errorf("JWT_SIGNING_KEY must be at least %d characters for HMAC-SHA256 security", minSigningKeyLength))
	}
	if c.JWT.AccessTokenMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_MINUTES must be positive"))
	}
	if c.JWT.RefreshTokenDays <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_DAYS must be positive"))
	}
	if c.Identity.BcryptCost < minBcryptCost || c.Identity.BcryptCost > maxBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", minBcryptCost, maxBcryptCost))
	}
	if c.Identity.LockoutMaxAttempts < 0 {
		errs = append(errs, errors.New("LOCKOUT_MAX_ATTEMPTS must not be negative"))
	}
	if c.Identity.LockoutMaxAttempts > 0 && c.Identity.LockoutDuration <= 0 {
		errs = append(errs, errors.New("LOCKOUT_DURATION must be positive when lockout is enabled"))
	}
	return errors.Join(errs...)
}
