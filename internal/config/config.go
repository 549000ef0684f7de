// Package config loads and validates the server configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider environments accepted in BANKID_ENV.
const (
	EnvSimulator  = "simulator"
	EnvTest       = "test"
	EnvProduction = "production"
)

// Config holds the bankid-server configuration.
type Config struct {
	// HTTPAddr is the listen address (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// BankIDEnv selects the identity provider: simulator, test or production.
	BankIDEnv string `mapstructure:"BANKID_ENV"`
	// CertFile is the RP certificate: a PKCS#12 bundle, or a PEM certificate
	// when KeyFile is set.
	CertFile string `mapstructure:"BANKID_CERT_FILE"`
	// KeyFile is the PEM private key for a PEM CertFile.
	KeyFile string `mapstructure:"BANKID_KEY_FILE"`
	// CertPassphrase unlocks a PKCS#12 CertFile.
	CertPassphrase string `mapstructure:"BANKID_CERT_PASSPHRASE"`
	// CAFile is the PEM bundle the provider's server certificate must chain to.
	CAFile string `mapstructure:"BANKID_CA_FILE"`
	// UserVisibleData is shown in the app while identifying.
	UserVisibleData string `mapstructure:"BANKID_USER_VISIBLE_DATA"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// DatabaseDriver is sqlite or postgres.
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	// JWTSecret signs session tokens (HS256, at least 32 bytes).
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	SessionTTL   string `mapstructure:"SESSION_TTL"`
	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	AppEnv    string `mapstructure:"APP_ENV"`

	// ResponseRetention enables housekeeping of persisted auth responses
	// older than this duration. Empty disables it.
	ResponseRetention    string `mapstructure:"RESPONSE_RETENTION"`
	HousekeepingInterval string `mapstructure:"HOUSEKEEPING_INTERVAL"`

	AuditEnabled   bool `mapstructure:"AUDIT_ENABLED"`
	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("BANKID_ENV", EnvSimulator)
	v.SetDefault("BANKID_CERT_FILE", "")
	v.SetDefault("BANKID_KEY_FILE", "")
	v.SetDefault("BANKID_CERT_PASSPHRASE", "")
	v.SetDefault("BANKID_CA_FILE", "")
	v.SetDefault("BANKID_USER_VISIBLE_DATA", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "file:bankid.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("RESPONSE_RETENTION", "")
	v.SetDefault("HOUSEKEEPING_INTERVAL", "1h")
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("METRICS_ENABLED", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}

	c.BankIDEnv = strings.ToLower(c.BankIDEnv)
	switch c.BankIDEnv {
	case EnvSimulator:
	case EnvTest, EnvProduction:
		if c.CertFile == "" {
			return errors.New("config: BANKID_CERT_FILE is required outside the simulator")
		}
	default:
		return errors.New("config: BANKID_ENV must be simulator, test or production")
	}
	if c.BankIDEnv == EnvProduction && c.CAFile == "" {
		return errors.New("config: BANKID_CA_FILE is required in production")
	}

	c.DatabaseDriver = strings.ToLower(c.DatabaseDriver)
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return errors.New("config: DATABASE_DRIVER must be sqlite or postgres")
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}

	if len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 bytes")
	}

	if c.ResponseRetention != "" {
		if d, err := time.ParseDuration(c.ResponseRetention); err != nil || d <= 0 {
			return errors.New("config: RESPONSE_RETENTION must be a positive duration")
		}
	}

	return nil
}

// SessionLifetime parses SessionTTL. Returns 12h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// Retention returns the auth response retention, or 0 when housekeeping is
// disabled.
func (c *Config) Retention() time.Duration {
	d, err := time.ParseDuration(c.ResponseRetention)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// HousekeepingEvery parses HousekeepingInterval. Returns 1h if unset or invalid.
func (c *Config) HousekeepingEvery() time.Duration {
	d, err := time.ParseDuration(c.HousekeepingInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}
