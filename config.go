package goBankID

import (
	"errors"
	"net/url"
	"time"
)

const defaultDeepLinkBase = "https://app.bankid.com/"

// Config defines a public type used by goBankID APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Order    OrderConfig
	Session  SessionConfig
	JWT      JWTConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
ORDER CONFIG
====================================
*/

// OrderConfig controls order lifetime, polling cadence and QR output.
type OrderConfig struct {
	RedisPrefix string
	// ValidityWindow is how long an order may stay pending before it expires.
	ValidityWindow time.Duration
	// PollInterval is the delay between a processed poll and the next one.
	PollInterval time.Duration
	// RecordTTL bounds how long order records stay readable after creation.
	RecordTTL time.Duration
	// MaxStartFailedRestarts caps automatic restarts after startFailed.
	// Negative means unlimited.
	MaxStartFailedRestarts int
	ProviderTimeout        time.Duration
	DeepLinkBase           string
	DefaultRedirectURL     string
	RenderQRImage          bool
	QRImageSize            int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goBankID APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
	CookieName  string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the signed session tokens of the default session issuer.
type JWTConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by goBankID APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode      bool
	EnableBeginThrottle bool
	MaxBeginAttempts    int
	BeginWindow         time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goBankID APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goBankID APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration: a 30 second order window
// polled once per second, three startFailed restarts and 12 hour sessions.
// JWT keys must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Order: OrderConfig{
			RedisPrefix:            "bid",
			ValidityWindow:         30 * time.Second,
			PollInterval:           time.Second,
			RecordTTL:              10 * time.Minute,
			MaxStartFailedRestarts: 3,
			ProviderTimeout:        10 * time.Second,
			DeepLinkBase:           defaultDeepLinkBase,
			DefaultRedirectURL:     "/",
			RenderQRImage:          true,
			QRImageSize:            256,
		},
		Session: SessionConfig{
			RedisPrefix: "bs",
			TTL:         12 * time.Hour,
			CookieName:  "bankid_session",
		},
		JWT: JWTConfig{
			SigningMethod: "ed25519",
			Issuer:        "goBankID",
		},
		Security: SecurityConfig{
			ProductionMode:      false,
			EnableBeginThrottle: true,
			MaxBeginAttempts:    20,
			BeginWindow:         time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with,
// including the JWT keys of the default session issuer.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireJWT bool) error {
	// Order
	if c.Order.RedisPrefix == "" {
		return errors.New("Order RedisPrefix must not be empty")
	}
	if c.Order.ValidityWindow < time.Second {
		return errors.New("Order ValidityWindow must be >= 1s")
	}
	if c.Order.PollInterval <= 0 {
		return errors.New("Order PollInterval must be > 0")
	}
	if c.Order.PollInterval >= c.Order.ValidityWindow {
		return errors.New("Order PollInterval must be shorter than ValidityWindow")
	}
	if c.Order.RecordTTL < c.Order.ValidityWindow {
		return errors.New("Order RecordTTL must be >= ValidityWindow")
	}
	if c.Order.ProviderTimeout <= 0 {
		return errors.New("Order ProviderTimeout must be > 0")
	}
	if c.Order.DeepLinkBase != "" {
		u, err := url.Parse(c.Order.DeepLinkBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Order DeepLinkBase must be an absolute URL")
		}
	}
	if c.Order.RenderQRImage && (c.Order.QRImageSize < 64 || c.Order.QRImageSize > 2048) {
		return errors.New("Order QRImageSize must be between 64 and 2048")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.RedisPrefix == c.Order.RedisPrefix {
		return errors.New("Session RedisPrefix must differ from Order RedisPrefix")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}

	// JWT
	if requireJWT {
		if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
			return errors.New("unsupported JWT signing method")
		}
		if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	}

	// Security
	if c.Security.EnableBeginThrottle {
		if c.Security.MaxBeginAttempts <= 0 {
			return errors.New("Security MaxBeginAttempts must be > 0 when begin throttle is enabled")
		}
		if c.Security.BeginWindow <= 0 {
			return errors.New("Security BeginWindow must be > 0 when begin throttle is enabled")
		}
	}
	if c.Security.ProductionMode && !c.Security.EnableBeginThrottle {
		return errors.New("ProductionMode requires EnableBeginThrottle")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
