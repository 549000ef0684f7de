package goBankID

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "validity window too short",
			mutate: func(c *Config) {
				c.Order.ValidityWindow = 500 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "poll interval not shorter than window",
			mutate: func(c *Config) {
				c.Order.PollInterval = 30 * time.Second
			},
			wantValid: false,
		},
		{
			name: "record ttl shorter than window",
			mutate: func(c *Config) {
				c.Order.RecordTTL = 10 * time.Second
			},
			wantValid: false,
		},
		{
			name: "relative deep link base invalid",
			mutate: func(c *Config) {
				c.Order.DeepLinkBase = "app.bankid.com"
			},
			wantValid: false,
		},
		{
			name: "qr image size checked only when rendering",
			mutate: func(c *Config) {
				c.Order.RenderQRImage = false
				c.Order.QRImageSize = 1
			},
			wantValid: true,
		},
		{
			name: "qr image size out of range",
			mutate: func(c *Config) {
				c.Order.RenderQRImage = true
				c.Order.QRImageSize = 4096
			},
			wantValid: false,
		},
		{
			name: "shared redis prefix invalid",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = c.Order.RedisPrefix
			},
			wantValid: false,
		},
		{
			name: "short hs256 secret invalid",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "throttle needs attempts",
			mutate: func(c *Config) {
				c.Security.MaxBeginAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "production requires throttle",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Security.EnableBeginThrottle = false
			},
			wantValid: false,
		},
		{
			name: "audit buffer required when enabled",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "unlimited restarts valid",
			mutate: func(c *Config) {
				c.Order.MaxStartFailedRestarts = -1
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Order.ValidityWindow != 30*time.Second || cfg.Order.PollInterval != time.Second {
		t.Fatalf("unexpected order timing: %+v", cfg.Order)
	}
	if cfg.Order.MaxStartFailedRestarts != 3 {
		t.Fatalf("expected 3 restarts, got %d", cfg.Order.MaxStartFailedRestarts)
	}
	if cfg.Order.DeepLinkBase != "https://app.bankid.com/" {
		t.Fatalf("unexpected deep link base %q", cfg.Order.DeepLinkBase)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected defaults without JWT keys to be rejected")
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] = 'X'

	if cfg.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone shares key bytes with the original")
	}
}
