package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.BankIDEnv != EnvSimulator {
		t.Errorf("BankIDEnv = %q, want simulator", cfg.BankIDEnv)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("DatabaseDriver = %q, want sqlite", cfg.DatabaseDriver)
	}
	if cfg.SessionLifetime() != 12*time.Hour {
		t.Errorf("SessionLifetime = %v, want 12h", cfg.SessionLifetime())
	}
	if cfg.Retention() != 0 {
		t.Errorf("Retention = %v, want disabled", cfg.Retention())
	}
	if cfg.HousekeepingEvery() != time.Hour {
		t.Errorf("HousekeepingEvery = %v, want 1h", cfg.HousekeepingEvery())
	}
	if !cfg.AuditEnabled || !cfg.MetricsEnabled {
		t.Error("audit and metrics should default to enabled")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DATABASE_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/bankid")
	t.Setenv("RESPONSE_RETENTION", "720h")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("DatabaseDriver = %q, want postgres", cfg.DatabaseDriver)
	}
	if cfg.Retention() != 720*time.Hour {
		t.Errorf("Retention = %v, want 720h", cfg.Retention())
	}
	if cfg.SessionLifetime() != 30*time.Minute {
		t.Errorf("SessionLifetime = %v, want 30m", cfg.SessionLifetime())
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "JWT_SECRET"},
		{"unknown env", map[string]string{"JWT_SECRET": testSecret, "BANKID_ENV": "staging"}, "BANKID_ENV"},
		{"test without cert", map[string]string{"JWT_SECRET": testSecret, "BANKID_ENV": "test"}, "BANKID_CERT_FILE"},
		{"production without ca", map[string]string{"JWT_SECRET": testSecret, "BANKID_ENV": "production", "BANKID_CERT_FILE": "rp.p12"}, "BANKID_CA_FILE"},
		{"bad driver", map[string]string{"JWT_SECRET": testSecret, "DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"bad retention", map[string]string{"JWT_SECRET": testSecret, "RESPONSE_RETENTION": "forever"}, "RESPONSE_RETENTION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
