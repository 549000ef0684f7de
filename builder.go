package goBankID

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goBankID/internal/rate"
	"github.com/MrEthical07/goBankID/internal/stores"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider  Provider
	directory UserDirectory
	issuer    SessionIssuer
	responses AuthResponseStore
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the identity provider client. It is constructed once per
// configuration and shared by every order.
func (b *Builder) WithProvider(p Provider) *Builder {
	b.provider = p
	return b
}

// WithUserDirectory sets the personal number lookup. When the directory also
// implements AuthResponseStore and no store was set, it serves both.
func (b *Builder) WithUserDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

// WithSessionIssuer replaces the default Redis session issuer. JWT keys are
// not required when a custom issuer is supplied.
func (b *Builder) WithSessionIssuer(issuer SessionIssuer) *Builder {
	b.issuer = issuer
	return b
}

// WithAuthResponseStore describes the withauthresponsestore operation and its observable behavior.
func (b *Builder) WithAuthResponseStore(store AuthResponseStore) *Builder {
	b.responses = store
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source used for order age and expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
//
// Build may return an error when input validation or dependency checks fail.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.validate(b.issuer == nil); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	responses := b.responses
	if responses == nil {
		if store, ok := b.directory.(AuthResponseStore); ok {
			responses = store
		}
	}
	if responses == nil {
		return nil, errors.New("auth response store required")
	}

	// -------- SESSION ISSUER --------
	issuer := b.issuer
	if issuer == nil {
		defaultIssuer, err := NewSessionIssuer(b.redis, cfg.Session, cfg.JWT)
		if err != nil {
			return nil, err
		}
		issuer = defaultIssuer
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		orders:    stores.NewOrderStore(b.redis, cfg.Order.RedisPrefix),
		provider:  b.provider,
		directory: b.directory,
		issuer:    issuer,
		responses: responses,
		logger:    logger,
		clock:     clock,
	}

	engine.rateLimiter = rate.New(b.redis, rate.Config{
		Prefix:           cfg.Order.RedisPrefix,
		EnableIPThrottle: cfg.Security.EnableBeginThrottle,
		MaxBeginAttempts: cfg.Security.MaxBeginAttempts,
		BeginWindow:      cfg.Security.BeginWindow,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
