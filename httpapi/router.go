package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/internal/slogx"
	"github.com/MrEthical07/goBankID/middleware"
)

// Engine is the engine surface the handlers need. *goBankID.Engine
// satisfies it.
type Engine interface {
	goBankID.OrderService
	ValidateSession(ctx context.Context, token string) (*goBankID.SessionInfo, error)
	Logout(ctx context.Context, token string) error
	DeleteAuthResponse(ctx context.Context, orderRef string) error
}

// Config configures the router.
type Config struct {
	// CookieName is the session cookie set on completion. Defaults to
	// "bankid_session".
	CookieName string
	// CookieSecure marks the session cookie Secure. Enable behind TLS.
	CookieSecure bool

	BeginLimit   RateLimitConfig
	PollLimit    RateLimitConfig
	DefaultLimit RateLimitConfig

	// Messages translates message keys. Defaults to goBankID.DefaultMessage.
	Messages func(goBankID.MessageKey) string
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
	// HealthCheck backs GET /healthz when set.
	HealthCheck func(context.Context) error
	Logger      *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.CookieName == "" {
		c.CookieName = "bankid_session"
	}
	if c.BeginLimit.RequestsPerWindow <= 0 || c.BeginLimit.Window <= 0 {
		c.BeginLimit = BeginLimit
	}
	if c.PollLimit.RequestsPerWindow <= 0 || c.PollLimit.Window <= 0 {
		c.PollLimit = PollLimit
	}
	if c.DefaultLimit.RequestsPerWindow <= 0 || c.DefaultLimit.Window <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.Messages == nil {
		c.Messages = goBankID.DefaultMessage
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewRouter returns the HTTP handler for engine.
func NewRouter(engine Engine, cfg Config) http.Handler {
	cfg.applyDefaults()
	h := &handlers{engine: engine, cfg: cfg}

	begin := RateLimit(cfg.BeginLimit, ClientIP)
	poll := RateLimit(cfg.PollLimit, ClientIP)
	other := RateLimit(cfg.DefaultLimit, ClientIP)
	guard := middleware.Guard(engine, cfg.CookieName)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/login/identify", begin(http.HandlerFunc(h.identify)))
	mux.Handle("GET /v1/login/status", poll(http.HandlerFunc(h.status)))
	mux.Handle("POST /v1/logout", other(http.HandlerFunc(h.logout)))
	mux.Handle("GET /v1/session", other(guard(http.HandlerFunc(h.session))))
	mux.Handle("DELETE /v1/login/orders/{orderRef}", other(guard(http.HandlerFunc(h.deleteOrder))))
	mux.HandleFunc("GET /healthz", h.healthz)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return slogx.HTTPMiddleware(cfg.Logger)(mux)
}
