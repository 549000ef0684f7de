// Package app wires the bankid-server: configuration, logging, Redis, the
// durable store, the identity provider, the engine and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/httpapi"
	"github.com/MrEthical07/goBankID/internal/config"
	"github.com/MrEthical07/goBankID/internal/slogx"
	"github.com/MrEthical07/goBankID/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

const shutdownGracePeriod = 15 * time.Second

// Application is the assembled server.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	redis        *redis.Client
	store        durableStore
	closeStore   func() error
	engine       *goBankID.Engine
	housekeeping *Housekeeping
	server       *http.Server
}

// New builds every dependency. Failures release what was already opened.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "bankid-server",
			Version: BuildVersion,
			Env:     cfg.AppEnv,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.init(); err != nil {
		app.release()
		return nil, err
	}
	return app, nil
}

func (app *Application) init() error {
	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	store, closeStore, err := openStore(app.cfg)
	if err != nil {
		return err
	}
	app.store = store
	app.closeStore = closeStore
	app.logger.Info("database ready", "driver", app.cfg.DatabaseDriver)

	provider, err := newProvider(app.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	engineCfg := goBankID.DefaultConfig()
	engineCfg.JWT.SigningMethod = "hs256"
	engineCfg.JWT.PrivateKey = []byte(app.cfg.JWTSecret)
	engineCfg.Session.TTL = app.cfg.SessionLifetime()
	engineCfg.Security.ProductionMode = app.cfg.BankIDEnv == config.EnvProduction
	engineCfg.Audit.Enabled = app.cfg.AuditEnabled
	engineCfg.Metrics.Enabled = app.cfg.MetricsEnabled
	engineCfg.Metrics.EnableLatencyHistograms = app.cfg.MetricsEnabled

	builder := goBankID.New().
		WithConfig(engineCfg).
		WithRedis(app.redis).
		WithProvider(provider).
		WithUserDirectory(store).
		WithAuthResponseStore(store).
		WithLogger(app.logger)
	if app.cfg.AuditEnabled {
		builder.WithAuditSink(goBankID.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	app.engine = engine

	routerCfg := httpapi.Config{
		CookieName:   engineCfg.Session.CookieName,
		CookieSecure: app.cfg.CookieSecure,
		HealthCheck:  app.healthCheck,
		Logger:       app.logger,
	}
	if app.cfg.MetricsEnabled {
		routerCfg.Metrics = prometheus.New(engine).Handler()
	}

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(engine, routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if retention := app.cfg.Retention(); retention > 0 {
		app.housekeeping = NewHousekeeping(store, app.logger, app.cfg.HousekeepingEvery(), retention)
	}
	return nil
}

func (app *Application) healthCheck(ctx context.Context) error {
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := app.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Run serves until SIGINT/SIGTERM or a server error, then shuts down.
func (app *Application) Run() error {
	if app.housekeeping != nil {
		app.housekeeping.Start()
	}

	app.logger.Info("bankid server starting",
		"addr", app.cfg.HTTPAddr,
		"provider", app.cfg.BankIDEnv,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.stopBackground()
		app.release()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig.String())
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the HTTP server, then stops background work and releases
// connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down bankid server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopBackground()
	if err := app.release(); err != nil {
		return err
	}

	app.logger.Info("bankid server stopped")
	return nil
}

func (app *Application) stopBackground() {
	if app.housekeeping != nil {
		app.housekeeping.Stop()
		app.housekeeping = nil
	}
}

func (app *Application) release() error {
	var errs []error
	if app.engine != nil {
		app.engine.Close()
		app.engine = nil
	}
	if app.closeStore != nil {
		if err := app.closeStore(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
		app.closeStore = nil
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, err)
		}
		app.redis = nil
	}
	return errors.Join(errs...)
}
