package goBankID

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goBankID/internal/rate"
	"github.com/MrEthical07/goBankID/internal/stores"
)

// Engine runs identification orders against the provider, interprets their
// progress and issues sessions on completion. Engine methods are safe for
// concurrent use.
type Engine struct {
	config      Config
	orders      *stores.OrderStore
	rateLimiter *rate.Limiter
	provider    Provider
	directory   UserDirectory
	issuer      SessionIssuer
	responses   AuthResponseStore
	audit       *auditDispatcher
	metrics     *Metrics
	logger      *slog.Logger
	clock       func() time.Time
}

// Close flushes pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) ready() bool {
	return e != nil && e.orders != nil && e.provider != nil && e.directory != nil && e.issuer != nil
}

func mapOrderStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, stores.ErrOrderNotFound) {
		return ErrOrderNotFound
	}
	return fmt.Errorf("%w: %v", ErrOrderStoreUnavailable, err)
}

func orderFromRecord(record *stores.OrderRecord) *Order {
	return &Order{
		OrderRef:       record.OrderRef,
		AutoStartToken: record.AutoStartToken,
		QRStartToken:   record.QRStartToken,
		QRStartSecret:  record.QRStartSecret,
		AttemptID:      record.AttemptID,
		ClientIP:       record.ClientIP,
		RedirectURL:    record.RedirectURL,
		Status:         OrderStatus(record.Status),
		HintCode:       record.HintCode,
		LastElapsed:    int(record.LastElapsed),
		UserID:         record.UserID,
		CreatedAt:      time.UnixMilli(record.CreatedAt).UTC(),
	}
}
