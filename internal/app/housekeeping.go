package app

import (
	"context"
	"log/slog"
	"time"
)

// ResponsePruner deletes persisted auth responses created before cutoff.
type ResponsePruner interface {
	DeleteAuthResponsesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Housekeeping periodically deletes persisted auth responses older than
// Retention.
type Housekeeping struct {
	Store     ResponsePruner
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeeping creates the worker. If interval is 0 or negative, defaults
// to 1 hour.
func NewHousekeeping(store ResponsePruner, logger *slog.Logger, interval, retention time.Duration) *Housekeeping {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Housekeeping{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (h *Housekeeping) Start() {
	go h.run()
	h.Logger.Info("housekeeping started", "interval", h.Interval, "retention", h.Retention)
}

// Stop blocks until an in-progress cleanup has finished.
func (h *Housekeeping) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("housekeeping stopped")
}

func (h *Housekeeping) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.cleanup()

	for {
		select {
		case <-ticker.C:
			h.cleanup()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Housekeeping) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := h.now().Add(-h.Retention)
	deleted, err := h.Store.DeleteAuthResponsesBefore(ctx, cutoff)
	if err != nil {
		h.Logger.Error("failed to delete old auth responses", "error", err)
		return
	}
	h.Logger.Info("housekeeping cleanup completed", "deleted", deleted, "cutoff", cutoff)
}
