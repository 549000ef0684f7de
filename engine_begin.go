package goBankID

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goBankID/internal/rate"
	"github.com/MrEthical07/goBankID/internal/stores"
	"github.com/google/uuid"
)

// BeginIdentification starts a new order at the provider for the end user's
// IP address and makes it the active order of the login attempt.
//
// The provider is called once; failures are returned wrapped in
// ErrProviderUnavailable and never retried. The raw provider response is
// persisted before the order becomes pollable.
func (e *Engine) BeginIdentification(ctx context.Context, req BeginRequest) (*BeginResult, error) {
	if !e.ready() || e.responses == nil {
		return nil, ErrEngineNotReady
	}

	ip := req.ClientIP
	if ip == "" {
		ip = clientIPFromContext(ctx)
	}
	if ip == "" {
		e.metricInc(MetricBeginFailure)
		e.emitAudit(ctx, auditEventBeginFailure, false, auditScope{AttemptID: req.AttemptID}, ErrMissingClientIP, nil)
		return nil, ErrMissingClientIP
	}
	ctx = WithClientIP(ctx, ip)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.AllowBegin(ctx, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricBeginRateLimited)
				e.emitAudit(ctx, auditEventBeginRateLimited, false, auditScope{AttemptID: req.AttemptID}, ErrBeginRateLimited, nil)
				return nil, ErrBeginRateLimited
			}
			e.metricInc(MetricBeginFailure)
			return nil, fmt.Errorf("%w: %v", ErrOrderStoreUnavailable, err)
		}
	}

	attemptID := req.AttemptID
	if attemptID == "" {
		attemptID = uuid.NewString()
	}
	redirectURL := req.RedirectURL
	if redirectURL == "" {
		redirectURL = e.config.Order.DefaultRedirectURL
	}

	providerCtx, cancel := context.WithTimeout(ctx, e.config.Order.ProviderTimeout)
	handle, err := e.provider.Begin(providerCtx, ip)
	cancel()
	if err == nil && (handle == nil || handle.OrderRef == "") {
		err = errors.New("provider returned no order reference")
	}
	if err != nil {
		e.logger.WarnContext(ctx, "bankid begin failed", slog.String("attempt_id", attemptID), slog.Any("error", err))
		e.metricInc(MetricBeginFailure)
		e.emitAudit(ctx, auditEventBeginFailure, false, auditScope{AttemptID: attemptID}, ErrProviderUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	now := e.now()

	if err := e.responses.SaveAuthResponse(ctx, &PersistedAuthResponse{
		TimeCreated:  now,
		ResponseBody: handle.Body,
		OrderRef:     handle.OrderRef,
	}); err != nil {
		e.logger.ErrorContext(ctx, "persist auth response failed", slog.String("order_ref", handle.OrderRef), slog.Any("error", err))
		e.metricInc(MetricBeginFailure)
		e.emitAudit(ctx, auditEventBeginFailure, false, auditScope{OrderRef: handle.OrderRef, AttemptID: attemptID}, ErrOrderStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrOrderStoreUnavailable, err)
	}

	record := &stores.OrderRecord{
		OrderRef:       handle.OrderRef,
		AutoStartToken: handle.AutoStartToken,
		QRStartToken:   handle.QRStartToken,
		QRStartSecret:  handle.QRStartSecret,
		AttemptID:      attemptID,
		ClientIP:       ip,
		RedirectURL:    redirectURL,
		Status:         string(StatusPending),
		CreatedAt:      now.UnixMilli(),
	}
	if err := e.orders.Create(ctx, record, e.config.Order.RecordTTL); err != nil {
		e.logger.ErrorContext(ctx, "store order failed", slog.String("order_ref", handle.OrderRef), slog.Any("error", err))
		e.metricInc(MetricBeginFailure)
		e.emitAudit(ctx, auditEventBeginFailure, false, auditScope{OrderRef: handle.OrderRef, AttemptID: attemptID}, ErrOrderStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrOrderStoreUnavailable, err)
	}

	e.metricInc(MetricBeginSuccess)
	e.emitAudit(ctx, auditEventBeginSuccess, true, auditScope{OrderRef: handle.OrderRef, AttemptID: attemptID}, nil, nil)
	e.logger.DebugContext(ctx, "bankid order started", slog.String("order_ref", handle.OrderRef), slog.String("attempt_id", attemptID))

	return &BeginResult{
		OrderRef:       handle.OrderRef,
		AutoStartToken: handle.AutoStartToken,
		DeepLink:       DeepLink(e.config.Order.DeepLinkBase, handle.AutoStartToken),
		AttemptID:      attemptID,
		ExpiresAt:      now.Add(e.config.Order.ValidityWindow),
	}, nil
}
