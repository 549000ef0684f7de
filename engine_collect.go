package goBankID

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MrEthical07/goBankID/internal"
	"github.com/MrEthical07/goBankID/internal/stores"
	"github.com/MrEthical07/goBankID/qrcode"
)

var errOrderSettled = errors.New("order already settled")

// Collect polls the provider once for orderRef and interprets the answer.
//
// Terminal orders return their stored result without contacting the
// provider, so a completed order never issues a second session. A provider
// failure before the validity window ends is returned wrapped in
// ErrProviderUnavailable and leaves the order untouched; callers should treat
// it as a soft, retryable poll error.
//
// When the order completes for a known user but the session issuer fails,
// Collect returns the complete result together with ErrSessionCreationFailed.
func (e *Engine) Collect(ctx context.Context, orderRef string) (*CollectResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if orderRef == "" {
		return nil, ErrOrderNotFound
	}

	record, err := e.orders.Get(ctx, orderRef)
	if err != nil {
		return nil, mapOrderStoreError(err)
	}
	if OrderStatus(record.Status).Terminal() {
		return e.terminalResult(record)
	}

	if record.AttemptID != "" {
		active, err := e.orders.ActiveOrder(ctx, record.AttemptID)
		if err != nil {
			return nil, mapOrderStoreError(err)
		}
		if active != "" && active != orderRef {
			e.metricInc(MetricOrderSuperseded)
			return nil, ErrOrderSuperseded
		}
	}

	if clientIPFromContext(ctx) == "" {
		ctx = WithClientIP(ctx, record.ClientIP)
	}

	elapsed := e.elapsedSeconds(record)
	windowSeconds := int(e.config.Order.ValidityWindow / time.Second)

	start := time.Now()
	providerCtx, cancel := context.WithTimeout(ctx, e.config.Order.ProviderTimeout)
	res, err := e.provider.Collect(providerCtx, orderRef)
	cancel()
	e.metricInc(MetricCollect)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricCollectLatency, time.Since(start))
	}

	if err == nil && res == nil {
		err = errors.New("provider returned no collect result")
	}
	if err != nil {
		if elapsed >= windowSeconds {
			return e.settle(ctx, record, elapsed, StatusExpired, record.HintCode, "", nil)
		}
		e.metricInc(MetricCollectProviderError)
		e.logger.WarnContext(ctx, "bankid collect failed", slog.String("order_ref", orderRef), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch res.Status {
	case ProviderComplete:
		return e.complete(ctx, record, elapsed, res)
	case ProviderFailed:
		return e.settle(ctx, record, elapsed, StatusFailed, res.HintCode, "", nil)
	case ProviderPending:
		if elapsed >= windowSeconds {
			return e.settle(ctx, record, elapsed, StatusExpired, res.HintCode, "", nil)
		}
		return e.pending(ctx, record, elapsed, res.HintCode)
	default:
		e.metricInc(MetricCollectProviderError)
		return nil, fmt.Errorf("%w: unexpected status %q", ErrProviderUnavailable, res.Status)
	}
}

// Order returns the stored state of orderRef.
func (e *Engine) Order(ctx context.Context, orderRef string) (*Order, error) {
	if e == nil || e.orders == nil {
		return nil, ErrEngineNotReady
	}
	record, err := e.orders.Get(ctx, orderRef)
	if err != nil {
		return nil, mapOrderStoreError(err)
	}
	return orderFromRecord(record), nil
}

// elapsedSeconds never goes backwards for an order, even if the clock does.
func (e *Engine) elapsedSeconds(record *stores.OrderRecord) int {
	elapsed := int(e.now().Sub(time.UnixMilli(record.CreatedAt)) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if last := int(record.LastElapsed); last > elapsed {
		elapsed = last
	}
	return elapsed
}

func clampElapsed(elapsed int) uint16 {
	if elapsed > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(elapsed)
}

func (e *Engine) pending(ctx context.Context, record *stores.OrderRecord, elapsed int, hint string) (*CollectResult, error) {
	updated, err := e.orders.Update(ctx, record.OrderRef, func(r *stores.OrderRecord) error {
		if OrderStatus(r.Status).Terminal() {
			return errOrderSettled
		}
		r.HintCode = hint
		if clamped := clampElapsed(elapsed); clamped > r.LastElapsed {
			r.LastElapsed = clamped
		}
		return nil
	})
	if err != nil {
		return e.settledOrError(ctx, record.OrderRef, err)
	}

	elapsed = int(updated.LastElapsed)
	result := &CollectResult{
		OrderRef:        updated.OrderRef,
		Status:          StatusPending,
		HintCode:        hint,
		MessageKey:      HintMessageKey(hint),
		QRPayload:       qrcode.Payload(updated.QRStartToken, updated.QRStartSecret, elapsed),
		ElapsedSeconds:  elapsed,
		TimeLeftPercent: TimeLeftPercent(elapsed, e.config.Order.ValidityWindow),
	}
	if e.config.Order.RenderQRImage && result.QRPayload != "" {
		image, err := qrcode.PNGDataURL(result.QRPayload, e.config.Order.QRImageSize)
		if err != nil {
			e.logger.WarnContext(ctx, "render qr image failed", slog.String("order_ref", updated.OrderRef), slog.Any("error", err))
		} else {
			result.QRImage = image
		}
	}
	return result, nil
}

func (e *Engine) complete(ctx context.Context, record *stores.OrderRecord, elapsed int, res *ProviderCollect) (*CollectResult, error) {
	if res.Completion == nil || res.Completion.PersonalNumber == "" {
		e.metricInc(MetricCollectProviderError)
		return nil, fmt.Errorf("%w: completion data missing", ErrProviderUnavailable)
	}
	completion := *res.Completion
	fingerprint := internal.PersonalNumberFingerprint(completion.PersonalNumber)

	userID, err := e.directory.LookupByPersonalNumber(ctx, completion.PersonalNumber)
	if errors.Is(err, ErrUserNotFound) {
		return e.settle(ctx, record, elapsed, StatusCompleteNoUser, res.HintCode, "", &completion)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "user lookup failed", slog.String("order_ref", record.OrderRef), slog.String("pn_fp", fingerprint), slog.Any("error", err))
		return nil, fmt.Errorf("user directory: %w", err)
	}

	result, err := e.settle(ctx, record, elapsed, StatusComplete, res.HintCode, userID, &completion)
	if err != nil || result.UserID != userID || result.Completion == nil {
		// Another collect settled the order first and owns the session.
		return result, err
	}

	sess, err := e.issuer.Issue(ctx, userID, SessionMetadata{
		OrderRef:  record.OrderRef,
		ClientIP:  record.ClientIP,
		UserAgent: userAgentFromContext(ctx),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "session creation failed", slog.String("order_ref", record.OrderRef), slog.String("user_id", userID), slog.Any("error", err))
		e.metricInc(MetricSessionCreationFailed)
		e.emitAudit(ctx, auditEventSessionCreationFailed, false, auditScope{UserID: userID, OrderRef: record.OrderRef, AttemptID: record.AttemptID}, ErrSessionCreationFailed, nil)
		if _, markErr := e.orders.Update(ctx, record.OrderRef, func(r *stores.OrderRecord) error {
			r.SessionFailed = true
			return nil
		}); markErr != nil {
			e.logger.WarnContext(ctx, "mark session failure failed", slog.String("order_ref", record.OrderRef), slog.Any("error", markErr))
		}
		result.MessageKey = MessageSessionIssueFail
		return result, ErrSessionCreationFailed
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, auditScope{
		UserID:    userID,
		OrderRef:  record.OrderRef,
		AttemptID: record.AttemptID,
		SessionID: sess.SessionID,
	}, nil, nil)
	if e.rateLimiter != nil {
		_ = e.rateLimiter.ResetBegin(ctx, record.ClientIP)
	}

	result.Session = sess
	result.RedirectURL = record.RedirectURL
	return result, nil
}

// settle moves a pending order into a terminal status. When a concurrent
// collect got there first, the stored result is returned without Completion.
func (e *Engine) settle(
	ctx context.Context,
	record *stores.OrderRecord,
	elapsed int,
	status OrderStatus,
	hint string,
	userID string,
	completion *CompletionData,
) (*CollectResult, error) {
	updated, err := e.orders.Update(ctx, record.OrderRef, func(r *stores.OrderRecord) error {
		if OrderStatus(r.Status).Terminal() {
			return errOrderSettled
		}
		r.Status = string(status)
		r.HintCode = hint
		r.UserID = userID
		if clamped := clampElapsed(elapsed); clamped > r.LastElapsed {
			r.LastElapsed = clamped
		}
		return nil
	})
	if err != nil {
		return e.settledOrError(ctx, record.OrderRef, err)
	}

	if err := e.orders.ReleaseAttempt(ctx, updated.AttemptID, updated.OrderRef); err != nil {
		e.logger.WarnContext(ctx, "release attempt failed", slog.String("order_ref", updated.OrderRef), slog.Any("error", err))
	}

	e.recordOutcome(ctx, updated, completion)

	result := e.storedResult(updated)
	result.Completion = completion
	return result, nil
}

func (e *Engine) settledOrError(ctx context.Context, orderRef string, err error) (*CollectResult, error) {
	if !errors.Is(err, errOrderSettled) {
		return nil, mapOrderStoreError(err)
	}
	record, err := e.orders.Get(ctx, orderRef)
	if err != nil {
		return nil, mapOrderStoreError(err)
	}
	return e.terminalResult(record)
}

// terminalResult is the stored result of a settled order. A complete order
// whose session could not be issued keeps reporting ErrSessionCreationFailed.
func (e *Engine) terminalResult(record *stores.OrderRecord) (*CollectResult, error) {
	result := e.storedResult(record)
	if record.SessionFailed {
		return result, ErrSessionCreationFailed
	}
	return result, nil
}

func (e *Engine) recordOutcome(ctx context.Context, record *stores.OrderRecord, completion *CompletionData) {
	hint := record.HintCode
	metadata := func() map[string]string {
		m := map[string]string{
			"elapsed": fmt.Sprint(record.LastElapsed),
		}
		if hint != "" {
			m["hint_code"] = hint
		}
		if completion != nil {
			m["pn_fp"] = internal.PersonalNumberFingerprint(completion.PersonalNumber)
		}
		return m
	}

	switch OrderStatus(record.Status) {
	case StatusComplete:
		e.metricInc(MetricOrderComplete)
		e.emitAudit(ctx, auditEventOrderComplete, true, orderScope(record), nil, metadata)
	case StatusCompleteNoUser:
		e.metricInc(MetricOrderCompleteNoUser)
		e.emitAudit(ctx, auditEventOrderCompleteNoUser, true, orderScope(record), nil, metadata)
		e.logger.InfoContext(ctx, "bankid identification without local user", slog.String("order_ref", record.OrderRef))
	case StatusFailed:
		if hint == HintStartFailed {
			e.metricInc(MetricOrderStartFailed)
			e.emitAudit(ctx, auditEventOrderStartFailed, false, orderScope(record), ErrStartFailed, metadata)
			return
		}
		e.metricInc(MetricOrderFailed)
		e.emitAudit(ctx, auditEventOrderFailed, false, orderScope(record), ErrOrderFailed, metadata)
	case StatusExpired:
		e.metricInc(MetricOrderExpired)
		e.emitAudit(ctx, auditEventOrderExpired, false, orderScope(record), ErrOrderExpired, metadata)
	}
}

// storedResult rebuilds the interpreted result of a stored order. It never
// carries a session or redirect.
func (e *Engine) storedResult(record *stores.OrderRecord) *CollectResult {
	status := OrderStatus(record.Status)
	elapsed := int(record.LastElapsed)
	result := &CollectResult{
		OrderRef:        record.OrderRef,
		Status:          status,
		HintCode:        record.HintCode,
		MessageKey:      statusMessageKey(status, record.HintCode),
		ElapsedSeconds:  elapsed,
		TimeLeftPercent: TimeLeftPercent(elapsed, e.config.Order.ValidityWindow),
		UserID:          record.UserID,
	}
	if status == StatusExpired {
		result.TimeLeftPercent = 0
	}
	if record.SessionFailed {
		result.MessageKey = MessageSessionIssueFail
	}
	return result
}
