package goBankID

import (
	"context"
	"errors"

	"github.com/MrEthical07/goBankID/internal/stores"
)

const (
	auditEventBeginSuccess          = "begin_success"
	auditEventBeginFailure          = "begin_failure"
	auditEventBeginRateLimited      = "begin_rate_limited"
	auditEventOrderComplete         = "order_complete"
	auditEventOrderCompleteNoUser   = "order_complete_no_user"
	auditEventOrderFailed           = "order_failed"
	auditEventOrderStartFailed      = "order_start_failed"
	auditEventOrderExpired          = "order_expired"
	auditEventSessionCreated        = "session_created"
	auditEventSessionCreationFailed = "session_creation_failed"
	auditEventLogout                = "logout"
	auditEventIdentityBound         = "identity_bound"
)

// AuditErrorCode is the stable error classification recorded in audit events.
type AuditErrorCode string

const (
	auditErrRateLimited           AuditErrorCode = "rate_limited"
	auditErrMissingClientIP       AuditErrorCode = "missing_client_ip"
	auditErrProviderUnavailable   AuditErrorCode = "provider_unavailable"
	auditErrOrderNotFound         AuditErrorCode = "order_not_found"
	auditErrOrderSuperseded       AuditErrorCode = "order_superseded"
	auditErrOrderFailed           AuditErrorCode = "order_failed"
	auditErrOrderExpired          AuditErrorCode = "order_expired"
	auditErrStartFailed           AuditErrorCode = "start_failed"
	auditErrUserNotFound          AuditErrorCode = "user_not_found"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrSessionNotFound       AuditErrorCode = "session_not_found"
	auditErrInvalidToken          AuditErrorCode = "invalid_token"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

// auditScope names the user, order and session an event is about. Empty
// fields are omitted from the event.
type auditScope struct {
	UserID    string
	OrderRef  string
	AttemptID string
	SessionID string
}

// orderScope scopes an event to a stored order.
func orderScope(record *stores.OrderRecord) auditScope {
	return auditScope{
		UserID:    record.UserID,
		OrderRef:  record.OrderRef,
		AttemptID: record.AttemptID,
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	scope auditScope,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    scope.UserID,
		OrderRef:  scope.OrderRef,
		AttemptID: scope.AttemptID,
		SessionID: scope.SessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBeginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrMissingClientIP):
		return auditErrMissingClientIP
	case errors.Is(err, ErrProviderUnavailable):
		return auditErrProviderUnavailable
	case errors.Is(err, ErrOrderNotFound):
		return auditErrOrderNotFound
	case errors.Is(err, ErrOrderSuperseded):
		return auditErrOrderSuperseded
	case errors.Is(err, ErrStartFailed):
		return auditErrStartFailed
	case errors.Is(err, ErrOrderFailed):
		return auditErrOrderFailed
	case errors.Is(err, ErrOrderExpired):
		return auditErrOrderExpired
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrOrderStoreUnavailable),
		errors.Is(err, ErrIdentityBindingUnsupported),
		errors.Is(err, ErrSessionValidationUnsupported):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
