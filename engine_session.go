package goBankID

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goBankID/internal"
)

// ValidateSession resolves a session token issued after completion.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	if e == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}
	validator, ok := e.issuer.(SessionValidator)
	if !ok {
		return nil, ErrSessionValidationUnsupported
	}
	if token == "" {
		return nil, ErrSessionInvalid
	}
	return validator.Validate(ctx, token)
}

// Logout destroys the session behind token. Logging out an already
// destroyed session succeeds.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.issuer == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrSessionInvalid
	}

	if err := e.issuer.Destroy(ctx, token); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, auditScope{}, err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, auditScope{}, nil, nil)
	return nil
}

// BindPersonalNumber binds personalNumber to userID. The first binding of a
// personal number wins: bound is false when it already belongs to a user.
// A user that already had another personal number gets it replaced.
func (e *Engine) BindPersonalNumber(ctx context.Context, userID, personalNumber string) (bool, error) {
	if e == nil || e.directory == nil {
		return false, ErrEngineNotReady
	}
	binder, ok := e.directory.(IdentityBinder)
	if !ok {
		return false, ErrIdentityBindingUnsupported
	}
	if userID == "" || personalNumber == "" {
		return false, errors.New("user id and personal number required")
	}

	bound, err := binder.BindPersonalNumber(ctx, userID, personalNumber)
	if err != nil {
		e.logger.ErrorContext(ctx, "identity binding failed", slog.String("user_id", userID), slog.Any("error", err))
		return false, err
	}
	if !bound {
		return false, nil
	}

	e.metricInc(MetricIdentityBound)
	e.emitAudit(ctx, auditEventIdentityBound, true, auditScope{UserID: userID}, nil, func() map[string]string {
		return map[string]string{
			"pn_fp": internal.PersonalNumberFingerprint(personalNumber),
		}
	})
	return true, nil
}

// PersonalNumberForUser returns the personal number bound to userID, for
// privacy data export. Unbound users yield ErrUserNotFound.
func (e *Engine) PersonalNumberForUser(ctx context.Context, userID string) (string, error) {
	if e == nil || e.directory == nil {
		return "", ErrEngineNotReady
	}
	binder, ok := e.directory.(IdentityBinder)
	if !ok {
		return "", ErrIdentityBindingUnsupported
	}
	return binder.PersonalNumberForUser(ctx, userID)
}

// GetAuthResponse returns the raw provider response persisted when orderRef
// was started.
func (e *Engine) GetAuthResponse(ctx context.Context, orderRef string) (*PersistedAuthResponse, error) {
	if e == nil || e.responses == nil {
		return nil, ErrEngineNotReady
	}
	record, err := e.responses.GetAuthResponse(ctx, orderRef)
	if err != nil {
		if errors.Is(err, ErrAuthResponseNotFound) {
			return nil, ErrAuthResponseNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderStoreUnavailable, err)
	}
	return record, nil
}

// DeleteAuthResponse removes the persisted response of orderRef. Cleanup is
// the caller's decision; deleting an unknown reference succeeds.
func (e *Engine) DeleteAuthResponse(ctx context.Context, orderRef string) error {
	if e == nil || e.responses == nil {
		return ErrEngineNotReady
	}
	if err := e.responses.DeleteAuthResponse(ctx, orderRef); err != nil {
		return fmt.Errorf("%w: %v", ErrOrderStoreUnavailable, err)
	}
	return nil
}
