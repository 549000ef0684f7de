package goBankID

import "errors"

var (
	// ErrProviderUnavailable is returned when the identity provider cannot be reached or
	// answers with an unusable response. Begin does not retry automatically.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrOrderExpired is an exported constant or variable used by the authentication engine.
	ErrOrderExpired = errors.New("order expired")
	// ErrOrderFailed is an exported constant or variable used by the authentication engine.
	ErrOrderFailed = errors.New("order failed")
	// ErrStartFailed is reported when the provider app could not start the order and the
	// restart budget is exhausted.
	ErrStartFailed = errors.New("order start failed")
	// ErrTransientPoll wraps a single failed poll. It never ends a login attempt.
	ErrTransientPoll = errors.New("transient poll failure")
	// ErrOrderNotFound is an exported constant or variable used by the authentication engine.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderSuperseded is returned when a newer order replaced the requested one in the
	// same login attempt.
	ErrOrderSuperseded = errors.New("order superseded")
	// ErrOrderStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrOrderStoreUnavailable = errors.New("order store unavailable")
	// ErrAuthResponseNotFound is an exported constant or variable used by the authentication engine.
	ErrAuthResponseNotFound = errors.New("auth response not found")
	// ErrBeginRateLimited is an exported constant or variable used by the authentication engine.
	ErrBeginRateLimited = errors.New("identification rate limited")
	// ErrMissingClientIP is an exported constant or variable used by the authentication engine.
	ErrMissingClientIP = errors.New("client ip required")
	// ErrUserNotFound is returned by a UserDirectory when no user is bound to a personal number.
	ErrUserNotFound = errors.New("user not found")
	// ErrIdentityBindingUnsupported is an exported constant or variable used by the authentication engine.
	ErrIdentityBindingUnsupported = errors.New("user directory does not support identity binding")
	// ErrSessionCreationFailed is returned when an order completed for a known user but the
	// session issuer failed. The order stays complete.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInvalid is an exported constant or variable used by the authentication engine.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionValidationUnsupported is an exported constant or variable used by the authentication engine.
	ErrSessionValidationUnsupported = errors.New("session issuer does not support validation")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
