package goBankID

import (
	"context"
	"time"
)

// OrderStatus is the lifecycle state of an identification order.
type OrderStatus string

const (
	// StatusPending is an exported constant or variable used by the authentication engine.
	StatusPending OrderStatus = "pending"
	// StatusComplete is an exported constant or variable used by the authentication engine.
	StatusComplete OrderStatus = "complete"
	// StatusCompleteNoUser marks an order that completed at the provider but whose
	// personal number is not bound to any local user.
	StatusCompleteNoUser OrderStatus = "complete_no_user"
	// StatusFailed is an exported constant or variable used by the authentication engine.
	StatusFailed OrderStatus = "failed"
	// StatusExpired is an exported constant or variable used by the authentication engine.
	StatusExpired OrderStatus = "expired"
)

// Terminal reports whether no further transition is possible for the order.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusCompleteNoUser, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// ProviderStatus is the raw order state reported by the identity provider.
type ProviderStatus string

const (
	// ProviderPending is an exported constant or variable used by the authentication engine.
	ProviderPending ProviderStatus = "pending"
	// ProviderFailed is an exported constant or variable used by the authentication engine.
	ProviderFailed ProviderStatus = "failed"
	// ProviderComplete is an exported constant or variable used by the authentication engine.
	ProviderComplete ProviderStatus = "complete"
)

// Order is the engine's view of one identification order.
type Order struct {
	OrderRef       string
	AutoStartToken string
	QRStartToken   string
	QRStartSecret  string
	AttemptID      string
	ClientIP       string
	RedirectURL    string
	Status         OrderStatus
	HintCode       string
	LastElapsed    int
	UserID         string
	CreatedAt      time.Time
}

// OrderHandle is what the provider returns when an order is started.
type OrderHandle struct {
	OrderRef       string
	AutoStartToken string
	QRStartToken   string
	QRStartSecret  string
	// Body is the raw provider response, persisted verbatim as the auth response record.
	Body []byte
}

// CompletionData carries the identity attributes of a completed order.
type CompletionData struct {
	PersonalNumber  string `json:"personalNumber"`
	Name            string `json:"name,omitempty"`
	GivenName       string `json:"givenName,omitempty"`
	Surname         string `json:"surname,omitempty"`
	IPAddress       string `json:"ipAddress,omitempty"`
	BankIDIssueDate string `json:"bankIdIssueDate,omitempty"`
	Signature       string `json:"signature,omitempty"`
	OCSPResponse    string `json:"ocspResponse,omitempty"`
}

// ProviderCollect is one provider status report for an order.
type ProviderCollect struct {
	OrderRef   string
	Status     ProviderStatus
	HintCode   string
	Completion *CompletionData
}

// Provider is the identity provider client. Implementations must be safe for
// concurrent use.
type Provider interface {
	Begin(ctx context.Context, endUserIP string) (*OrderHandle, error)
	Collect(ctx context.Context, orderRef string) (*ProviderCollect, error)
}

// UserDirectory resolves personal numbers to local user ids.
// LookupByPersonalNumber returns ErrUserNotFound when no user is bound.
type UserDirectory interface {
	LookupByPersonalNumber(ctx context.Context, personalNumber string) (string, error)
}

// IdentityBinder is implemented by directories that can bind personal numbers
// to users. Binding is first-write-wins: BindPersonalNumber returns false
// without error when the personal number is already bound.
type IdentityBinder interface {
	BindPersonalNumber(ctx context.Context, userID, personalNumber string) (bool, error)
	PersonalNumberForUser(ctx context.Context, userID string) (string, error)
}

// SessionMetadata is passed to the session issuer when a session is created.
type SessionMetadata struct {
	OrderRef  string
	ClientIP  string
	UserAgent string
}

// IssuedSession is the artifact handed to the caller after successful completion.
type IssuedSession struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionInfo describes a validated session.
type SessionInfo struct {
	SessionID string
	UserID    string
	OrderRef  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionIssuer creates and destroys authenticated sessions bound to a user id.
type SessionIssuer interface {
	Issue(ctx context.Context, userID string, meta SessionMetadata) (*IssuedSession, error)
	Destroy(ctx context.Context, token string) error
}

// SessionValidator is implemented by issuers that can validate their own tokens.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*SessionInfo, error)
}

// PersistedAuthResponse is the durable record written when an order is started.
type PersistedAuthResponse struct {
	ID           int64
	TimeCreated  time.Time
	ResponseBody []byte
	OrderRef     string
}

// AuthResponseStore persists raw begin responses keyed by order reference.
// GetAuthResponse returns ErrAuthResponseNotFound for unknown references and
// DeleteAuthResponse is idempotent.
type AuthResponseStore interface {
	SaveAuthResponse(ctx context.Context, record *PersistedAuthResponse) error
	GetAuthResponse(ctx context.Context, orderRef string) (*PersistedAuthResponse, error)
	DeleteAuthResponse(ctx context.Context, orderRef string) error
}

// BeginRequest starts a new identification order.
type BeginRequest struct {
	// ClientIP is the end user's address. Falls back to WithClientIP.
	ClientIP string
	// AttemptID groups orders of one login attempt. A new begin supersedes the
	// attempt's previous order. Empty assigns a fresh id.
	AttemptID string
	// RedirectURL is returned only after a session has been issued.
	RedirectURL string
}

// BeginResult describes a started order.
type BeginResult struct {
	OrderRef       string    `json:"orderRef"`
	AutoStartToken string    `json:"autoStartToken"`
	DeepLink       string    `json:"deepLink"`
	AttemptID      string    `json:"attemptId"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// CollectResult is one interpreted poll of an order.
type CollectResult struct {
	OrderRef        string          `json:"orderRef"`
	Status          OrderStatus     `json:"status"`
	HintCode        string          `json:"hintCode,omitempty"`
	MessageKey      MessageKey      `json:"messageKey"`
	QRPayload       string          `json:"qrPayload,omitempty"`
	QRImage         string          `json:"qr,omitempty"`
	ElapsedSeconds  int             `json:"time_since_auth"`
	TimeLeftPercent float64         `json:"timeLeftPercent"`
	UserID          string          `json:"userId,omitempty"`
	Completion      *CompletionData `json:"-"`
	Session         *IssuedSession  `json:"-"`
	RedirectURL     string          `json:"redirectUrl,omitempty"`
}

// OrderService is the order API a Poller drives. *Engine satisfies it in
// process and the client package satisfies it over HTTP.
type OrderService interface {
	BeginIdentification(ctx context.Context, req BeginRequest) (*BeginResult, error)
	Collect(ctx context.Context, orderRef string) (*CollectResult, error)
}
