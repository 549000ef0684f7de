package session

// Session is the server-side record behind an issued session token.
type Session struct {
	SessionID string
	UserID    string
	OrderRef  string

	IPHash        [32]byte
	UserAgentHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
