package client

import (
	"fmt"

	goBankID "github.com/MrEthical07/goBankID"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("bankid server: %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("bankid server: %d %s", e.StatusCode, e.Code)
}

// Unwrap maps the server error code onto the matching goBankID sentinel.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "order_not_found":
		return goBankID.ErrOrderNotFound
	case "order_superseded":
		return goBankID.ErrOrderSuperseded
	case "rate_limit_exceeded":
		return goBankID.ErrBeginRateLimited
	case "missing_client_ip":
		return goBankID.ErrMissingClientIP
	case "provider_unavailable":
		return goBankID.ErrProviderUnavailable
	case "store_unavailable":
		return goBankID.ErrOrderStoreUnavailable
	case "session_creation_failed":
		return goBankID.ErrSessionCreationFailed
	case "unauthorized":
		return goBankID.ErrSessionInvalid
	default:
		return nil
	}
}
