package middleware

import (
	"context"
	"net/http"
	"strings"

	goBankID "github.com/MrEthical07/goBankID"
)

// SessionValidator is satisfied by *goBankID.Engine.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*goBankID.SessionInfo, error)
}

type sessionContextKey struct{}

// SessionFromContext returns the session validated by Guard.
func SessionFromContext(ctx context.Context) (*goBankID.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*goBankID.SessionInfo)
	return info, ok
}

// Guard rejects requests without a valid session token. The token is read from
// the Authorization bearer header, then from the cookieName cookie when
// cookieName is not empty.
func Guard(validator SessionValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := TokenFromRequest(r, cookieName)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the session token from the bearer header or the
// named cookie.
func TokenFromRequest(r *http.Request, cookieName string) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookieName == "" {
		return "", false
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
