package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/internal/slogx"
	"github.com/MrEthical07/goBankID/middleware"
)

const maxBodyBytes = 4 << 10

type handlers struct {
	engine Engine
	cfg    Config
}

// IdentifyRequest is the body of POST /v1/login/identify.
type IdentifyRequest struct {
	AttemptID   string `json:"attemptId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// StatusResponse is the body of GET /v1/login/status.
type StatusResponse struct {
	OrderRef         string               `json:"orderRef"`
	Status           goBankID.OrderStatus `json:"status"`
	HintCode         string               `json:"hintCode,omitempty"`
	MessageKey       goBankID.MessageKey  `json:"messageKey"`
	Message          string               `json:"message"`
	QR               string               `json:"qr,omitempty"`
	QRPayload        string               `json:"qrPayload,omitempty"`
	TimeSinceAuth    int                  `json:"time_since_auth"`
	TimeLeftPercent  float64              `json:"timeLeftPercent"`
	RedirectURL      string               `json:"redirectUrl,omitempty"`
	SessionToken     string               `json:"sessionToken,omitempty"`
	SessionID        string               `json:"sessionId,omitempty"`
	SessionExpiresAt *time.Time           `json:"sessionExpiresAt,omitempty"`
	UserID           string               `json:"userId,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// SessionResponse is the body of GET /v1/session.
type SessionResponse struct {
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *handlers) identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Unreadable body.")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body.")
			return
		}
	}
	if req.RedirectURL != "" && !safeRedirect(req.RedirectURL) {
		writeError(w, http.StatusBadRequest, "invalid_redirect", "redirectUrl must be a local path.")
		return
	}

	ip := ClientIP(r)
	ctx := goBankID.WithUserAgent(goBankID.WithClientIP(r.Context(), ip), r.UserAgent())

	res, err := h.engine.BeginIdentification(ctx, goBankID.BeginRequest{
		ClientIP:    ip,
		AttemptID:   req.AttemptID,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, res)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	orderRef := r.URL.Query().Get("orderRef")
	if orderRef == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "orderRef is required.")
		return
	}

	ctx := goBankID.WithUserAgent(goBankID.WithClientIP(r.Context(), ClientIP(r)), r.UserAgent())
	res, err := h.engine.Collect(ctx, orderRef)
	if err != nil && !(errors.Is(err, goBankID.ErrSessionCreationFailed) && res != nil) {
		h.writeEngineError(w, r, err)
		return
	}

	body := h.statusResponse(res)
	if err != nil {
		slogx.FromContext(r.Context()).Error("session creation failed", "order_ref", orderRef)
		body.Error = "session_creation_failed"
		WriteJSON(w, http.StatusInternalServerError, body)
		return
	}

	if res.Session != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cfg.CookieName,
			Value:    res.Session.Token,
			Path:     "/",
			Expires:  res.Session.ExpiresAt,
			HttpOnly: true,
			Secure:   h.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	WriteJSON(w, http.StatusOK, body)
}

func (h *handlers) statusResponse(res *goBankID.CollectResult) StatusResponse {
	body := StatusResponse{
		OrderRef:        res.OrderRef,
		Status:          res.Status,
		HintCode:        res.HintCode,
		MessageKey:      res.MessageKey,
		Message:         h.cfg.Messages(res.MessageKey),
		QR:              res.QRImage,
		QRPayload:       res.QRPayload,
		TimeSinceAuth:   res.ElapsedSeconds,
		TimeLeftPercent: res.TimeLeftPercent,
		RedirectURL:     res.RedirectURL,
		UserID:          res.UserID,
	}
	if res.Session != nil {
		expires := res.Session.ExpiresAt
		body.SessionToken = res.Session.Token
		body.SessionID = res.Session.SessionID
		body.SessionExpiresAt = &expires
	}
	return body
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.TokenFromRequest(r, h.cfg.CookieName); ok {
		err := h.engine.Logout(r.Context(), token)
		if err != nil && !errors.Is(err, goBankID.ErrSessionInvalid) && !errors.Is(err, goBankID.ErrSessionNotFound) {
			h.writeEngineError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	WriteJSON(w, http.StatusOK, SessionResponse{
		UserID:    info.UserID,
		SessionID: info.SessionID,
		ExpiresAt: info.ExpiresAt,
	})
}

func (h *handlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderRef := r.PathValue("orderRef")
	if orderRef == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "orderRef is required.")
		return
	}
	// Only the session created by an order may remove its record.
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	if info.OrderRef != orderRef {
		writeError(w, http.StatusForbidden, "forbidden", "The session does not belong to this order.")
		return
	}
	if err := h.engine.DeleteAuthResponse(r.Context(), orderRef); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.cfg.HealthCheck != nil {
		if err := h.cfg.HealthCheck(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Error("health check failed", "error", err)
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := errorStatus(err)
	log := slogx.FromContext(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Info("request rejected", "error_code", errCode)
	}
	writeError(w, code, errCode, h.cfg.Messages(errorMessageKey(code)))
}

// errorStatus maps engine errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, goBankID.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, goBankID.ErrOrderSuperseded):
		return http.StatusConflict, "order_superseded"
	case errors.Is(err, goBankID.ErrBeginRateLimited):
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.Is(err, goBankID.ErrMissingClientIP):
		return http.StatusBadRequest, "missing_client_ip"
	case errors.Is(err, goBankID.ErrProviderUnavailable):
		return http.StatusBadGateway, "provider_unavailable"
	case errors.Is(err, goBankID.ErrOrderStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, goBankID.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "engine_not_ready"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorMessageKey(code int) goBankID.MessageKey {
	if code == http.StatusNotFound || code == http.StatusConflict {
		return goBankID.MessageStatusFailed
	}
	return goBankID.MessageSomethingWrong
}

// safeRedirect accepts local absolute paths only.
func safeRedirect(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	return !strings.ContainsAny(target, "\r\n")
}
