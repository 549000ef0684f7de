package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/httpapi"
)

// Client is a goBankID server client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ goBankID.OrderService = (*Client)(nil)

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// BeginIdentification starts an order. The server derives the end user
// address from the connection, so req.ClientIP is not sent.
func (c *Client) BeginIdentification(ctx context.Context, req goBankID.BeginRequest) (*goBankID.BeginResult, error) {
	body, err := json.Marshal(httpapi.IdentifyRequest{
		AttemptID:   req.AttemptID,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/login/identify", bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var res goBankID.BeginResult
	if err := decodeJSON(resp, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// Collect polls orderRef once. As with the engine, a completed order whose
// session could not be created returns the result together with
// goBankID.ErrSessionCreationFailed.
func (c *Client) Collect(ctx context.Context, orderRef string) (*goBankID.CollectResult, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/login/status?orderRef="+url.QueryEscape(orderRef), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var status httpapi.StatusResponse
	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.Unmarshal(bodyBytes, &status); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return collectResult(&status), nil
	case http.StatusInternalServerError:
		if err := json.Unmarshal(bodyBytes, &status); err == nil && status.Error == "session_creation_failed" && status.Status != "" {
			return collectResult(&status), goBankID.ErrSessionCreationFailed
		}
	}
	return nil, parseErrorResponse(resp, bodyBytes)
}

func collectResult(s *httpapi.StatusResponse) *goBankID.CollectResult {
	res := &goBankID.CollectResult{
		OrderRef:        s.OrderRef,
		Status:          s.Status,
		HintCode:        s.HintCode,
		MessageKey:      s.MessageKey,
		QRPayload:       s.QRPayload,
		QRImage:         s.QR,
		ElapsedSeconds:  s.TimeSinceAuth,
		TimeLeftPercent: s.TimeLeftPercent,
		UserID:          s.UserID,
		RedirectURL:     s.RedirectURL,
	}
	if s.SessionToken != "" {
		res.Session = &goBankID.IssuedSession{
			SessionID: s.SessionID,
			Token:     s.SessionToken,
		}
		if s.SessionExpiresAt != nil {
			res.Session.ExpiresAt = *s.SessionExpiresAt
		}
	}
	return res
}

// Session describes the session behind token.
func (c *Client) Session(ctx context.Context, token string) (*httpapi.SessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/session", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, err
	}

	var info httpapi.SessionResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}
	return &info, nil
}

// Logout destroys the session behind token.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/logout", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// DeleteAuthResponse removes the persisted begin response of orderRef. token
// must be the session issued for that order.
func (c *Client) DeleteAuthResponse(ctx context.Context, token, orderRef string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/login/orders/"+url.PathEscape(orderRef), nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
