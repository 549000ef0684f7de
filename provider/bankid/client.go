package bankid

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
)

// Environment selects the RP API endpoint.
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

const (
	TestBaseURL       = "https://appapi2.test.bankid.com/rp/v6.0"
	ProductionBaseURL = "https://appapi2.bankid.com/rp/v6.0"
)

// maxResponseBytes bounds how much of an RP API answer is read.
const maxResponseBytes = 1 << 20

// Config configures a Client.
type Config struct {
	Environment Environment
	// BaseURL overrides the endpoint picked by Environment.
	BaseURL string
	// Certificate is the RP client certificate presented during the TLS
	// handshake. Required unless HTTPClient is set.
	Certificate *tls.Certificate
	// RootCAs verifies the RP API server. Nil uses the system pool.
	RootCAs *x509.CertPool
	Timeout time.Duration
	// UserVisibleData is shown in the app during identification. Sent
	// base64-encoded; empty omits it.
	UserVisibleData string
	// HTTPClient replaces the mutual TLS client built from the fields above.
	HTTPClient *http.Client
}

var _ goBankID.Provider = (*Client)(nil)

// Client talks to the RP API. It is safe for concurrent use.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	userVisibleData string
}

// New builds a Client for cfg.
func New(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Environment {
		case EnvironmentTest:
			baseURL = TestBaseURL
		case EnvironmentProduction, "":
			baseURL = ProductionBaseURL
		default:
			return nil, fmt.Errorf("bankid: unknown environment %q", cfg.Environment)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.Certificate == nil {
			return nil, ErrNoCertificate
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:   tls.VersionTLS12,
					Certificates: []tls.Certificate{*cfg.Certificate},
					RootCAs:      cfg.RootCAs,
				},
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		httpClient:      httpClient,
		userVisibleData: cfg.UserVisibleData,
	}, nil
}

// APIError is a non-2xx answer from the RP API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"errorCode"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("bankid: http %d", e.StatusCode)
	}
	return fmt.Sprintf("bankid: %s (http %d): %s", e.Code, e.StatusCode, e.Details)
}

func (e *APIError) Unwrap() error {
	return goBankID.ErrProviderUnavailable
}

type authRequest struct {
	EndUserIP       string `json:"endUserIp"`
	UserVisibleData string `json:"userVisibleData,omitempty"`
}

type authResponse struct {
	OrderRef       string `json:"orderRef"`
	AutoStartToken string `json:"autoStartToken"`
	QRStartToken   string `json:"qrStartToken"`
	QRStartSecret  string `json:"qrStartSecret"`
}

type collectRequest struct {
	OrderRef string `json:"orderRef"`
}

type collectResponse struct {
	OrderRef       string          `json:"orderRef"`
	Status         string          `json:"status"`
	HintCode       string          `json:"hintCode"`
	CompletionData *completionData `json:"completionData"`
}

type completionData struct {
	User struct {
		PersonalNumber string `json:"personalNumber"`
		Name           string `json:"name"`
		GivenName      string `json:"givenName"`
		Surname        string `json:"surname"`
	} `json:"user"`
	Device struct {
		IPAddress string `json:"ipAddress"`
	} `json:"device"`
	BankIDIssueDate string `json:"bankIdIssueDate"`
	Signature       string `json:"signature"`
	OCSPResponse    string `json:"ocspResponse"`
}

// Begin starts an identification order for endUserIP. The raw response body
// is returned in OrderHandle.Body.
func (c *Client) Begin(ctx context.Context, endUserIP string) (*goBankID.OrderHandle, error) {
	req := authRequest{EndUserIP: endUserIP}
	if c.userVisibleData != "" {
		req.UserVisibleData = base64.StdEncoding.EncodeToString([]byte(c.userVisibleData))
	}

	body, err := c.post(ctx, "/auth", req)
	if err != nil {
		return nil, err
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode auth response: %v", goBankID.ErrProviderUnavailable, err)
	}
	if resp.OrderRef == "" {
		return nil, fmt.Errorf("%w: auth response without orderRef", goBankID.ErrProviderUnavailable)
	}

	return &goBankID.OrderHandle{
		OrderRef:       resp.OrderRef,
		AutoStartToken: resp.AutoStartToken,
		QRStartToken:   resp.QRStartToken,
		QRStartSecret:  resp.QRStartSecret,
		Body:           body,
	}, nil
}

// Collect reports the current state of orderRef.
func (c *Client) Collect(ctx context.Context, orderRef string) (*goBankID.ProviderCollect, error) {
	body, err := c.post(ctx, "/collect", collectRequest{OrderRef: orderRef})
	if err != nil {
		return nil, err
	}

	var resp collectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode collect response: %v", goBankID.ErrProviderUnavailable, err)
	}

	status := goBankID.ProviderStatus(resp.Status)
	switch status {
	case goBankID.ProviderPending, goBankID.ProviderFailed, goBankID.ProviderComplete:
	default:
		return nil, fmt.Errorf("%w: unknown collect status %q", goBankID.ErrProviderUnavailable, resp.Status)
	}

	out := &goBankID.ProviderCollect{
		OrderRef: resp.OrderRef,
		Status:   status,
		HintCode: resp.HintCode,
	}
	if status == goBankID.ProviderComplete && resp.CompletionData != nil {
		cd := resp.CompletionData
		out.Completion = &goBankID.CompletionData{
			PersonalNumber:  cd.User.PersonalNumber,
			Name:            cd.User.Name,
			GivenName:       cd.User.GivenName,
			Surname:         cd.User.Surname,
			IPAddress:       cd.Device.IPAddress,
			BankIDIssueDate: cd.BankIDIssueDate,
			Signature:       cd.Signature,
			OCSPResponse:    cd.OCSPResponse,
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("bankid: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goBankID.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", goBankID.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{}
		_ = json.Unmarshal(body, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}

	return body, nil
}
