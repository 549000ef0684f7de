// Package simulator is an in-process identity provider that plays a scripted
// sequence of collect answers for every order. It backs local runs and
// examples where no RP certificate is available.
package simulator

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/google/uuid"
)

// ErrUnknownOrder is returned by Collect for references the simulator never issued.
var ErrUnknownOrder = errors.New("simulator: unknown order")

// Step is one scripted collect answer.
type Step struct {
	Status   goBankID.ProviderStatus
	HintCode string
}

// DefaultScript waits for the app, asks for the security code and completes.
var DefaultScript = []Step{
	{Status: goBankID.ProviderPending, HintCode: "outstandingTransaction"},
	{Status: goBankID.ProviderPending, HintCode: "outstandingTransaction"},
	{Status: goBankID.ProviderPending, HintCode: "started"},
	{Status: goBankID.ProviderPending, HintCode: goBankID.HintUserSign},
	{Status: goBankID.ProviderPending, HintCode: goBankID.HintUserSign},
	{Status: goBankID.ProviderComplete},
}

// Identity is returned as completion data.
type Identity struct {
	PersonalNumber string
	GivenName      string
	Surname        string
}

// Provider implements goBankID.Provider.
type Provider struct {
	mu       sync.Mutex
	script   []Step
	identity Identity
	orders   map[string]*order
}

type order struct {
	endUserIP string
	calls     int
}

// Option configures a Provider.
type Option func(*Provider)

// WithScript replaces DefaultScript. The last step repeats once reached.
func WithScript(steps ...Step) Option {
	return func(p *Provider) {
		if len(steps) > 0 {
			p.script = append([]Step(nil), steps...)
		}
	}
}

// WithIdentity sets the identity reported on completion.
func WithIdentity(identity Identity) Option {
	return func(p *Provider) {
		p.identity = identity
	}
}

// New returns a simulator using DefaultScript and a test identity.
func New(opts ...Option) *Provider {
	p := &Provider{
		script: DefaultScript,
		identity: Identity{
			PersonalNumber: "199001011234",
			GivenName:      "Test",
			Surname:        "Testsson",
		},
		orders: make(map[string]*order),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type authResponse struct {
	OrderRef       string `json:"orderRef"`
	AutoStartToken string `json:"autoStartToken"`
	QRStartToken   string `json:"qrStartToken"`
	QRStartSecret  string `json:"qrStartSecret"`
}

// Begin implements goBankID.Provider.
func (p *Provider) Begin(ctx context.Context, endUserIP string) (*goBankID.OrderHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if endUserIP == "" {
		return nil, errors.New("simulator: endUserIp required")
	}

	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	resp := authResponse{
		OrderRef:       uuid.NewString(),
		AutoStartToken: uuid.NewString(),
		QRStartToken:   uuid.NewString(),
		QRStartSecret:  secret,
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.orders[resp.OrderRef] = &order{endUserIP: endUserIP}
	p.mu.Unlock()

	return &goBankID.OrderHandle{
		OrderRef:       resp.OrderRef,
		AutoStartToken: resp.AutoStartToken,
		QRStartToken:   resp.QRStartToken,
		QRStartSecret:  resp.QRStartSecret,
		Body:           body,
	}, nil
}

// Collect implements goBankID.Provider and advances the order's script.
func (p *Provider) Collect(ctx context.Context, orderRef string) (*goBankID.ProviderCollect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	o, ok := p.orders[orderRef]
	if !ok {
		p.mu.Unlock()
		return nil, ErrUnknownOrder
	}
	idx := o.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	o.calls++
	step := p.script[idx]
	endUserIP := o.endUserIP
	p.mu.Unlock()

	res := &goBankID.ProviderCollect{
		OrderRef: orderRef,
		Status:   step.Status,
		HintCode: step.HintCode,
	}
	if step.Status == goBankID.ProviderComplete {
		res.Completion = &goBankID.CompletionData{
			PersonalNumber: p.identity.PersonalNumber,
			Name:           p.identity.GivenName + " " + p.identity.Surname,
			GivenName:      p.identity.GivenName,
			Surname:        p.identity.Surname,
			IPAddress:      endUserIP,
		}
	}
	return res, nil
}

func randomSecret() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", b[:]), nil
}
