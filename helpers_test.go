package goBankID

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testJWTSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// collectStep is one scripted provider answer. A non-nil err is returned
// instead of a result.
type collectStep struct {
	status     ProviderStatus
	hint       string
	completion *CompletionData
	err        error
}

// fakeProvider hands out order-1, order-2, ... and answers collects from a
// script per order. Orders beyond the scripts list use defaultScript; the
// last step of a script repeats.
type fakeProvider struct {
	mu            sync.Mutex
	begun         int
	beginErr      error
	scripts       [][]collectStep
	defaultScript []collectStep
	orderScripts  map[string][]collectStep
	calls         map[string]int
	beginIPs      []string
}

func newFakeProvider(defaultScript ...collectStep) *fakeProvider {
	if len(defaultScript) == 0 {
		defaultScript = []collectStep{{status: ProviderPending, hint: "outstandingTransaction"}}
	}
	return &fakeProvider{
		defaultScript: defaultScript,
		orderScripts:  make(map[string][]collectStep),
		calls:         make(map[string]int),
	}
}

func (p *fakeProvider) Begin(_ context.Context, endUserIP string) (*OrderHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.beginErr != nil {
		return nil, p.beginErr
	}
	script := p.defaultScript
	if p.begun < len(p.scripts) {
		script = p.scripts[p.begun]
	}
	p.begun++
	ref := fmt.Sprintf("order-%d", p.begun)
	p.orderScripts[ref] = script
	p.beginIPs = append(p.beginIPs, endUserIP)

	return &OrderHandle{
		OrderRef:       ref,
		AutoStartToken: "ast-" + ref,
		QRStartToken:   "qst-" + ref,
		QRStartSecret:  "secret-" + ref,
		Body:           []byte(`{"orderRef":"` + ref + `"}`),
	}, nil
}

func (p *fakeProvider) Collect(_ context.Context, orderRef string) (*ProviderCollect, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	script, ok := p.orderScripts[orderRef]
	if !ok {
		return nil, errors.New("unknown order")
	}
	idx := p.calls[orderRef]
	p.calls[orderRef]++
	if idx >= len(script) {
		idx = len(script) - 1
	}
	step := script[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &ProviderCollect{
		OrderRef:   orderRef,
		Status:     step.status,
		HintCode:   step.hint,
		Completion: step.completion,
	}, nil
}

func (p *fakeProvider) Calls(orderRef string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[orderRef]
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, string, SessionMetadata) (*IssuedSession, error) {
	return nil, errors.New("issuer down")
}

func (failingIssuer) Destroy(context.Context, string) error { return nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = testJWTSecret
	cfg.Order.RenderQRImage = false
	cfg.Metrics.Enabled = true
	return cfg
}

type testEngine struct {
	engine   *Engine
	provider *fakeProvider
	store    *MemoryStore
	clock    *fakeClock
	mr       *miniredis.Miniredis
}

func newTestEngine(t testing.TB, provider *fakeProvider, configure func(*Builder)) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := NewMemoryStore()
	clock := newFakeClock()

	builder := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithProvider(provider).
		WithUserDirectory(store).
		WithClock(clock.Now)
	if configure != nil {
		configure(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		engine:   engine,
		provider: provider,
		store:    store,
		clock:    clock,
		mr:       mr,
	}
}

func testCtx() context.Context {
	return WithClientIP(context.Background(), "192.0.2.10")
}

func completion(personalNumber string) *CompletionData {
	return &CompletionData{
		PersonalNumber: personalNumber,
		Name:           "Anna Andersson",
		GivenName:      "Anna",
		Surname:        "Andersson",
	}
}
