package goBankID

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goBankID/qrcode"
)

func TestCollectPendingThenExpires(t *testing.T) {
	provider := newFakeProvider(
		collectStep{status: ProviderPending, hint: HintUserSign},
		collectStep{status: ProviderPending, hint: HintUserSign},
		collectStep{err: errors.New("no response")},
	)
	te := newTestEngine(t, provider, nil)
	ctx := testCtx()

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}

	first, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("first Collect failed: %v", err)
	}
	if first.Status != StatusPending || first.MessageKey != MessageUserSign {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if want := qrcode.Payload("qst-order-1", "secret-order-1", 0); first.QRPayload != want {
		t.Fatalf("unexpected qr payload %q", first.QRPayload)
	}
	if first.TimeLeftPercent != 100 {
		t.Fatalf("expected full time left, got %v", first.TimeLeftPercent)
	}

	te.clock.Advance(29 * time.Second)
	second, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("second Collect failed: %v", err)
	}
	if second.ElapsedSeconds != 29 {
		t.Fatalf("expected elapsed 29, got %d", second.ElapsedSeconds)
	}
	if math.Abs(second.TimeLeftPercent-100.0/30.0) > 0.01 {
		t.Fatalf("expected ~3.33%% left, got %v", second.TimeLeftPercent)
	}
	if second.QRPayload == first.QRPayload || !strings.HasPrefix(second.QRPayload, "bankid.qst-order-1.29.") {
		t.Fatalf("expected rotated qr payload, got %q", second.QRPayload)
	}

	te.clock.Advance(2 * time.Second)
	third, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("third Collect failed: %v", err)
	}
	if third.Status != StatusExpired || third.MessageKey != MessageStatusExpired || third.TimeLeftPercent != 0 {
		t.Fatalf("expected expired result, got %+v", third)
	}

	calls := provider.Calls(begin.OrderRef)
	again, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Collect after expiry failed: %v", err)
	}
	if again.Status != StatusExpired {
		t.Fatalf("terminal status changed to %s", again.Status)
	}
	if provider.Calls(begin.OrderRef) != calls {
		t.Fatal("terminal order must not contact the provider")
	}
	if got := te.engine.MetricsSnapshot().Counters[MetricOrderExpired]; got != 1 {
		t.Fatalf("expected one expiry, got %d", got)
	}
}

func TestCollectExpiresWhenPendingPastWindow(t *testing.T) {
	te := newTestEngine(t, newFakeProvider(), nil)
	ctx := testCtx()

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}
	te.clock.Advance(30 * time.Second)

	res, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if res.Status != StatusExpired || res.TimeLeftPercent != 0 {
		t.Fatalf("expected expired at exactly 30s, got %+v", res)
	}
}

func TestCollectElapsedIsMonotonic(t *testing.T) {
	te := newTestEngine(t, newFakeProvider(), nil)
	ctx := testCtx()

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}

	te.clock.Advance(10 * time.Second)
	res, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if res.ElapsedSeconds != 10 {
		t.Fatalf("expected elapsed 10, got %d", res.ElapsedSeconds)
	}

	// Wall clock steps backwards.
	te.clock.Advance(-7 * time.Second)
	res, err = te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if res.ElapsedSeconds != 10 {
		t.Fatalf("elapsed went backwards: %d", res.ElapsedSeconds)
	}
}

func TestCollectProviderErrorIsSoftBeforeWindow(t *testing.T) {
	provider := newFakeProvider(
		collectStep{err: errors.New("connection reset")},
		collectStep{status: ProviderPending, hint: "started"},
	)
	te := newTestEngine(t, provider, nil)
	ctx := testCtx()

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}

	if _, err := te.engine.Collect(ctx, begin.OrderRef); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	order, err := te.engine.Order(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	if order.Status != StatusPending {
		t.Fatalf("provider error changed status to %s", order.Status)
	}

	res, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Collect after soft error failed: %v", err)
	}
	if res.Status != StatusPending || res.MessageKey != MessageQRInstructions {
		t.Fatalf("unexpected result after recovery: %+v", res)
	}
}

func TestCollectFailedHints(t *testing.T) {
	cases := []struct {
		name string
		hint string
		want MessageKey
	}{
		{name: "user cancel", hint: HintUserCancel, want: MessageUserCancel},
		{name: "certificate", hint: HintCertificateErr, want: MessageCertificateErr},
		{name: "start failed", hint: HintStartFailed, want: MessageStartFailed},
		{name: "unknown hint", hint: "expiredTransaction", want: MessageStatusFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			te := newTestEngine(t, newFakeProvider(collectStep{status: ProviderFailed, hint: tc.hint}), nil)
			ctx := testCtx()

			begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
			if err != nil {
				t.Fatalf("BeginIdentification failed: %v", err)
			}
			res, err := te.engine.Collect(ctx, begin.OrderRef)
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			if res.Status != StatusFailed || res.HintCode != tc.hint || res.MessageKey != tc.want {
				t.Fatalf("unexpected failed result: %+v", res)
			}
		})
	}
}

func TestCollectCompleteIssuesSessionOnce(t *testing.T) {
	provider := newFakeProvider(
		collectStep{status: ProviderPending, hint: HintUserSign},
		collectStep{status: ProviderComplete, completion: completion("199001011234")},
	)
	te := newTestEngine(t, provider, nil)
	ctx := testCtx()

	if _, err := te.engine.BindPersonalNumber(ctx, "42", "199001011234"); err != nil {
		t.Fatalf("BindPersonalNumber failed: %v", err)
	}

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{RedirectURL: "/account"})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}
	if _, err := te.engine.Collect(ctx, begin.OrderRef); err != nil {
		t.Fatalf("pending Collect failed: %v", err)
	}

	res, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("complete Collect failed: %v", err)
	}
	if res.Status != StatusComplete || res.UserID != "42" || res.MessageKey != MessageStatusComplete {
		t.Fatalf("unexpected complete result: %+v", res)
	}
	if res.Session == nil || res.Session.Token == "" {
		t.Fatal("expected a session to be issued")
	}
	if res.RedirectURL != "/account" {
		t.Fatalf("expected redirect /account, got %q", res.RedirectURL)
	}
	if res.Completion == nil || res.Completion.PersonalNumber != "199001011234" {
		t.Fatalf("expected completion data, got %+v", res.Completion)
	}

	info, err := te.engine.ValidateSession(ctx, res.Session.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if info.UserID != "42" || info.OrderRef != begin.OrderRef || info.SessionID != res.Session.SessionID {
		t.Fatalf("unexpected session info: %+v", info)
	}

	calls := provider.Calls(begin.OrderRef)
	again, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("repeat Collect failed: %v", err)
	}
	if again.Status != StatusComplete || again.Session != nil || again.RedirectURL != "" {
		t.Fatalf("repeat collect must not re-issue a session: %+v", again)
	}
	if provider.Calls(begin.OrderRef) != calls {
		t.Fatal("terminal order must not contact the provider")
	}

	snap := te.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionCreated] != 1 || snap.Counters[MetricOrderComplete] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
}

func TestCollectCompleteWithoutUser(t *testing.T) {
	te := newTestEngine(t, newFakeProvider(collectStep{status: ProviderComplete, completion: completion("198001019999")}), nil)
	ctx := testCtx()

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{RedirectURL: "/account"})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}
	res, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if res.Status != StatusCompleteNoUser || res.MessageKey != MessageStatusNoUser {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Session != nil || res.RedirectURL != "" || res.UserID != "" {
		t.Fatalf("no-user result must not carry a session: %+v", res)
	}
	if res.Completion == nil || res.Completion.GivenName != "Anna" {
		t.Fatalf("expected completion data for registration, got %+v", res.Completion)
	}
}

func TestCollectSessionCreationFailure(t *testing.T) {
	te := newTestEngine(t, newFakeProvider(collectStep{status: ProviderComplete, completion: completion("199001011234")}), func(b *Builder) {
		b.WithSessionIssuer(failingIssuer{})
	})
	ctx := testCtx()

	if _, err := te.engine.BindPersonalNumber(ctx, "42", "199001011234"); err != nil {
		t.Fatalf("BindPersonalNumber failed: %v", err)
	}
	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}

	res, err := te.engine.Collect(ctx, begin.OrderRef)
	if !errors.Is(err, ErrSessionCreationFailed) {
		t.Fatalf("expected ErrSessionCreationFailed, got %v", err)
	}
	if res == nil || res.Status != StatusComplete || res.Session != nil || res.MessageKey != MessageSessionIssueFail {
		t.Fatalf("unexpected partial result: %+v", res)
	}

	order, err := te.engine.Order(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	if order.Status != StatusComplete || order.UserID != "42" {
		t.Fatalf("order must stay complete: %+v", order)
	}

	// Later polls keep reporting the partial failure.
	again, err := te.engine.Collect(ctx, begin.OrderRef)
	if !errors.Is(err, ErrSessionCreationFailed) {
		t.Fatalf("expected ErrSessionCreationFailed on repeat collect, got %v", err)
	}
	if again == nil || again.Status != StatusComplete || again.Session != nil || again.MessageKey != MessageSessionIssueFail {
		t.Fatalf("unexpected repeat result: %+v", again)
	}
}

func TestPollerReportsSessionFailureAfterLostResponse(t *testing.T) {
	provider := newFakeProvider(collectStep{status: ProviderComplete, completion: completion("199001011234")})
	te := newTestEngine(t, provider, func(b *Builder) {
		b.WithSessionIssuer(failingIssuer{})
	})
	ctx := testCtx()
	if _, err := te.engine.BindPersonalNumber(ctx, "42", "199001011234"); err != nil {
		t.Fatalf("BindPersonalNumber failed: %v", err)
	}

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}
	// The first answer never reaches the poller.
	if _, err := te.engine.Collect(ctx, begin.OrderRef); !errors.Is(err, ErrSessionCreationFailed) {
		t.Fatalf("expected ErrSessionCreationFailed, got %v", err)
	}

	p := NewPoller(te.engine, DefaultPollerConfig())
	p.mu.Lock()
	p.applyBegin(begin)
	p.mu.Unlock()

	view := p.Tick(ctx)
	if !view.Done || view.Status != StatusComplete || !errors.Is(view.Err, ErrSessionCreationFailed) {
		t.Fatalf("expected session failure to reach the poller, got %+v", view)
	}
	if view.Session != nil || view.MessageKey != MessageSessionIssueFail {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestCollectSupersededOrder(t *testing.T) {
	te := newTestEngine(t, newFakeProvider(), nil)
	ctx := testCtx()

	first, err := te.engine.BeginIdentification(ctx, BeginRequest{AttemptID: "attempt-1"})
	if err != nil {
		t.Fatalf("first begin failed: %v", err)
	}
	second, err := te.engine.BeginIdentification(ctx, BeginRequest{AttemptID: "attempt-1"})
	if err != nil {
		t.Fatalf("second begin failed: %v", err)
	}

	if _, err := te.engine.Collect(ctx, first.OrderRef); !errors.Is(err, ErrOrderSuperseded) {
		t.Fatalf("expected ErrOrderSuperseded, got %v", err)
	}
	if te.provider.Calls(first.OrderRef) != 0 {
		t.Fatal("superseded order must not be polled at the provider")
	}
	if _, err := te.engine.Collect(ctx, second.OrderRef); err != nil {
		t.Fatalf("active order Collect failed: %v", err)
	}
}

func TestCollectUnknownOrder(t *testing.T) {
	te := newTestEngine(t, newFakeProvider(), nil)

	if _, err := te.engine.Collect(testCtx(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := te.engine.Collect(testCtx(), ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for empty ref, got %v", err)
	}
}

func TestCollectRendersQRImage(t *testing.T) {
	te := newTestEngine(t, newFakeProvider(), func(b *Builder) {
		cfg := testConfig()
		cfg.Order.RenderQRImage = true
		cfg.Order.QRImageSize = 128
		b.WithConfig(cfg)
	})
	ctx := testCtx()

	begin, err := te.engine.BeginIdentification(ctx, BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}
	res, err := te.engine.Collect(ctx, begin.OrderRef)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if !strings.HasPrefix(res.QRImage, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %.40q", res.QRImage)
	}
}

func TestCollectTerminalStatusIsSticky(t *testing.T) {
	provider := newFakeProvider(
		collectStep{status: ProviderFailed, hint: HintUserCancel},
		collectStep{status: ProviderComplete, completion: completion("199001011234")},
	)
	te := newTestEngine(t, provider, nil)
	ctx := context.Background()

	begin, err := te.engine.BeginIdentification(WithClientIP(ctx, "192.0.2.1"), BeginRequest{})
	if err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		res, err := te.engine.Collect(ctx, begin.OrderRef)
		if err != nil {
			t.Fatalf("Collect %d failed: %v", i, err)
		}
		if res.Status != StatusFailed || res.HintCode != HintUserCancel {
			t.Fatalf("terminal status changed on collect %d: %+v", i, res)
		}
	}
}
