package goBankID

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrPollerNotStarted is returned by Run when Start failed or was never called
// and no order could be begun.
var ErrPollerNotStarted = errors.New("poller has no active order")

// localExpiryGrace is how long past the validity window failed polls keep
// the order pending before the poller expires it on its own.
const localExpiryGrace = 5 * time.Second

// PollerConfig configures one login attempt's polling loop.
type PollerConfig struct {
	// Interval between a processed poll and the next one.
	Interval time.Duration
	// ValidityWindow is used for the remaining time display. When polls keep
	// failing past the window, the attempt expires locally.
	ValidityWindow time.Duration
	// MaxStartFailedRestarts caps automatic restarts after startFailed. Zero
	// disables restarts and negative means unlimited.
	MaxStartFailedRestarts int
	DeepLinkBase           string

	ClientIP    string
	AttemptID   string
	RedirectURL string

	Logger *slog.Logger
	// Messages translates message keys. Defaults to DefaultMessage.
	Messages func(MessageKey) string
}

// DefaultPollerConfig mirrors the engine defaults: one poll per second, a 30
// second window and three startFailed restarts.
func DefaultPollerConfig() PollerConfig {
	order := defaultConfig().Order
	return PollerConfig{
		Interval:               order.PollInterval,
		ValidityWindow:         order.ValidityWindow,
		MaxStartFailedRestarts: order.MaxStartFailedRestarts,
		DeepLinkBase:           order.DeepLinkBase,
	}
}

// View is the display state of a login attempt after the latest poll.
type View struct {
	Status          OrderStatus
	OrderRef        string
	AttemptID       string
	DeepLink        string
	HintCode        string
	MessageKey      MessageKey
	Message         string
	QRPayload       string
	QRImage         string
	Loading         bool
	ElapsedSeconds  int
	TimeLeftPercent float64
	Restarts        int

	// SoftError is set when the latest poll failed. Polling continues.
	SoftError error

	RedirectURL string
	Session     *IssuedSession
	UserID      string
	Completion  *CompletionData

	Done      bool
	Cancelled bool
	// Err explains a terminal state other than complete or complete_no_user.
	Err error
}

// Poller drives repeated collects for one login attempt. Each poll carries
// only the order reference; the next poll is scheduled after the previous
// one has been processed, so polls never overlap. Cancel and View may be
// called from any goroutine.
type Poller struct {
	svc OrderService
	cfg PollerConfig

	mu        sync.Mutex
	view      View
	orderRef  string
	attemptID string
	restarts  int
	inFlight  bool
	startedAt time.Time
	now       func() time.Time
	stop      chan struct{}
	stopOnce  *sync.Once
}

// NewPoller creates a poller over svc. Zero Interval and ValidityWindow take
// the defaults.
func NewPoller(svc OrderService, cfg PollerConfig) *Poller {
	defaults := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.ValidityWindow <= 0 {
		cfg.ValidityWindow = defaults.ValidityWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Messages == nil {
		cfg.Messages = DefaultMessage
	}

	return &Poller{
		svc:       svc,
		cfg:       cfg,
		attemptID: cfg.AttemptID,
		now:       time.Now,
		stop:      make(chan struct{}),
		stopOnce:  &sync.Once{},
	}
}

// NewPoller returns a Poller driving this engine in process with the
// engine's order settings.
func (e *Engine) NewPoller(req BeginRequest) *Poller {
	order := e.Config().Order
	return NewPoller(e, PollerConfig{
		Interval:               order.PollInterval,
		ValidityWindow:         order.ValidityWindow,
		MaxStartFailedRestarts: order.MaxStartFailedRestarts,
		DeepLinkBase:           order.DeepLinkBase,
		ClientIP:               req.ClientIP,
		AttemptID:              req.AttemptID,
		RedirectURL:            req.RedirectURL,
		Logger:                 e.logger,
	})
}

// View returns the current display state.
func (p *Poller) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// OrderRef returns the active order reference, or "" once the attempt has
// ended.
func (p *Poller) OrderRef() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orderRef
}

// Start begins the first order. A cancelled or finished Poller may be
// started again; it keeps its attempt id.
func (p *Poller) Start(ctx context.Context) (View, error) {
	p.mu.Lock()
	p.view = View{}
	p.orderRef = ""
	p.restarts = 0
	p.stop = make(chan struct{})
	p.stopOnce = &sync.Once{}
	p.mu.Unlock()

	res, err := p.begin(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.view = View{
			Status:     StatusFailed,
			AttemptID:  p.attemptID,
			MessageKey: MessageSomethingWrong,
			Message:    p.cfg.Messages(MessageSomethingWrong),
			Done:       true,
			Err:        err,
		}
		return p.view, err
	}
	p.applyBegin(res)
	return p.view, nil
}

func (p *Poller) begin(ctx context.Context) (*BeginResult, error) {
	p.mu.Lock()
	req := BeginRequest{
		ClientIP:    p.cfg.ClientIP,
		AttemptID:   p.attemptID,
		RedirectURL: p.cfg.RedirectURL,
	}
	p.mu.Unlock()

	res, err := p.svc.BeginIdentification(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil || res.OrderRef == "" {
		return nil, fmt.Errorf("%w: empty begin result", ErrProviderUnavailable)
	}
	return res, nil
}

// applyBegin installs a fresh order. Caller holds p.mu.
func (p *Poller) applyBegin(res *BeginResult) {
	if res.AttemptID != "" {
		p.attemptID = res.AttemptID
	}
	deepLink := res.DeepLink
	if deepLink == "" {
		deepLink = DeepLink(p.cfg.DeepLinkBase, res.AutoStartToken)
	}

	p.orderRef = res.OrderRef
	p.startedAt = p.now()
	p.view = View{
		Status:          StatusPending,
		OrderRef:        res.OrderRef,
		AttemptID:       p.attemptID,
		DeepLink:        deepLink,
		MessageKey:      MessageQRInstructions,
		Message:         p.cfg.Messages(MessageQRInstructions),
		Loading:         true,
		TimeLeftPercent: 100,
		Restarts:        p.restarts,
	}
}

// Tick performs one poll and returns the updated view. It is a no-op once
// the attempt has ended or while another poll is in flight.
func (p *Poller) Tick(ctx context.Context) View {
	p.mu.Lock()
	if p.orderRef == "" || p.view.Done || p.inFlight {
		view := p.view
		p.mu.Unlock()
		return view
	}
	orderRef := p.orderRef
	p.inFlight = true
	p.mu.Unlock()

	res, err := p.svc.Collect(ctx, orderRef)

	p.mu.Lock()
	p.inFlight = false
	if p.orderRef != orderRef {
		// Cancelled while the poll was in flight.
		view := p.view
		p.mu.Unlock()
		return view
	}

	restart := p.apply(res, err)
	if !restart {
		view := p.view
		p.mu.Unlock()
		return view
	}
	p.inFlight = true
	p.mu.Unlock()

	return p.restart(ctx, orderRef)
}

// apply folds one collect outcome into the view and reports whether the
// order must be restarted. Caller holds p.mu.
func (p *Poller) apply(res *CollectResult, err error) bool {
	if err == nil && res == nil {
		err = errors.New("empty collect result")
	}
	if err != nil && !(errors.Is(err, ErrSessionCreationFailed) && res != nil) {
		switch {
		case errors.Is(err, ErrOrderNotFound),
			errors.Is(err, ErrOrderSuperseded),
			errors.Is(err, ErrEngineNotReady):
			p.finish(StatusFailed, MessageSomethingWrong, err)
		case p.now().Sub(p.startedAt) >= p.cfg.ValidityWindow+localExpiryGrace:
			p.cfg.Logger.Warn("bankid order expired without a final poll",
				slog.String("order_ref", p.orderRef),
				slog.Any("error", err),
			)
			p.view.SoftError = nil
			p.view.TimeLeftPercent = 0
			p.finish(StatusExpired, MessageStatusExpired, ErrOrderExpired)
		default:
			p.view.SoftError = fmt.Errorf("%w: %v", ErrTransientPoll, err)
			p.cfg.Logger.Warn("bankid poll failed", slog.String("order_ref", p.orderRef), slog.Any("error", err))
		}
		return false
	}

	p.view.SoftError = nil
	p.view.HintCode = res.HintCode
	if res.ElapsedSeconds > p.view.ElapsedSeconds {
		p.view.ElapsedSeconds = res.ElapsedSeconds
	}
	p.view.TimeLeftPercent = TimeLeftPercent(p.view.ElapsedSeconds, p.cfg.ValidityWindow)

	switch res.Status {
	case StatusPending:
		p.setMessage(res.MessageKey)
		if res.QRPayload != "" {
			p.view.QRPayload = res.QRPayload
			if res.QRImage != "" {
				p.view.QRImage = res.QRImage
			}
			p.view.Loading = false
		}
		return false

	case StatusFailed:
		if res.HintCode == HintStartFailed {
			if p.cfg.MaxStartFailedRestarts < 0 || p.restarts < p.cfg.MaxStartFailedRestarts {
				p.setMessage(MessageStartFailed)
				return true
			}
			p.finish(StatusFailed, MessageStartFailed, ErrStartFailed)
			return false
		}
		p.finish(StatusFailed, res.MessageKey, ErrOrderFailed)

	case StatusExpired:
		p.view.TimeLeftPercent = 0
		p.finish(StatusExpired, MessageStatusExpired, ErrOrderExpired)

	case StatusComplete:
		p.view.UserID = res.UserID
		if err != nil {
			p.finish(StatusComplete, MessageSessionIssueFail, err)
			return false
		}
		p.view.Session = res.Session
		p.view.RedirectURL = res.RedirectURL
		p.finish(StatusComplete, res.MessageKey, nil)

	case StatusCompleteNoUser:
		p.view.Completion = res.Completion
		p.finish(StatusCompleteNoUser, MessageStatusNoUser, nil)

	default:
		p.view.SoftError = fmt.Errorf("%w: unexpected status %q", ErrTransientPoll, res.Status)
	}
	return false
}

// restart replaces a startFailed order with a new one in the same attempt.
// The polling loop keeps its cadence.
func (p *Poller) restart(ctx context.Context, failedRef string) View {
	res, err := p.begin(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if p.orderRef != failedRef {
		return p.view
	}
	p.restarts++
	if err != nil {
		p.finish(StatusFailed, MessageSomethingWrong, err)
		return p.view
	}

	p.cfg.Logger.Info("bankid order restarted after startFailed",
		slog.String("previous_order_ref", failedRef),
		slog.String("order_ref", res.OrderRef),
		slog.Int("restarts", p.restarts),
	)
	p.applyBegin(res)
	p.view.MessageKey = MessageStartFailed
	p.view.Message = p.cfg.Messages(MessageStartFailed)
	return p.view
}

// finish ends the attempt. Caller holds p.mu.
func (p *Poller) finish(status OrderStatus, key MessageKey, err error) {
	p.view.Status = status
	p.setMessage(key)
	p.view.Loading = false
	p.view.Done = true
	p.view.Err = err
	p.orderRef = ""
}

func (p *Poller) setMessage(key MessageKey) {
	if key == "" {
		key = MessageQRInstructions
	}
	p.view.MessageKey = key
	p.view.Message = p.cfg.Messages(key)
}

// Run polls every Interval until the attempt ends, ctx is done or Cancel is
// called. onUpdate, when set, receives every view before the next poll is
// scheduled. Run starts an order first if none is active.
//
// Run returns nil on complete, complete_no_user and Cancel, the terminal
// error otherwise.
func (p *Poller) Run(ctx context.Context, onUpdate func(View)) error {
	p.mu.Lock()
	active := p.orderRef != ""
	p.mu.Unlock()

	if !active {
		view, err := p.Start(ctx)
		if onUpdate != nil {
			onUpdate(view)
		}
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	stop := p.stop
	interval := p.cfg.Interval
	p.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-timer.C:
		}

		view := p.Tick(ctx)
		if onUpdate != nil {
			onUpdate(view)
		}
		if view.Cancelled {
			return nil
		}
		if view.Done {
			return view.Err
		}
		timer.Reset(interval)
	}
}

// Cancel stops polling and resets the display state. The provider is not
// notified. Cancel is safe in any state and may be called repeatedly; once
// the attempt has ended it leaves the final view untouched.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.view.Done {
		return
	}
	p.orderRef = ""
	p.view = View{
		AttemptID: p.attemptID,
		Cancelled: true,
	}
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}
