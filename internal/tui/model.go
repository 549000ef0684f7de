// Package tui is the terminal front end of a login attempt: QR code,
// loading spinner, remaining time bar and hint messages, driven by a
// goBankID.Poller.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/qrcode"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// viewMsg carries the poller state after a start, poll or restart.
type viewMsg struct {
	view goBankID.View
}

// pollMsg asks for the next poll.
type pollMsg struct{}

// Model is the bubbletea model of one login attempt.
type Model struct {
	poller   *goBankID.Poller
	interval time.Duration
	ctx      context.Context

	spinner  spinner.Model
	progress progress.Model
	view     goBankID.View
	started  bool
	quitting bool
	width    int
}

// New returns a model polling every interval. ctx bounds every provider
// call the poller makes.
func New(ctx context.Context, poller *goBankID.Poller, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle.UnsetMarginBottom()

	p := progress.New(progress.WithSolidFill(string(brandPrimary)))
	p.Width = 40

	if interval <= 0 {
		interval = time.Second
	}

	return Model{
		poller:   poller,
		interval: interval,
		ctx:      ctx,
		spinner:  s,
		progress: p,
	}
}

// Result is the final poller view once the program has exited.
func (m Model) Result() goBankID.View {
	return m.view
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start)
}

func (m Model) start() tea.Msg {
	view, _ := m.poller.Start(m.ctx)
	return viewMsg{view: view}
}

func (m Model) poll() tea.Msg {
	return viewMsg{view: m.poller.Tick(m.ctx)}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.poller.Cancel()
			m.view = m.poller.View()
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-8, 10), 60)
		return m, nil

	case viewMsg:
		m.started = true
		m.view = msg.view
		if m.view.Done || m.view.Cancelled {
			return m, tea.Quit
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })

	case pollMsg:
		return m, m.poll

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("BankID login"))
	b.WriteString("\n")

	if !m.started {
		b.WriteString(m.spinner.View() + " Starting identification...\n")
		return boxStyle.Render(b.String())
	}

	v := m.view
	switch {
	case v.Cancelled:
		b.WriteString(dimStyle.Render("Cancelled."))
		b.WriteString("\n")
		return boxStyle.Render(b.String())

	case v.Done:
		style := errorStyle
		if v.Status == goBankID.StatusComplete && v.Err == nil {
			style = successStyle
		}
		b.WriteString(style.Render(v.Message))
		b.WriteString("\n")
		if v.UserID != "" {
			b.WriteString(dimStyle.Render("user: " + v.UserID))
			b.WriteString("\n")
		}
		return boxStyle.Render(b.String())
	}

	b.WriteString(messageStyle.Render(v.Message))
	b.WriteString("\n\n")

	if v.Loading || v.QRPayload == "" {
		b.WriteString(m.spinner.View() + " Waiting for QR code...\n")
	} else if art, err := qrcode.Terminal(v.QRPayload); err == nil {
		b.WriteString(art)
	}

	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(v.TimeLeftPercent / 100))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%ds elapsed", v.ElapsedSeconds)))
	if v.Restarts > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" · restart %d", v.Restarts)))
	}
	b.WriteString("\n")

	if v.SoftError != nil {
		b.WriteString(warningStyle.Render("Connection problem, retrying..."))
		b.WriteString("\n")
	}
	if v.DeepLink != "" {
		b.WriteString(dimStyle.Render("Same device: " + v.DeepLink))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("q/esc to cancel"))

	return boxStyle.Render(b.String())
}
