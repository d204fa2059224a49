package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/notifications"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel"
)

// TickInterval is how often the model re-polls the panel.
const TickInterval = 100 * time.Millisecond

// ToastSource supplies notifications that are still on screen.
type ToastSource interface {
	Active(now time.Time) []notifications.Notification
}

type tickMsg time.Time

// Model is the bubbletea model hosting one panel.
type Model struct {
	ctx    context.Context
	panel  *panel.Panel
	toasts ToastSource
	clock  func() time.Time

	frame  panel.Frame
	cursor int
	status string
	width  int
}

// New creates a model. toasts may be nil.
func New(ctx context.Context, p *panel.Panel, toasts ToastSource, clock func() time.Time) Model {
	if clock == nil {
		clock = time.Now
	}
	m := Model{ctx: ctx, panel: p, toasts: toasts, clock: clock}
	m.frame = p.Frame(ctx, clock())
	return m
}

// Frame returns the last polled frame.
func (m Model) Frame() panel.Frame { return m.frame }

// Cursor returns the selected row index.
func (m Model) Cursor() int { return m.cursor }

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.frame.Rows)-1 {
			m.cursor++
		}
	case "a":
		m.respond(true)
	case "d":
		m.respond(false)
	case " ", "enter":
		if _, err := m.panel.Toggle(m.ctx); err != nil {
			m.status = err.Error()
		}
		m.refresh()
	}
	return m, nil
}

func (m *Model) respond(accepted bool) {
	if m.cursor >= len(m.frame.Rows) {
		return
	}
	row := m.frame.Rows[m.cursor]
	ok, err := m.panel.Respond(row.RequesterID, accepted)
	switch {
	case err != nil:
		m.status = err.Error()
	case !ok:
		m.status = "Request from " + row.DisplayName + " is no longer pending"
	default:
		m.status = ""
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.frame = m.panel.Frame(m.ctx, m.clock())
	if m.cursor >= len(m.frame.Rows) {
		m.cursor = max(0, len(m.frame.Rows)-1)
	}
}

func (m Model) View() string {
	var b strings.Builder
	if m.frame.Visible {
		r := Renderer{Selected: m.cursor}
		if m.width > 8 {
			r.BarWidth = min(defaultBarWidth, m.width-8)
		}
		b.WriteString(r.View(m.frame))
	} else {
		b.WriteString(hintStyle.Render("No pending pair requests"))
	}

	if m.status != "" {
		b.WriteString("\n\n" + denyStyle.Render(m.status))
	}
	if m.toasts != nil {
		if active := m.toasts.Active(m.clock()); len(active) > 0 {
			b.WriteString("\n\n" + Toast(active[0]))
		}
	}
	b.WriteString("\n\n" + hintStyle.Render("↑/↓ select • a accept • d deny • space toggle • q quit"))
	return b.String()
}

// Run hosts the model until the user quits or ctx is cancelled.
func Run(ctx context.Context, p *panel.Panel, toasts ToastSource, clock func() time.Time) error {
	prog := tea.NewProgram(New(ctx, p, toasts, clock), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}
