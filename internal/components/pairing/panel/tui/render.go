// Package tui renders the pair request section in a terminal and hosts it
// as a bubbletea program.
package tui

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/notifications"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel"
)

const defaultBarWidth = 30

var (
	colorBlue   = lipgloss.Color("#7AA2F7")
	colorPurple = lipgloss.Color("#BB9AF7")
	colorDimRed = lipgloss.Color("#B43C3C")
	colorMuted  = lipgloss.Color("#565F89")
	colorText   = lipgloss.Color("#C0CAF5")
	colorWarn   = lipgloss.Color("#E0AF68")

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	iconStyle     = lipgloss.NewStyle().Foreground(colorBlue)
	nameStyle     = lipgloss.NewStyle().Foreground(colorText)
	selectedStyle = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	acceptStyle   = lipgloss.NewStyle().Foreground(colorPurple)
	denyStyle     = lipgloss.NewStyle().Foreground(colorDimRed)
	trackStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	hintStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	toastInfo     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBlue).Padding(0, 1)
	toastWarn     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorWarn).Padding(0, 1)
)

// Renderer draws frames as styled terminal text.
type Renderer struct {
	// Selected is the highlighted row index, -1 for none.
	Selected int
	// BarWidth is the width of the remaining-time bar in cells.
	BarWidth int
}

// Render implements panel.Renderer.
func (r Renderer) Render(w io.Writer, f panel.Frame) error {
	_, err := io.WriteString(w, r.View(f))
	return err
}

// View returns the frame as a string, one header line plus two lines per row.
func (r Renderer) View(f panel.Frame) string {
	width := r.BarWidth
	if width <= 0 {
		width = defaultBarWidth
	}

	var b strings.Builder
	caret := "▸"
	if f.Open {
		caret = "▾"
	}
	b.WriteString(caret + " " + iconStyle.Render("+") + " " + headerStyle.Render(f.Title))

	for i, row := range f.Rows {
		b.WriteString("\n")
		name := nameStyle.Render(row.DisplayName)
		marker := "  "
		if i == r.Selected {
			name = selectedStyle.Render(row.DisplayName)
			marker = selectedStyle.Render("> ")
		}
		fmt.Fprintf(&b, "%s%s %s  %s %s  %s",
			marker,
			iconStyle.Render("+"),
			name,
			acceptStyle.Render("[a]ccept"),
			denyStyle.Render("[d]eny"),
			hintStyle.Render(formatRemaining(row.Remaining)),
		)
		b.WriteString("\n    " + Bar(row.RemainingFraction, width, lipgloss.Color(row.Color)))
	}
	return b.String()
}

// Bar draws a depleting bar of width cells filled to fraction.
func Bar(fraction float64, width int, fill lipgloss.Color) string {
	fraction = math.Max(0, math.Min(1, fraction))
	filled := int(math.Round(fraction * float64(width)))
	return lipgloss.NewStyle().Foreground(fill).Render(strings.Repeat("█", filled)) +
		trackStyle.Render(strings.Repeat("░", width-filled))
}

// Toast renders a notification box.
func Toast(n notifications.Notification) string {
	style := toastInfo
	if n.Type != notifications.TypeInfo {
		style = toastWarn
	}
	return style.Render(headerStyle.Render(n.Title) + "\n" + n.Message)
}

func formatRemaining(d time.Duration) string {
	return fmt.Sprintf("%2ds", int(math.Ceil(d.Seconds())))
}

var _ panel.Renderer = Renderer{}
