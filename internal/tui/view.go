package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/icco/polykeys/internal/keymap"
)

// Screen layout. The keyboard sits at a fixed line so mouse clicks can be
// mapped back to keys.
const (
	keyboardTop  = 5
	keyboardRows = 2
	keyWidth     = 4 // three colored cells and a gap
	meterWidth   = 40
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	peakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	logStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	logHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))

	whiteKeyStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#FFFFFF")).Foreground(lipgloss.Color("#000000"))
	blackKeyStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#000000")).Foreground(lipgloss.Color("#FFFFFF"))
	activeWhite    = lipgloss.NewStyle().Background(lipgloss.Color("#00FF00")).Foreground(lipgloss.Color("#000000"))
	activeBlack    = lipgloss.NewStyle().Background(lipgloss.Color("#00AA00")).Foreground(lipgloss.Color("#FFFFFF"))
	meterFillStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	meterRestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title) + "\n\n")

	b.WriteString(subtitleStyle.Render("Status: ") + statusStyle.Render(m.engine.Status()) + "\n")
	b.WriteString(fmt.Sprintf("%s %-8s  %s %-2d  %s %d\n",
		subtitleStyle.Render("Waveform:"), m.engine.Waveform(),
		subtitleStyle.Render("Polyphony:"), m.engine.Polyphony(),
		subtitleStyle.Render("Voices:"), m.engine.SoundingVoices()))
	b.WriteString("\n")

	b.WriteString(m.renderKeyboard() + "\n\n")
	b.WriteString(renderMeter(m.peak) + "\n")
	b.WriteString(m.renderSwatch() + "\n")

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}

	if len(m.messageHistory) > 0 {
		b.WriteString("\n" + subtitleStyle.Render(fmt.Sprintf("Message Log: [%d total]", m.messageCount)) + "\n")
		// Show up to 10 most recent messages
		displayCount := min(len(m.messageHistory), 10)
		for i := 0; i < displayCount; i++ {
			msg := m.messageHistory[i]
			if i == 0 {
				b.WriteString("  " + logHighlightStyle.Render("▶ "+msg) + "\n")
			} else {
				b.WriteString("  " + logStyle.Render("  "+msg) + "\n")
			}
		}
	}

	b.WriteString("\n" + helpStyle.Render("keys: play • tab/shift+tab: waveform • ↑/↓: polyphony • space: all notes off • esc: quit"))

	return b.String()
}

// renderKeyboard draws the keys as two rows of cells, the key cap on the
// first. Held keys are highlighted.
func (m *Model) renderKeyboard() string {
	var rows [keyboardRows]strings.Builder
	for i, id := range m.table.Keys() {
		style := whiteKeyStyle
		black := m.table.IsBlack(id)
		active := m.engine.IsKeyActive(id)
		switch {
		case black && active:
			style = activeBlack
		case black:
			style = blackKeyStyle
		case active:
			style = activeWhite
		}

		if i > 0 {
			for r := range rows {
				rows[r].WriteString(" ")
			}
		}
		rows[0].WriteString(style.Render(" " + keymap.Label(id) + " "))
		for r := 1; r < keyboardRows; r++ {
			rows[r].WriteString(style.Render("   "))
		}
	}

	lines := make([]string, keyboardRows)
	for r := range rows {
		lines[r] = rows[r].String()
	}
	return strings.Join(lines, "\n")
}

// MeterPercent is the meter bar fill for peak, clamped to [0, 100].
func MeterPercent(peak float64) float64 {
	return math.Min(100, math.Max(0, peak*100))
}

func renderMeter(peak float64) string {
	percent := MeterPercent(peak)
	filled := int(math.Round(percent / 100 * meterWidth))
	bar := meterFillStyle.Render(strings.Repeat("█", filled)) +
		meterRestStyle.Render(strings.Repeat("░", meterWidth-filled))
	return fmt.Sprintf("%s %s %s %s",
		subtitleStyle.Render("Peak"), bar,
		peakStyle.Render(fmt.Sprintf("%.3f", peak)),
		subtitleStyle.Render(fmt.Sprintf("(%.1f%%)", percent)))
}

// BackgroundColor is the hex color shown for a note of freq Hz.
func BackgroundColor(freq float64) string {
	return colorful.Hsl(keymap.Hue(freq), 0.70, 0.35).Hex()
}

func (m *Model) renderSwatch() string {
	width := keymap.NumKeys*keyWidth - 1
	if m.lastFreq == 0 {
		return subtitleStyle.Render(strings.Repeat("·", width))
	}
	style := lipgloss.NewStyle().
		Background(lipgloss.Color(BackgroundColor(m.lastFreq))).
		Foreground(lipgloss.Color("#FAFAFA")).
		Width(width)
	return style.Render(fmt.Sprintf(" %s  hue %.0f°", m.lastNote, keymap.Hue(m.lastFreq)))
}
