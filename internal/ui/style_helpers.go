package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BgStyle renders text segments that share one background color.
// Reset codes between styled segments would otherwise leave gaps in the
// background; see https://github.com/charmbracelet/lipgloss/discussions/78.
type BgStyle struct {
	bg    lipgloss.Color
	space string // cached styled space
}

// NewBgStyle creates a new background style helper for the given color.
func NewBgStyle(bgColor string) BgStyle {
	bg := lipgloss.Color(bgColor)
	return BgStyle{
		bg:    bg,
		space: lipgloss.NewStyle().Background(bg).Render(" "),
	}
}

// Render renders text with a style, ensuring ALL characters including spaces
// have the background color applied.
func (b BgStyle) Render(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}

	// If no spaces, simple render with background
	if !strings.Contains(text, " ") {
		return style.Background(b.bg).Render(text)
	}

	// Split on spaces, style each word, rejoin with styled spaces
	wordStyle := style.Background(b.bg)
	words := strings.Split(text, " ")
	result := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			result = append(result, wordStyle.Render(w))
		} else {
			// Preserve multiple consecutive spaces
			result = append(result, "")
		}
	}
	return strings.Join(result, b.space)
}

// Space returns a single styled space.
func (b BgStyle) Space() string {
	return b.space
}

// Spaces returns n styled spaces.
func (b BgStyle) Spaces(n int) string {
	return lipgloss.NewStyle().Background(b.bg).Render(strings.Repeat(" ", n))
}

// Sep returns a styled separator string.
func (b BgStyle) Sep(sep string) string {
	return lipgloss.NewStyle().Background(b.bg).Render(sep)
}

// Join joins parts with a styled separator.
func (b BgStyle) Join(parts []string, sep string) string {
	return strings.Join(parts, b.Sep(sep))
}

// Color returns the background color.
func (b BgStyle) Color() lipgloss.Color {
	return b.bg
}

// FillLine pads rendered content to fill the specified width with the background color.
// Use this to ensure lines fill the full viewport width.
func (b BgStyle) FillLine(content string, width int) string {
	return lipgloss.NewStyle().Background(b.bg).Width(width).Render(content)
}

// renderBox draws content inside a rounded border with the title set into the
// top edge. Content lines are clipped or padded to fill the box.
func (m Model) renderBox(title, content string, width, height int, focused bool) string {
	if width < 4 || height < 3 {
		return content
	}
	border := m.theme.Border
	bgColor := m.theme.Surface
	if focused {
		border = m.theme.BorderFocus
		bgColor = m.theme.FocusBg
	}
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(border)).Background(lipgloss.Color(m.theme.Background))
	bg := NewBgStyle(bgColor)
	inner := width - 2

	label := ""
	if title != "" {
		label = " " + truncate(title, inner-4) + " "
	}
	fill := inner - 1 - lipgloss.Width(label)
	if fill < 0 {
		fill = 0
	}
	top := borderStyle.Render("╭─") +
		lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent)).Background(lipgloss.Color(m.theme.Background)).Bold(true).Render(label) +
		borderStyle.Render(strings.Repeat("─", fill)+"╮")

	lines := strings.Split(content, "\n")
	rows := height - 2
	if len(lines) > rows {
		lines = lines[:rows]
	}
	var b strings.Builder
	b.WriteString(top)
	side := borderStyle.Render("│")
	for i := 0; i < rows; i++ {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		b.WriteString("\n")
		b.WriteString(side)
		b.WriteString(bg.FillLine(lipgloss.NewStyle().MaxWidth(inner).Render(line), inner))
		b.WriteString(side)
	}
	b.WriteString("\n")
	b.WriteString(borderStyle.Render("╰" + strings.Repeat("─", inner) + "╯"))
	return b.String()
}

// placeModal centers content in a bordered box over the whole screen.
func placeModal(m Model, content string) string {
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(minInt(56, maxInt(m.width-4, 20)))
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(content),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
