package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/oplog"
)

func (m Model) handleLogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleDebug):
		m.logDebug = !m.logDebug
		m.updateLogViewport()
		if m.logDebug {
			return m, m.readDebugLogCmd()
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.logViewport.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logViewport.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.logViewport.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.HalfViewDown()
	}
	return m, nil
}

// updateLogViewport sizes the viewport and reloads its content.
func (m *Model) updateLogViewport() {
	width, height := maxInt(m.width-2, 1), maxInt(m.contentHeight()-2, 1)
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(width, height)
	}
	m.logViewport.Width = width
	m.logViewport.Height = height
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))

	if m.logDebug {
		m.logViewport.SetContent(m.renderDebugLines())
		m.logViewport.GotoBottom()
		return
	}
	var entries []inventory.LogEntry
	if m.coord != nil {
		entries = m.coord.OpLog().Entries(0)
	}
	m.logViewport.SetContent(m.renderOpLog(entries))
	m.logViewport.GotoTop()
}

// renderOpLog renders operational entries, newest first.
func (m Model) renderOpLog(entries []inventory.LogEntry) string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	if len(entries) == 0 {
		return bg.Render("No operations logged yet", styles.FaintText)
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		kindStyle := styles.InfoText
		switch e.Type {
		case oplog.TypeSync:
			kindStyle = styles.SuccessText
		case oplog.TypeDelete:
			kindStyle = styles.WarningText
		case oplog.TypeError:
			kindStyle = styles.DangerText
		}
		line := bg.Render(e.Date+" "+e.Time, styles.FaintText) + bg.Space() +
			bg.Render(padRight(strings.ToUpper(e.Type), 6), kindStyle) + bg.Space() +
			bg.Render(e.Message, styles.Text)
		if e.Device != "" {
			line += bg.Space() + bg.Render("("+e.Device+")", styles.MutedText)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDebugLines() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	if len(m.debugLines) == 0 {
		return bg.Render("Debug log is empty", styles.FaintText)
	}
	lines := make([]string, len(m.debugLines))
	for i, line := range m.debugLines {
		style := styles.Text
		switch {
		case strings.Contains(line, " ERR "):
			style = styles.DangerText
		case strings.Contains(line, " WRN "):
			style = styles.WarningText
		case strings.Contains(line, " DBG "):
			style = styles.FaintText
		}
		lines[i] = bg.Render(line, style)
	}
	return strings.Join(lines, "\n")
}

// renderLog renders the operational or debug log.
func (m Model) renderLog() string {
	title := "Operations"
	if m.logDebug {
		title = "Debug log · " + truncateMiddle(m.logPath, 40)
	}
	return m.renderBox(title, m.logViewport.View(), m.width, m.contentHeight(), true)
}

// renderBlocked explains why the device cannot work.
func (m Model) renderBlocked() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	var b strings.Builder
	b.WriteString(bg.Render("Cannot work offline", styles.DangerText))
	b.WriteString("\n\n")
	b.WriteString(bg.Render("The server is unreachable and this device has no saved catalog or inventory session.", styles.Text))
	b.WriteString("\n")
	b.WriteString(bg.Render("Connect to the network and press r to retry.", styles.MutedText))
	if err := m.snapshot.LastError; err != nil {
		b.WriteString("\n\n")
		b.WriteString(bg.Render(truncate(err.Error(), maxInt(m.width-6, 20)), styles.FaintText))
	}
	return m.renderBox("Blocked", b.String(), m.width, m.contentHeight(), true)
}
