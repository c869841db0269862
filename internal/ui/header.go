package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/state"
)

// renderHeader renders the status bar: phase, session, catalog, readings and
// the liveness indicator.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	snap := m.snapshot

	parts := []string{
		bg.Render("invbf", styles.Logo),
		styles.StatusStyle(snap.Phase.String()).Render(strings.ToUpper(snap.Phase.String())),
	}

	if snap.HasSession {
		name := truncate(snap.Session.Name, ternaryInt(compact, 16, 32))
		parts = append(parts, bg.Render(fmt.Sprintf("#%d", snap.Session.ID), styles.MutedText)+bg.Space()+bg.Render(name, styles.Text))
	} else {
		parts = append(parts, bg.Render("No inventory", styles.MutedText))
	}

	catalog := bg.Render("Catalog:", styles.MutedText) + bg.Space() + bg.Render(fmt.Sprintf("%d", snap.CatalogSize), styles.Text)
	if !compact && snap.CatalogSource != "" {
		catalog += bg.Space() + bg.Render("("+snap.CatalogSource+")", styles.FaintText)
	}
	if snap.CatalogStale {
		catalog += bg.Space() + bg.Render("STALE", styles.WarningText.Bold(true))
	}
	parts = append(parts, catalog)

	readings := bg.Render("Units:", styles.MutedText) + bg.Space() + bg.Render(fmt.Sprintf("%d", m.totals.Quantity), styles.Text)
	if m.sync.Pending {
		readings += bg.Space() + bg.Render("UNSENT", styles.WarningText.Bold(true))
	} else if !m.sync.LastSync.IsZero() {
		readings += bg.Space() + bg.Render("sent "+m.sync.LastSync.Format("15:04"), styles.FaintText)
	}
	parts = append(parts, readings)

	if m.coord != nil && !compact {
		parts = append(parts, bg.Render("Device:", styles.MutedText)+bg.Space()+bg.Render(m.coord.Device(), styles.Text))
	}

	switch {
	case snap.LastProbe.IsZero():
	case snap.IsOffline():
		parts = append(parts, bg.Render("● "+classifyConnectionError(snap.LastError), styles.DangerText))
	case snap.Online:
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	default:
		parts = append(parts, bg.Render("● UNSTABLE", styles.WarningText))
	}

	if m.busy != "" {
		parts = append(parts, bg.Render(m.busy, styles.WarningText.Bold(true)))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

// classifyConnectionError returns a short description of the connection error.
func classifyConnectionError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	var netErr *inventory.NetworkError
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "TIMEOUT"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"):
		return "TIMEOUT"
	default:
		return "OFFLINE"
	}
}

// renderCommandBar renders the key hints for the current view plus any flash
// message.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch {
	case m.snapshot.Phase == state.PhaseBlocked:
		commands = []cmd{{"r", "Retry"}, {"ctrl+c", "Quit"}}
	case m.view == ViewJournal:
		commands = []cmd{{"j/k", "Navigate"}, {"-", "One unit"}, {"D", "Remove"}, {"C", "Clear"}, {"ctrl+s", "Send"}}
	case m.view == ViewManual:
		commands = []cmd{{"↑/↓", "Select"}, {"enter", "Add"}, {"ctrl+f", "Supplier"}, {"ctrl+e", "Season"}}
	case m.view == ViewMonitor:
		commands = []cmd{{"r", "Refresh"}}
	case m.view == ViewLog:
		label := "Debug log"
		if m.logDebug {
			label = "Operations"
		}
		commands = []cmd{{"d", label}, {"j/k", "Scroll"}}
	default:
		auto := "Auto: off"
		if m.scanner != nil && m.scanner.AutoAccept() {
			auto = "Auto: on"
		}
		commands = []cmd{{"enter", "Confirm"}, {"↑/↓", "Qty"}, {"ctrl+x", "Discard"}, {"ctrl+a", auto}, {"ctrl+l", "Location"}, {"ctrl+s", "Send"}}
	}
	commands = append(commands, cmd{"F2-F6", m.view.String()}, cmd{"F1", "More"})

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	if m.flash != "" {
		style := styles.SuccessText
		if m.flashErr {
			style = styles.DangerText
		}
		segments = append(segments, bg.Render(truncate(m.flash, maxInt(m.width/2, 20)), style))
	} else if notice := m.snapshot.Notice; notice != "" {
		segments = append(segments, bg.Render(truncate(notice, maxInt(m.width/2, 20)), styles.WarningText))
	}

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}

func ternaryInt(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}
