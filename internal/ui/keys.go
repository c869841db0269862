package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application. Views with a text
// input only bind control, function and arrow keys so that letters reach the
// input.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding
	Push       key.Binding
	Reconnect  key.Binding

	// View switching
	ViewScan    key.Binding
	ViewJournal key.Binding
	ViewManual  key.Binding
	ViewMonitor key.Binding
	ViewLog     key.Binding

	// Scan
	Submit     key.Binding
	QtyUp      key.Binding
	QtyDown    key.Binding
	Discard    key.Binding
	AutoAccept key.Binding
	Location   key.Binding

	// Lists
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Journal
	DeleteOne key.Binding
	DeleteAll key.Binding
	Clear     key.Binding

	// Manual entry
	Supplier key.Binding
	Season   key.Binding

	// Monitor, log, blocked
	Refresh     key.Binding
	ToggleDebug key.Binding
	Retry       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Cycle views"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Cycle views (reverse)"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel / back to scan"),
		),
		Push: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "Send readings"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "Reconnect"),
		),

		ViewScan: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "Scan"),
		),
		ViewJournal: key.NewBinding(
			key.WithKeys("f3"),
			key.WithHelp("F3", "Readings"),
		),
		ViewManual: key.NewBinding(
			key.WithKeys("f4"),
			key.WithHelp("F4", "Manual entry"),
		),
		ViewMonitor: key.NewBinding(
			key.WithKeys("f5"),
			key.WithHelp("F5", "Monitor"),
		),
		ViewLog: key.NewBinding(
			key.WithKeys("f6"),
			key.WithHelp("F6", "Log"),
		),

		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Scan / confirm"),
		),
		QtyUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("up", "Quantity +1"),
		),
		QtyDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("down", "Quantity -1"),
		),
		Discard: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "Discard pending"),
		),
		AutoAccept: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "Toggle auto-accept"),
		),
		Location: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "Set location"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "Page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "Page down"),
		),

		DeleteOne: key.NewBinding(
			key.WithKeys("-", "d"),
			key.WithHelp("-/d", "Remove one unit"),
		),
		DeleteAll: key.NewBinding(
			key.WithKeys("D", "delete"),
			key.WithHelp("D", "Remove reading"),
		),
		Clear: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Clear all readings"),
		),

		Supplier: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "Cycle supplier"),
		),
		Season: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "Cycle season"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		ToggleDebug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Operations / debug log"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "Retry"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ViewScan, k.ViewJournal, k.ViewManual, k.ViewMonitor, k.ViewLog, k.Tab, k.Escape},
		{k.Submit, k.QtyUp, k.QtyDown, k.Discard, k.AutoAccept, k.Location},
		{k.Up, k.Down, k.DeleteOne, k.DeleteAll, k.Clear},
		{k.Supplier, k.Season},
		{k.Refresh, k.ToggleDebug},
		{k.Push, k.Reconnect, k.CycleTheme, k.Help, k.Quit},
	}
}
