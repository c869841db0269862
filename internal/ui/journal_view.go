package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// handleJournalKey processes keyboard input for the readings view.
func (m Model) handleJournalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.records)
	switch {
	case key.Matches(msg, m.keys.Up):
		m.journalSel = clamp(m.journalSel-1, n)
	case key.Matches(msg, m.keys.Down):
		m.journalSel = clamp(m.journalSel+1, n)
	case key.Matches(msg, m.keys.PageUp):
		m.journalSel = clamp(m.journalSel-m.listRows(), n)
	case key.Matches(msg, m.keys.PageDown):
		m.journalSel = clamp(m.journalSel+m.listRows(), n)
	case key.Matches(msg, m.keys.DeleteOne):
		m.deleteReading(1)
	case key.Matches(msg, m.keys.DeleteAll):
		if m.journalSel < n {
			m.deleteReading(m.records[m.journalSel].Quantity)
		}
	case key.Matches(msg, m.keys.Clear):
		if n > 0 {
			m.openPrompt(promptClear, "")
		}
	}
	return m, nil
}

func (m *Model) deleteReading(units int) {
	if m.coord == nil || m.journalSel >= len(m.records) {
		return
	}
	if err := m.coord.Delete(m.journalSel, units); err != nil {
		m.setFlash(err.Error(), true)
	}
	m.refreshData()
}

// listRows is the number of table rows that fit in a boxed view.
func (m Model) listRows() int {
	return maxInt(m.contentHeight()-6, 1)
}

// visibleWindow returns the [start, end) slice of n rows that keeps sel in
// view when only rows fit.
func visibleWindow(sel, n, rows int) (int, int) {
	if rows <= 0 || n <= rows {
		return 0, n
	}
	start := sel - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}

// renderJournal renders the readings view.
func (m Model) renderJournal() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	wide := m.width >= LayoutWideWidth
	var b strings.Builder

	descWidth := maxInt(m.width-70, 16)
	header := padLeft("#", 4) + "  " + padRight("SKU", 14) + "  " + padRight("ALU", 14) + "  " +
		padRight("Description", descWidth) + "  " + padLeft("Qty", 5) + "  " + padRight("Location", 12)
	if wide {
		header += "  Origin"
	}
	b.WriteString(bg.Render(header, styles.MutedText.Bold(true)))
	b.WriteString("\n")

	if len(m.records) == 0 {
		b.WriteString(bg.Render("No readings yet", styles.FaintText))
		b.WriteString("\n")
	}
	start, end := visibleWindow(m.journalSel, len(m.records), m.listRows())
	selected := m.theme.Styles().Selected
	for i := start; i < end; i++ {
		r := m.records[i]
		row := padLeft(strconv.Itoa(i+1), 4) + "  " + padRight(r.SKU, 14) + "  " + padRight(r.ALU, 14) + "  " +
			padRight(r.Description, descWidth) + "  " + padLeft(strconv.Itoa(r.Quantity), 5) + "  " + padRight(r.Location, 12)
		if wide {
			row += "  " + string(r.Origin)
		}
		if i == m.journalSel {
			b.WriteString(selected.Render(row))
		} else {
			b.WriteString(bg.Render(row, styles.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	t := m.totals
	b.WriteString(bg.Render(fmt.Sprintf("Scanner %d", t.Scanner), styles.InfoText) + bg.Spaces(3) +
		bg.Render(fmt.Sprintf("Manual %d (%d readings)", t.Manual, t.ManualRecords), styles.WarningText) + bg.Spaces(3) +
		bg.Render(fmt.Sprintf("Total %d units in %d readings", t.Quantity, t.Records), styles.Text.Bold(true)))

	return m.renderBox("Readings", b.String(), m.width, m.contentHeight(), true)
}
