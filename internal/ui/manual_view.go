package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jfloresavalos/InvBF/internal/catalog"
)

// handleManualKey processes keyboard input for manual entry. Only arrow keys
// move the selection so that letters reach the search input.
func (m Model) handleManualKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.results)
	switch {
	case msg.Type == tea.KeyUp:
		m.resultSel = clamp(m.resultSel-1, n)
		return m, nil
	case msg.Type == tea.KeyDown:
		m.resultSel = clamp(m.resultSel+1, n)
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.resultSel < n {
			m.quantityPrompt(m.results[m.resultSel])
		}
		return m, nil
	case key.Matches(msg, m.keys.Supplier):
		m.supplierIdx = (m.supplierIdx + 1) % (len(m.suppliers) + 1)
		m.search()
		return m, nil
	case key.Matches(msg, m.keys.Season):
		m.seasonIdx = (m.seasonIdx + 1) % (len(m.seasons) + 1)
		m.search()
		return m, nil
	}

	before := m.manualInput.Value()
	var cmd tea.Cmd
	m.manualInput, cmd = m.manualInput.Update(msg)
	if m.manualInput.Value() != before {
		m.search()
	}
	return m, cmd
}

// refreshFilters reloads supplier and season lists from the catalog.
func (m *Model) refreshFilters() {
	snap := m.catalogSnapshot()
	m.suppliers = snap.Suppliers()
	m.seasons = snap.Seasons()
	if m.supplierIdx > len(m.suppliers) {
		m.supplierIdx = 0
	}
	if m.seasonIdx > len(m.seasons) {
		m.seasonIdx = 0
	}
}

func (m Model) catalogSnapshot() *catalog.Snapshot {
	if m.coord == nil {
		return nil
	}
	return m.coord.Cache().Snapshot()
}

func filterValue(values []string, idx int) string {
	if idx <= 0 || idx > len(values) {
		return ""
	}
	return values[idx-1]
}

func filterLabel(values []string, idx int) string {
	if v := filterValue(values, idx); v != "" {
		return v
	}
	return "All"
}

func (m *Model) search() {
	m.results = m.catalogSnapshot().Search(catalog.Query{
		Text:     m.manualInput.Value(),
		Supplier: filterValue(m.suppliers, m.supplierIdx),
		Season:   filterValue(m.seasons, m.seasonIdx),
		Limit:    SearchLimit,
	})
	m.resultSel = clamp(m.resultSel, len(m.results))
}

// renderManual renders the manual entry view.
func (m Model) renderManual() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	wide := m.width >= LayoutWideWidth
	var b strings.Builder

	b.WriteString(m.manualInput.View())
	b.WriteString("\n")
	b.WriteString(bg.Render("Supplier:", styles.MutedText) + bg.Space() + bg.Render(filterLabel(m.suppliers, m.supplierIdx), styles.AccentText) +
		bg.Spaces(3) + bg.Render("Season:", styles.MutedText) + bg.Space() + bg.Render(filterLabel(m.seasons, m.seasonIdx), styles.AccentText))
	b.WriteString("\n\n")

	if len(m.results) == 0 {
		b.WriteString(bg.Render("No matching products", styles.FaintText))
	}
	descWidth := maxInt(m.width-40, 16)
	if wide {
		descWidth = maxInt(m.width-76, 16)
	}
	rows := maxInt(m.contentHeight()-8, 1)
	start, end := visibleWindow(m.resultSel, len(m.results), rows)
	selected := m.theme.Styles().Selected
	for i := start; i < end; i++ {
		e := m.results[i]
		row := padRight(e.SKU, 14) + "  " + padRight(e.ALU, 14) + "  " + padRight(e.Description, descWidth)
		if wide {
			row += "  " + padRight(e.Model, 14) + "  " + padRight(e.Supplier, 18)
		}
		if i == m.resultSel {
			b.WriteString(selected.Render(row))
		} else {
			b.WriteString(bg.Render(row, styles.Text))
		}
		b.WriteString("\n")
	}

	return m.renderBox("Manual entry", b.String(), m.width, m.contentHeight(), true)
}
