package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/prefs"
	"github.com/jfloresavalos/InvBF/internal/scan"
)

// handleScanKey processes keyboard input for the scan view. Unbound keys go
// to the code input, which is where a keyboard-wedge scanner types.
func (m Model) handleScanKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.scanner == nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Submit):
		code := strings.TrimSpace(m.scanInput.Value())
		m.scanInput.Reset()
		if code != "" {
			m.submitScan(code)
			return m, nil
		}
		if _, ok := m.scanner.Pending(); ok {
			c, err := m.scanner.Confirm()
			if err != nil {
				m.setFlash(err.Error(), true)
				return m, nil
			}
			m.pushRecent(c)
			m.lastScan = nil
			m.refreshData()
		}
		return m, nil
	case key.Matches(msg, m.keys.QtyUp):
		m.scanner.Adjust(1)
		return m, nil
	case key.Matches(msg, m.keys.QtyDown):
		m.scanner.Adjust(-1)
		return m, nil
	case key.Matches(msg, m.keys.Discard):
		m.scanner.Discard()
		m.lastScan = nil
		return m, nil
	case key.Matches(msg, m.keys.AutoAccept):
		on := !m.scanner.AutoAccept()
		m.scanner.SetAutoAccept(on)
		if _, err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.AutoAccept = on }); err != nil {
			m.setFlash("Preference not saved: "+err.Error(), true)
		}
		return m, nil
	case key.Matches(msg, m.keys.Location):
		m.openPrompt(promptLocation, m.scanner.Location())
		return m, nil
	}

	var cmd tea.Cmd
	m.scanInput, cmd = m.scanInput.Update(msg)
	return m, cmd
}

func (m *Model) submitScan(code string) {
	res, err := m.scanner.Scan(code)
	for _, c := range res.Committed {
		m.pushRecent(c)
	}
	if err != nil {
		m.setFlash(err.Error(), true)
		m.refreshData()
		return
	}
	if res.Pending {
		r := res
		m.lastScan = &r
	} else {
		m.lastScan = nil
	}
	if !res.Found {
		m.setFlash(fmt.Sprintf("Code %s not in catalog", res.Code), true)
	}
	m.refreshData()
}

func (m *Model) pushRecent(c scan.Commit) {
	m.recent = append([]scan.Commit{c}, m.recent...)
	if len(m.recent) > RecentScanLimit {
		m.recent = m.recent[:RecentScanLimit]
	}
}

// renderScan renders the scan view.
func (m Model) renderScan() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	var b strings.Builder

	location, auto := "", false
	if m.scanner != nil {
		location, auto = m.scanner.Location(), m.scanner.AutoAccept()
	}
	if location == "" {
		location = "not set"
	}
	b.WriteString(bg.Render("Location:", styles.MutedText) + bg.Space() + bg.Render(location, styles.Text))
	b.WriteString(bg.Spaces(3))
	if auto {
		b.WriteString(bg.Render("Auto-accept ON", styles.SuccessText))
	} else {
		b.WriteString(bg.Render("Auto-accept OFF", styles.MutedText))
	}
	b.WriteString("\n\n")
	b.WriteString(m.scanInput.View())
	b.WriteString("\n\n")

	if !m.snapshot.Phase.CanRecord() {
		b.WriteString(bg.Render(fmt.Sprintf("Not recording (%s). Press ctrl+r to reconnect.", m.snapshot.Phase), styles.WarningText))
		b.WriteString("\n\n")
	}

	if m.scanner != nil {
		if p, ok := m.scanner.Pending(); ok {
			b.WriteString(m.renderPending(p, styles, bg))
			b.WriteString("\n\n")
		}
	}

	if len(m.recent) > 0 {
		b.WriteString(bg.Render("Recent", styles.MutedText.Bold(true)))
		b.WriteString("\n")
		for _, c := range m.recent {
			b.WriteString(m.renderCommitLine(c, styles, bg))
			b.WriteString("\n")
		}
	}

	return m.renderBox("Scan", b.String(), m.width, m.contentHeight(), true)
}

func (m Model) renderPending(p scan.Pending, styles Styles, bg BgStyle) string {
	descStyle := styles.Text.Bold(true)
	if !p.Found {
		descStyle = styles.DangerText
	}
	line := bg.Render("Pending", styles.AccentText.Bold(true)) + bg.Spaces(2) +
		bg.Render(truncate(p.Product.Description, 48), descStyle) + bg.Spaces(2) +
		bg.Render("SKU "+p.Product.SKU, styles.MutedText)
	if p.Product.ALU != "" && p.Product.ALU != p.Product.SKU {
		line += bg.Space() + bg.Render("ALU "+p.Product.ALU, styles.MutedText)
	}
	qty := bg.Render("Quantity:", styles.MutedText) + bg.Space() +
		bg.Render(strconv.Itoa(p.Quantity), styles.WarningText.Bold(true)) + bg.Spaces(2) +
		bg.Render("enter confirm · ↑/↓ adjust · ctrl+x discard", styles.FaintText)
	return line + "\n" + qty
}

func (m Model) renderCommitLine(c scan.Commit, styles Styles, bg BgStyle) string {
	descStyle := styles.Text
	if c.Product.IsNotFound() {
		descStyle = styles.DangerText
	}
	return bg.Render(padLeft(strconv.Itoa(c.Quantity), 4)+" ×", styles.WarningText) + bg.Space() +
		bg.Render(padRight(c.Product.SKU, 14), styles.MutedText) + bg.Space() +
		bg.Render(truncate(c.Product.Description, 40), descStyle) + bg.Space() +
		bg.Render(string(c.Origin), styles.FaintText)
}

// openPrompt shows a single-line modal input.
func (m *Model) openPrompt(kind promptKind, value string) {
	m.prompt = kind
	m.promptInput.Reset()
	m.promptInput.SetValue(value)
	m.promptInput.CursorEnd()
	m.promptInput.Focus()
	m.scanInput.Blur()
	m.manualInput.Blur()
}

func (m *Model) closePrompt() {
	m.prompt = promptNone
	m.promptInput.Blur()
	switch m.view {
	case ViewScan:
		m.scanInput.Focus()
	case ViewManual:
		m.manualInput.Focus()
	}
}

// handlePromptKey processes keyboard input while a prompt is open.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Escape) {
		m.closePrompt()
		return m, nil
	}
	if m.prompt == promptClear {
		if strings.EqualFold(msg.String(), "y") {
			if m.coord != nil {
				if err := m.coord.Clear(); err != nil {
					m.setFlash(err.Error(), true)
				} else {
					m.setFlash("All readings cleared", false)
				}
			}
			m.refreshData()
		}
		m.closePrompt()
		return m, nil
	}
	if !key.Matches(msg, m.keys.Submit) {
		var cmd tea.Cmd
		m.promptInput, cmd = m.promptInput.Update(msg)
		return m, cmd
	}

	value := strings.TrimSpace(m.promptInput.Value())
	switch m.prompt {
	case promptLocation:
		if m.scanner != nil {
			m.scanner.SetLocation(value)
		}
		if _, err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Location = value }); err != nil {
			m.setFlash("Location not saved: "+err.Error(), true)
		}
	case promptQuantity:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			m.setFlash("Quantity must be a whole number of at least 1", true)
			return m, nil
		}
		if m.scanner != nil {
			c, err := m.scanner.Manual(m.promptProduct, n)
			if err != nil {
				m.setFlash(err.Error(), true)
			} else {
				m.pushRecent(c)
				m.setFlash(fmt.Sprintf("Added %d × %s", n, m.promptProduct.SKU), false)
			}
		}
		m.refreshData()
	}
	m.closePrompt()
	return m, nil
}

// renderPrompt renders the active prompt as a centered modal.
func (m Model) renderPrompt() string {
	styles := m.theme.Styles()
	var title, body string
	switch m.prompt {
	case promptLocation:
		title = "Location"
		body = styles.MutedText.Render("Shelf, aisle or area stamped on new readings") + "\n\n" + m.promptInput.View()
	case promptQuantity:
		title = "Quantity"
		body = styles.Text.Render(truncate(m.promptProduct.Description, 40)) + "\n" +
			styles.MutedText.Render("SKU "+m.promptProduct.SKU) + "\n\n" + m.promptInput.View()
	case promptClear:
		title = "Clear readings"
		body = styles.DangerText.Render(fmt.Sprintf("Delete all %d readings on this device?", len(m.records))) + "\n\n" +
			styles.MutedText.Render("y to confirm, any other key to cancel")
	}
	return m.renderModal(title, body)
}

func (m Model) renderModal(title, body string) string {
	styles := m.theme.Styles()
	content := styles.AccentText.Bold(true).Render(title) + "\n\n" + body
	return placeModal(m, content)
}

// quantityPrompt opens the quantity prompt for a manual entry.
func (m *Model) quantityPrompt(product inventory.CatalogEntry) {
	m.promptProduct = product
	m.openPrompt(promptQuantity, "1")
}
