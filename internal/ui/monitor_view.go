package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handleMonitorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Refresh) {
		m.startMonitor()
	}
	return m, nil
}

// renderMonitor renders live inventory progress.
func (m Model) renderMonitor() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	snap := m.snapshot
	var b strings.Builder

	switch {
	case !snap.HasSession:
		b.WriteString(bg.Render("No inventory session. Progress is available once connected.", styles.MutedText))
		return m.renderBox("Monitor", b.String(), m.width, m.contentHeight(), true)
	case !snap.HasProgress:
		b.WriteString(bg.Render("Waiting for progress...", styles.MutedText))
		return m.renderBox("Monitor", b.String(), m.width, m.contentHeight(), true)
	}

	p := snap.Progress
	sum := p.Summary
	b.WriteString(bg.Render(fmt.Sprintf("%.1f%%", sum.Percent), styles.AccentText.Bold(true)) + bg.Spaces(2) +
		bg.Render(fmt.Sprintf("Counted %d of %d expected", sum.TotalCounted, sum.TotalExpected), styles.Text) + bg.Spaces(3) +
		bg.Render(fmt.Sprintf("Products %d / %d", sum.CountedProducts, sum.TotalProducts), styles.MutedText) + bg.Spaces(3) +
		bg.Render("updated "+snap.ProgressUpdated.Format("15:04:05"), styles.FaintText))
	b.WriteString("\n")
	b.WriteString(bg.Render(progressBar(sum.Percent, maxInt(m.width-8, 10)), styles.AccentText))
	b.WriteString("\n\n")

	if len(p.ByDevice) > 0 {
		devices := make([]string, 0, len(p.ByDevice))
		for name := range p.ByDevice {
			devices = append(devices, name)
		}
		sort.Strings(devices)
		parts := make([]string, 0, len(devices))
		for _, name := range devices {
			parts = append(parts, bg.Render(name, styles.MutedText)+bg.Space()+bg.Render(strconv.Itoa(p.ByDevice[name]), styles.Text))
		}
		b.WriteString(bg.Render("By device", styles.MutedText.Bold(true)) + bg.Spaces(2) + bg.Join(parts, "   "))
		b.WriteString("\n\n")
	}

	descWidth := maxInt(m.width-62, 16)
	header := padRight("SKU", 14) + "  " + padRight("Description", descWidth) + "  " + padRight("Dept", 10) + "  " +
		padLeft("Exp", 6) + "  " + padLeft("Count", 6) + "  " + padLeft("Diff", 6)
	b.WriteString(bg.Render(header, styles.MutedText.Bold(true)))
	b.WriteString("\n")

	rows := maxInt(m.contentHeight()-10, 1)
	for i, prod := range p.Products {
		if i >= rows {
			b.WriteString(bg.Render(fmt.Sprintf("... %d more", len(p.Products)-rows), styles.FaintText))
			break
		}
		diffStyle := styles.SuccessText
		switch {
		case prod.Surplus:
			diffStyle = styles.InfoText
		case prod.Difference < 0:
			diffStyle = styles.DangerText
		case prod.Difference > 0:
			diffStyle = styles.WarningText
		}
		row := padRight(prod.SKU, 14) + "  " + padRight(prod.Description, descWidth) + "  " + padRight(prod.Department, 10) + "  " +
			padLeft(strconv.Itoa(prod.Expected), 6) + "  " + padLeft(strconv.Itoa(prod.Counted), 6) + "  "
		b.WriteString(bg.Render(row, styles.Text) + bg.Render(padLeft(formatSigned(prod.Difference), 6), diffStyle))
		b.WriteString("\n")
	}

	return m.renderBox("Monitor", b.String(), m.width, m.contentHeight(), true)
}

// progressBar draws a fixed-width bar for percent (0-100).
func progressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
