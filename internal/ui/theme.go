package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the colors of one palette.
type Theme struct {
	Name string

	Background  string // outside boxes
	Surface     string // header and command bar
	FocusBg     string // inside the focused box
	SelectionBg string
	Border      string
	BorderFocus string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// Badge colors keyed by Phase.String() or an origin name.
	StatusColors map[string]string
}

// palette is the raw material for a Theme. Scanner and Manual color the
// origin badges.
type palette struct {
	bg, surface, focus, selection, border string
	fg, muted, faint                      string
	blue, green, yellow, red, cyan        string
	scanner, manual                       string
}

func newTheme(name string, p palette) Theme {
	return Theme{
		Name:        name,
		Background:  p.bg,
		Surface:     p.surface,
		FocusBg:     p.focus,
		SelectionBg: p.selection,
		Border:      p.border,
		BorderFocus: p.blue,
		Text:        p.fg,
		Muted:       p.muted,
		Faint:       p.faint,
		Accent:      p.blue,
		Success:     p.green,
		Warning:     p.yellow,
		Danger:      p.red,
		Info:        p.cyan,
		StatusColors: map[string]string{
			"active":       p.green,
			"syncing":      p.blue,
			"checking":     p.cyan,
			"offline":      p.yellow,
			"no session":   p.muted,
			"disconnected": p.muted,
			"blocked":      p.red,
			"scanner":      p.scanner,
			"manual":       p.manual,
		},
	}
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Logo: fg(t.Warning).Bold(true),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SelectionBg)).
			Foreground(lipgloss.Color(t.Text)),

		statusColors: t.StatusColors,
		background:   t.Background,
		muted:        t.Muted,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style

	statusColors map[string]string
	background   string
	muted        string
}

// StatusStyle returns a badge style for a phase or origin name.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color := s.statusColors[status]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// WithBackground returns a copy of Styles whose text styles carry bgColor
// instead of inheriting the terminal background.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Text, &out.MutedText, &out.FaintText, &out.AccentText,
		&out.SuccessText, &out.WarningText, &out.DangerText, &out.InfoText,
		&out.Header, &out.Logo,
	} {
		*st = st.Background(bg)
	}
	return out
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

var themes = map[string]Theme{
	// https://github.com/EdenEast/nightfox.nvim
	"Nightfox": newTheme("Nightfox", palette{
		bg: "#131a24", surface: "#192330", focus: "#29394f", selection: "#2b3b51", border: "#39506d",
		fg: "#cdcecf", muted: "#738091", faint: "#71839b",
		blue: "#719cd6", green: "#81b29a", yellow: "#dbc074", red: "#c94f6d", cyan: "#63cdcf",
		scanner: "#9d79d6", manual: "#f4a261",
	}),
	// https://github.com/rebelot/kanagawa.nvim
	"Kanagawa": newTheme("Kanagawa", palette{
		bg: "#16161D", surface: "#1F1F28", focus: "#2A2A37", selection: "#2D4F67", border: "#54546D",
		fg: "#DCD7BA", muted: "#727169", faint: "#625e5a",
		blue: "#7E9CD8", green: "#98BB6C", yellow: "#E6C384", red: "#E82424", cyan: "#7FB4CA",
		scanner: "#957FB8", manual: "#FFA066",
	}),
	// Tailwind slate scale
	"Slate": newTheme("Slate", palette{
		bg: "#0f172a", surface: "#1e293b", focus: "#334155", selection: "#475569", border: "#475569",
		fg: "#e2e8f0", muted: "#64748b", faint: "#94a3b8",
		blue: "#38bdf8", green: "#22c55e", yellow: "#eab308", red: "#ef4444", cyan: "#2dd4bf",
		scanner: "#a78bfa", manual: "#fb923c",
	}),
}

// GetTheme returns a theme by name, falling back to Nightfox.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["Nightfox"]
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}
