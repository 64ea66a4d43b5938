package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds all the UI styles
type Styles struct {
	Title    lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Help     lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
	HelpSep  lipgloss.Style
	Border   lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
	Accent   lipgloss.Style
}

const (
	colorPrimary = "#7D56F4"
	colorGreen   = "#04B575"
	colorRed     = "#FF5F5F"
	colorYellow  = "#F2C94C"
	colorGray    = "#737373"
	colorText    = "#FAFAFA"
)

// DefaultStyles returns the default style set
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)),

		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorText)),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)).
			Italic(true),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)),

		HelpDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)),

		HelpSep: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4A4A4A")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorPrimary)).
			Padding(1, 3),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorRed)),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorYellow)),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGreen)),

		Accent: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorGreen)),
	}
}

// Check marks used by the console reporter and doctor
const (
	MarkOK   = "✓"
	MarkFail = "✗"
	MarkWarn = "⚠"
)

// StatusLine renders "<mark> label  detail" in the colour matching mark
func (s Styles) StatusLine(mark, label, detail string) string {
	style := s.Success
	switch mark {
	case MarkFail:
		style = s.Error
	case MarkWarn:
		style = s.Warning
	}
	line := style.Render(mark) + " " + s.Normal.Render(label)
	if detail != "" {
		line += "  " + s.Muted.Render(detail)
	}
	return line
}
