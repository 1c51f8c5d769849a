package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles shared by every wizard screen.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Help     lipgloss.Style
	Box      lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		Subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
		Value:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
	}
}
