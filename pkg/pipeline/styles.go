package pipeline

import "github.com/charmbracelet/lipgloss"

// Console styles for step lines and the summary block.
var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleFail   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleRule   = lipgloss.NewStyle().Faint(true)
)

func statusStyled(s Status) string {
	switch s {
	case StatusSuccess:
		return styleOK.Render(s.Glyph())
	case StatusFailed:
		return styleFail.Render(s.Glyph())
	}
	return s.Glyph()
}
