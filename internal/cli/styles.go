package cli

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	warnColor   = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	greenColor  = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
)

// Styles colors text output. PlainStyles passes strings through untouched.
type Styles struct {
	enabled bool
	title   lipgloss.Style
	key     lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		enabled: true,
		title:   lipgloss.NewStyle().Foreground(accentColor).Bold(true),
		key:     lipgloss.NewStyle().Foreground(dimColor),
		ok:      lipgloss.NewStyle().Foreground(greenColor).Bold(true),
		err:     lipgloss.NewStyle().Foreground(warnColor).Bold(true),
	}
}

func PlainStyles() Styles {
	return Styles{}
}

func (s Styles) render(st lipgloss.Style, v string) string {
	if !s.enabled {
		return v
	}
	return st.Render(v)
}

func (s Styles) Title(v string) string { return s.render(s.title, v) }
func (s Styles) Key(v string) string   { return s.render(s.key, v) }
func (s Styles) OK(v string) string    { return s.render(s.ok, v) }
func (s Styles) Error(v string) string { return s.render(s.err, v) }
