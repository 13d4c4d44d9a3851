package output

import "github.com/fatih/color"

// ColorScheme defines the colors used for the load test console.
type ColorScheme struct {
	Title     *color.Color
	Border    *color.Color
	Label     *color.Color
	Value     *color.Color
	Latency   *color.Color
	Success   *color.Color
	Warn      *color.Color
	Error     *color.Color
	Dim       *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme. fatih/color still
// strips the codes when stdout is not a terminal.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.Bold),
		Border:    color.New(color.FgCyan),
		Label:     color.New(color.Bold),
		Value:     color.New(color.FgCyan),
		Latency:   color.New(color.FgBlue),
		Success:   color.New(color.FgGreen),
		Warn:      color.New(color.FgYellow),
		Error:     color.New(color.FgRed),
		Dim:       color.New(color.Faint),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// ForcedColorScheme is the default scheme with colors on regardless of the
// terminal.
func ForcedColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range s.all() {
		c.EnableColor()
	}
	return s
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range s.all() {
		c.DisableColor()
	}
	return s
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Border, s.Label, s.Value, s.Latency, s.Success, s.Warn, s.Error, s.Dim, s.Highlight}
}

// rate picks green, yellow or red for an error rate.
func (s *ColorScheme) rate(errorRate float64) *color.Color {
	switch {
	case errorRate > 0.05:
		return s.Error
	case errorRate > 0.01:
		return s.Warn
	default:
		return s.Success
	}
}

// status colors an HTTP status code; 0 stands for transport errors.
func (s *ColorScheme) status(code int) *color.Color {
	switch {
	case code == 0 || code >= 500:
		return s.Error
	case code >= 400:
		return s.Warn
	default:
		return s.Success
	}
}
