package tui

import (
	"github.com/muesli/termenv"
)

// Styles colors the confirmation and plan output. When color is disabled the
// style functions return their input unchanged.
type Styles struct {
	enabled bool
	profile termenv.Profile
}

// NewStyles builds the style set. Pass enabled=false to force plain output
// (e.g. ui.color: false or a dumb terminal).
func NewStyles(enabled bool) *Styles {
	return &Styles{
		enabled: enabled,
		profile: termenv.ColorProfile(),
	}
}

// Warning styles safety warnings and failure notices.
func (s *Styles) Warning(text string) string {
	if !s.enabled {
		return text
	}
	return termenv.String(text).Foreground(s.profile.Color("1")).String()
}

// Success styles completion notices.
func (s *Styles) Success(text string) string {
	if !s.enabled {
		return text
	}
	return termenv.String(text).Foreground(s.profile.Color("2")).String()
}

// Tag styles safety flag tags in plan listings.
func (s *Styles) Tag(text string) string {
	if !s.enabled {
		return text
	}
	return termenv.String(text).Foreground(s.profile.Color("3")).Bold().String()
}

// Plan styles plan summary lines.
func (s *Styles) Plan(text string) string {
	if !s.enabled {
		return text
	}
	return termenv.String(text).Foreground(s.profile.Color("3")).String()
}

// Muted styles secondary detail such as step descriptions.
func (s *Styles) Muted(text string) string {
	if !s.enabled {
		return text
	}
	return termenv.String(text).Faint().String()
}
