package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// AI answers frequently come back as markdown; rendering them keeps code
// fences and lists readable in the terminal.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // detect light/dark background
	)

	return func(markdown string) (string, error) {
		if r == nil {
			return markdown, nil
		}
		return r.Render(markdown)
	}
}
