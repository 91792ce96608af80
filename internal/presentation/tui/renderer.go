package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// DefaultWidth is used when the terminal size is unknown.
const DefaultWidth = 80

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of f, or DefaultWidth.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// NewRenderer picks a renderer for f: glamour with auto style on a terminal,
// raw markdown when piped so scripts and agents get the original text.
func NewRenderer(f *os.File) Renderer {
	if !IsTerminal(f) {
		return Plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(Width(f)),
	)
	if err != nil {
		return Plain
	}
	return r.Render
}

// NewStyledRenderer renders with a fixed glamour style (e.g. "dark", "notty").
func NewStyledRenderer(style string, width int) (Renderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// Plain returns markdown untouched.
func Plain(markdown string) (string, error) {
	return markdown, nil
}
