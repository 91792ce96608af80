package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/playbook/internal/presentation/tui"
)

// Printer writes command results either as JSON or as rendered markdown.
type Printer struct {
	Out      io.Writer
	JSON     bool
	Renderer tui.Renderer
}

// NewPrinter renders through glamour when w is a terminal.
func NewPrinter(w io.Writer, jsonMode bool) *Printer {
	var renderer tui.Renderer = tui.Plain
	if f, ok := w.(*os.File); ok {
		renderer = tui.NewRenderer(f)
	}
	return &Printer{Out: w, JSON: jsonMode, Renderer: renderer}
}

// Markdown prints md, or {"display": md} in JSON mode.
func (p *Printer) Markdown(md string) error {
	if p.JSON {
		return p.Value(map[string]string{"display": md})
	}
	out, err := p.Renderer(md)
	if err != nil {
		out = md
	}
	_, err = fmt.Fprintln(p.Out, out)
	return err
}

// Value prints v as indented JSON.
func (p *Printer) Value(v any) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Line prints a plain status line, suppressed in JSON mode.
func (p *Printer) Line(format string, args ...any) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Out, format+"\n", args...)
}
