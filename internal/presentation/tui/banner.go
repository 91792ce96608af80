package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`        _             _                 _    `, "#34d399"},
	{` _ __  | | __ _ _   _| |__   ___   ___ | | __`, "#2dd4bf"},
	{`| '_ \ | |/ _' | | | | '_ \ / _ \ / _ \| |/ /`, "#22d3ee"},
	{`| |_) || | (_| | |_| | |_) | (_) | (_) |   < `, "#38bdf8"},
	{`| .__/ |_|\__,_|\__, |_.__/ \___/ \___/|_|\_\`, "#60a5fa"},
	{`|_|             |___/                        `, "#818cf8"},
}

// PrintBanner writes the colored banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  guided workflows v"+version).Faint())
	fmt.Fprintln(w)
}
