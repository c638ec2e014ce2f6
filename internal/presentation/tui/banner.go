package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the monitor banner with its version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []termenv.Style{
		termenv.String(" _ __  _   _| |_ ___ ").Foreground(p.Color("#34d399")),
		termenv.String("| '_ \\| | | | __/ __|").Foreground(p.Color("#2dd4bf")),
		termenv.String("| | | | |_| | |_\\__ \\").Foreground(p.Color("#22d3ee")),
		termenv.String("|_| |_|\\__,_|\\__|___/  monitor " + version).Foreground(p.Color("#38bdf8")),
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w)
}
