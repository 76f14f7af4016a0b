package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the stepgraph banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{"      _                                    _     ", "#818cf8"},
		{"  ___| |_ ___ _ __   __ _ _ __ __ _ _ __ | |__  ", "#a78bfa"},
		{" / __| __/ _ \\ '_ \\ / _` | '__/ _` | '_ \\| '_ \\ ", "#c084fc"},
		{" \\__ \\ ||  __/ |_) | (_| | | | (_| | |_) | | | |", "#e879f9"},
		{" |___/\\__\\___| .__/ \\__, |_|  \\__,_| .__/|_| |_|", "#f472b6"},
		{"             |_|    |___/          |_|          ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
