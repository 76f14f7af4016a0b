package main

import (
	"io"
	"os"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/presentation/tui"
	"golang.org/x/term"
)

// newPrinter returns a report printer for format, with glamour rendering for markdown.
func newPrinter(w io.Writer, format tui.Format) *tui.Printer {
	var opts []tui.PrinterOption
	if format == tui.FormatMarkdown {
		style := "notty"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			style = ""
		}
		render, err := tui.NewRenderer(style)
		if err != nil {
			cli.Exit(err)
		}
		opts = append(opts, tui.WithMarkdownRenderer(render))
	}
	return tui.NewPrinter(w, opts...)
}

func parseFormat(raw string) tui.Format {
	f, err := tui.ParseFormat(raw)
	if err != nil {
		cli.Exit(err)
	}
	return f
}
