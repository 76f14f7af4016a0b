package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

// Format selects how reports are written.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a user supplied format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json, yaml or markdown)", s)
}

// Printer writes reports to a terminal or a pipe.
type Printer struct {
	w        io.Writer
	out      *termenv.Output
	markdown func(string) (string, error)
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithProfile forces a color profile; termenv.Ascii disables colors.
func WithProfile(p termenv.Profile) PrinterOption {
	return func(pr *Printer) {
		pr.out = termenv.NewOutput(pr.w, termenv.WithProfile(p))
	}
}

// WithMarkdownRenderer sets the renderer used for FormatMarkdown.
// Without one, markdown is written raw.
func WithMarkdownRenderer(render func(string) (string, error)) PrinterOption {
	return func(pr *Printer) {
		pr.markdown = render
	}
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{w: w, out: termenv.NewOutput(w)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print writes a run report in the given format.
func (p *Printer) Print(r *domain.Report, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		return p.encode(r, f)
	case FormatMarkdown:
		return p.renderMarkdown(Markdown(r))
	}
	p.text(r)
	return nil
}

// PrintFitting writes the outcome of a fitting pass.
func (p *Printer) PrintFitting(s *domain.FittingSummary, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		return p.encode(s, f)
	case FormatMarkdown:
		var sb strings.Builder
		writeFittingMarkdown(&sb, s)
		return p.renderMarkdown(sb.String())
	}
	p.fittingText(s)
	return nil
}

func (p *Printer) encode(v any, f Format) error {
	if f == FormatYAML {
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) renderMarkdown(md string) error {
	if p.markdown != nil {
		rendered, err := p.markdown(md)
		if err != nil {
			return fmt.Errorf("failed to render markdown: %w", err)
		}
		md = rendered
	}
	_, err := io.WriteString(p.w, md)
	return err
}

func (p *Printer) paint(s, color string) termenv.Style {
	return p.out.String(s).Foreground(p.out.Color(color))
}

func (p *Printer) stateStyle(s domain.NodeState) termenv.Style {
	switch s {
	case domain.NodeSucceeded:
		return p.paint("ok  ", "#22c55e")
	case domain.NodeFailed:
		return p.paint("FAIL", "#ef4444").Bold()
	case domain.NodeSkipped:
		return p.paint("skip", "#9ca3af")
	}
	return p.paint(strings.ToLower(string(s)), "#eab308")
}

func (p *Printer) text(r *domain.Report) {
	status := p.paint("SUCCEEDED", "#22c55e").Bold()
	if !r.Success {
		status = p.paint("FAILED", "#ef4444").Bold()
	}
	fmt.Fprintf(p.w, "Run %s %s (%s)\n", r.RunID, status, countsLine(r.Counts))

	width := 0
	for _, n := range r.Nodes {
		width = max(width, len(n.ID))
	}
	for _, n := range r.Nodes {
		line := fmt.Sprintf("  %s %-*s  %s", p.stateStyle(n.State), width, n.ID, n.RequestKind)
		if n.Result != nil && n.State != domain.NodeSkipped {
			line += fmt.Sprintf("  %s", n.Result.Duration.Round(time.Millisecond))
		}
		if n.Message != "" {
			line += "  " + p.paint(n.Message, "#9ca3af").String()
		}
		fmt.Fprintln(p.w, line)
	}

	if r.Fitting != nil && r.Fitting.PreparationNeeded {
		fmt.Fprintf(p.w, "Fitting: %d of %d preparation(s) succeeded\n",
			r.Fitting.SuccessfulPreparations, len(r.Fitting.PreparationResults))
	}
	for _, e := range r.BuildErrors {
		fmt.Fprintf(p.w, "%s %s\n", p.paint("error:", "#ef4444"), e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(p.w, "%s %s\n", p.paint("warning:", "#eab308"), w)
	}
}

func (p *Printer) fittingText(s *domain.FittingSummary) {
	if !s.PreparationNeeded && len(s.Missing) == 0 && len(s.Errors) == 0 {
		fmt.Fprintln(p.w, p.paint("Environment already fits the graph.", "#22c55e"))
		return
	}
	for _, m := range s.Missing {
		mark := p.paint("+", "#22c55e")
		if !m.Preparable {
			mark = p.paint("!", "#ef4444")
		}
		line := fmt.Sprintf("  %s %s %s (needed by %s)", mark, m.Kind, m.Target, m.NodeID)
		if m.Observed != "" {
			line += ": " + m.Observed
		}
		fmt.Fprintln(p.w, line)
	}
	for _, res := range s.PreparationResults {
		state := p.stateStyle(domain.NodeSucceeded)
		if !res.Success {
			state = p.stateStyle(domain.NodeFailed)
		}
		name := ""
		if res.Request != nil {
			name = res.Request.Meta().Name
		}
		fmt.Fprintf(p.w, "  %s %s %s\n", state, name, res.ErrorMessage)
	}
	for _, e := range s.Errors {
		fmt.Fprintf(p.w, "%s %s\n", p.paint("error:", "#ef4444"), e)
	}
}

func countsLine(c domain.Counts) string {
	return fmt.Sprintf("%d succeeded, %d failed, %d skipped, %d pending", c.Succeeded, c.Failed, c.Skipped, c.Pending)
}

// Markdown renders a report as a markdown document.
func Markdown(r *domain.Report) string {
	var sb strings.Builder
	status := "succeeded"
	if !r.Success {
		status = "failed"
	}
	fmt.Fprintf(&sb, "# Run %s\n\n", r.RunID)
	fmt.Fprintf(&sb, "**Status:** %s  \n**Nodes:** %s\n\n", status, countsLine(r.Counts))

	if len(r.Nodes) > 0 {
		sb.WriteString("| Node | Kind | State | Exit | Message |\n")
		sb.WriteString("|------|------|-------|------|---------|\n")
		for _, n := range r.Nodes {
			exit := ""
			if n.Result != nil {
				exit = fmt.Sprint(n.Result.ExitCode)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				n.ID, n.RequestKind, n.State, exit, escapeCell(n.Message))
		}
		sb.WriteString("\n")
	}

	if r.Fitting != nil {
		writeFittingMarkdown(&sb, r.Fitting)
	}
	if len(r.BuildErrors) > 0 {
		sb.WriteString("## Build errors\n\n")
		for _, e := range r.BuildErrors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
		sb.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeFittingMarkdown(sb *strings.Builder, s *domain.FittingSummary) {
	sb.WriteString("## Fitting\n\n")
	if !s.PreparationNeeded && len(s.Missing) == 0 {
		sb.WriteString("Environment already fits the graph.\n\n")
	}
	for _, m := range s.Missing {
		fmt.Fprintf(sb, "- %s `%s` needed by %s (preparable: %t)\n", m.Kind, m.Target, m.NodeID, m.Preparable)
	}
	if len(s.PreparationResults) > 0 {
		fmt.Fprintf(sb, "\n%d of %d preparation(s) succeeded.\n", s.SuccessfulPreparations, len(s.PreparationResults))
	}
	for _, e := range s.Errors {
		fmt.Fprintf(sb, "- error: %s\n", e)
	}
	sb.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
