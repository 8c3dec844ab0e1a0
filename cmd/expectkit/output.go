package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"expectkit/internal/failure"
	"expectkit/internal/store"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#388E3C")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f8c8d"))
)

// printer writes results, colored when ansi is set.
type printer struct {
	w    io.Writer
	ansi bool
}

func (a *app) printer(w io.Writer) *printer {
	return &printer{w: w, ansi: a.themeName() != ""}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.ansi {
		return text
	}
	return s.Render(text)
}

func (p *printer) result(r store.Result) {
	switch {
	case r.Passed && r.Message == "skipped":
		fmt.Fprintf(p.w, "%s %s\n", p.style(dimStyle, "-"), r.Name)
	case r.Passed:
		fmt.Fprintf(p.w, "%s %s %s\n", p.style(passStyle, "✓"), r.Name, p.style(dimStyle, formatDuration(r.Duration)))
	default:
		fmt.Fprintf(p.w, "%s %s\n", p.style(failStyle, "✗"), r.Name)
		fmt.Fprintln(p.w, failure.Indent(r.Message, 2))
	}
}

func (p *printer) summary(run *store.Run) {
	parts := []string{p.style(passStyle, fmt.Sprintf("%d passed", run.Passed))}
	if run.Failed > 0 {
		parts = append(parts, p.style(failStyle, fmt.Sprintf("%d failed", run.Failed)))
	}
	fmt.Fprintf(p.w, "\n%s %s\n", strings.Join(parts, ", "), p.style(dimStyle, "("+formatDuration(run.Duration)+")"))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}
