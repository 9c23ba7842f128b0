package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Width(11).
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	trapStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// report writes the probe results, styled when w is a terminal.
type report struct {
	w      io.Writer
	styled bool
}

func newReport(f *os.File) *report {
	return &report{w: f, styled: isTerminal(f)}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (r *report) render(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *report) title(text string) {
	fmt.Fprintln(r.w, r.render(titleStyle, text))
}

func (r *report) field(label, format string, args ...any) {
	l := label + ":"
	if r.styled {
		l = labelStyle.Render(l)
	} else {
		l = fmt.Sprintf("%-11s", l)
	}
	fmt.Fprintf(r.w, "%s%s\n", l, fmt.Sprintf(format, args...))
}

func (r *report) ok(label, format string, args ...any) {
	r.field(label, "%s", r.render(okStyle, fmt.Sprintf(format, args...)))
}

func (r *report) trapped(label string, err error) {
	r.field(label, "%s", r.render(trapStyle, err.Error()))
}
