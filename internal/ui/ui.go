// Package ui prints human-facing command output, coloured when the
// destination is a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	faintColor   = color.New(color.Faint)
	addColor     = color.New(color.FgGreen)
	delColor     = color.New(color.FgRed)
	hunkColor    = color.New(color.FgCyan)
)

// Printer writes status lines to Out and problems to Err.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Color bool
}

// UseColor resolves a color mode (auto|on|off) for f.
func UseColor(mode string, f *os.File) bool {
	switch strings.ToLower(mode) {
	case "on":
		return true
	case "off":
		return false
	}
	return f != nil && isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// New returns a Printer for the given writers. When out is a terminal
// file the mode decides; for any other writer only "on" enables colour.
func New(out, errw io.Writer, mode string) *Printer {
	f, _ := out.(*os.File)
	return &Printer{Out: out, Err: errw, Color: UseColor(mode, f)}
}

func (p *Printer) paint(c *color.Color, s string) string {
	if !p.Color {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// Success prints a line with a green tag.
func (p *Printer) Success(tag, format string, args ...any) {
	fmt.Fprintf(p.Out, "%s %s\n", p.paint(successColor, tag), fmt.Sprintf(format, args...))
}

// Skip prints a line with a faint tag, for no-op outcomes.
func (p *Printer) Skip(tag, format string, args ...any) {
	fmt.Fprintf(p.Out, "%s %s\n", p.paint(faintColor, tag), fmt.Sprintf(format, args...))
}

// Warn prints to Err with a yellow "warning:" prefix.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.Err, "%s %s\n", p.paint(warnColor, "warning:"), fmt.Sprintf(format, args...))
}

// Error prints to Err with a red "error:" prefix.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.Err, "%s %s\n", p.paint(errorColor, "error:"), fmt.Sprintf(format, args...))
}

// Diff prints a unified patch, colouring added, removed and hunk lines.
func (p *Printer) Diff(patch string) {
	if !p.Color {
		fmt.Fprint(p.Out, patch)
		return
	}
	for _, line := range strings.SplitAfter(patch, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(p.Out, p.paint(faintColor, line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(p.Out, p.paint(hunkColor, line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(p.Out, p.paint(addColor, line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(p.Out, p.paint(delColor, line))
		default:
			fmt.Fprint(p.Out, line)
		}
	}
}
