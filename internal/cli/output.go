// Package cli provides terminal output helpers for financectl.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorBold   = "\033[1m"
)

// Printer writes status lines and tables, colored when writing to a terminal.
type Printer struct {
	w        io.Writer
	colorize bool
}

// NewPrinter creates a printer on stdout.
func NewPrinter() *Printer {
	return &Printer{w: os.Stdout, colorize: isTerminal(os.Stdout)}
}

// NewPlainPrinter creates a colorless printer on w.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Colorize returns text wrapped in color when the printer is colored.
func (p *Printer) Colorize(text, color string) string {
	if !p.colorize {
		return text
	}
	return color + text + ColorReset
}

func (p *Printer) status(symbol, color, message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.Colorize(symbol, color), message)
}

// Success prints a success message
func (p *Printer) Success(message string) { p.status("✓", ColorGreen, message) }

// Error prints an error message
func (p *Printer) Error(message string) { p.status("✗", ColorRed, message) }

// Warning prints a warning message
func (p *Printer) Warning(message string) { p.status("⚠", ColorYellow, message) }

// Info prints an info message
func (p *Printer) Info(message string) { p.status("ℹ", ColorBlue, message) }

// Table prints rows in aligned columns under a bold header.
func (p *Printer) Table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	bold := make([]string, len(header))
	for i, h := range header {
		bold[i] = p.Colorize(h, ColorBold)
	}
	fmt.Fprintln(tw, strings.Join(bold, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// isTerminal checks if f is a character device
func isTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
