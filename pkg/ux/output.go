// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling and prompts for the flowswap CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Terminal Detection
// =============================================================================

// IsTerminal reports whether f is attached to a terminal, including
// Cygwin/MSYS pseudo terminals.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInteractive reports whether a prompt can be shown: both stdin and
// stdout must be terminals.
func IsInteractive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled output. In machine mode it emits plain
// "KEY: value" lines with no color, suitable for scripts and CI logs.
type Printer struct {
	w       io.Writer
	machine bool
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer, machine bool) *Printer {
	return &Printer{w: w, machine: machine}
}

// Stdout returns a Printer for os.Stdout, in machine mode when stdout is
// not a terminal.
func Stdout() *Printer {
	return NewPrinter(os.Stdout, !IsTerminal(os.Stdout))
}

// Machine reports whether the printer emits plain output.
func (p *Printer) Machine() bool {
	return p.machine
}

// Title prints a styled title. Machine mode omits it.
func (p *Printer) Title(text string) {
	if p.machine {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	if p.machine {
		fmt.Fprintf(p.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	if p.machine {
		fmt.Fprintf(p.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message
func (p *Printer) Error(text string) {
	if p.machine {
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	if p.machine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Field is one labelled value in a Section.
type Field struct {
	Label string
	Value string
}

// Section prints a titled list of fields. Rich mode aligns labels inside a
// rounded box; machine mode prints "title.label=value" lines.
func (p *Printer) Section(title string, fields []Field) {
	if p.machine {
		key := strings.ToLower(strings.ReplaceAll(title, " ", "_"))
		for _, f := range fields {
			label := strings.ToLower(strings.ReplaceAll(f.Label, " ", "_"))
			fmt.Fprintf(p.w, "%s.%s=%s\n", key, label, f.Value)
		}
		return
	}

	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.Label))
	}
	label := Styles.Muted.Width(width + 2)

	lines := []string{Styles.Title.Render(title)}
	for _, f := range fields {
		lines = append(lines, label.Render(f.Label)+f.Value)
	}
	fmt.Fprintln(p.w, Styles.Box.Render(strings.Join(lines, "\n")))
}

// List prints a bulleted list under a heading. Empty lists print the
// heading followed by "(none)".
func (p *Printer) List(heading string, items []string) {
	if p.machine {
		if len(items) == 0 {
			fmt.Fprintf(p.w, "%s: (none)\n", heading)
		}
		for _, item := range items {
			fmt.Fprintf(p.w, "%s: %s\n", heading, item)
		}
		return
	}
	fmt.Fprintln(p.w, Styles.Bold.Render(heading))
	if len(items) == 0 {
		fmt.Fprintf(p.w, "  %s\n", Styles.Muted.Render("(none)"))
		return
	}
	for _, item := range items {
		fmt.Fprintf(p.w, "  %s %s\n", IconBullet.Render(), item)
	}
}

// ErrorBox prints a failure with follow-up guidance in a red box.
func (p *Printer) ErrorBox(title, content string) {
	if p.machine {
		fmt.Fprintf(p.w, "ERROR %s: %s\n", title, content)
		return
	}
	titleLine := Styles.Error.Bold(true).Render(title)
	fmt.Fprintln(p.w, Styles.ErrorBox.Width(72).Render(titleLine+"\n"+content))
}
