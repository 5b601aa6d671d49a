package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorCyan   = lipgloss.Color("6")
	ColorYellow = lipgloss.Color("3")
	ColorOrange = lipgloss.Color("208")
	ColorPurple = lipgloss.Color("5")
	ColorGrey   = lipgloss.Color("8")
)

var (
	stdoutRenderer = lipgloss.NewRenderer(os.Stdout)
	stderrRenderer = lipgloss.NewRenderer(os.Stderr)

	statusStyle = stdoutRenderer.NewStyle().Bold(true).Foreground(ColorCyan)
	warnStyle   = stderrRenderer.NewStyle().Bold(true).Foreground(ColorYellow)
	errorStyle  = stderrRenderer.NewStyle().Bold(true).Foreground(ColorOrange)
	debugStyle  = stderrRenderer.NewStyle().Bold(true).Foreground(ColorPurple)
	dimStyle    = stdoutRenderer.NewStyle().Foreground(ColorGrey)
)

func writeStatus(w io.Writer, verb string, style lipgloss.Style, format string, args ...any) {
	padded := fmt.Sprintf("%12s", verb)
	styled := style.Render(padded)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "%s %s\n", styled, msg)
}

// Status prints a right-aligned bold cyan verb followed by a message to stdout.
func Status(verb string, format string, args ...any) {
	writeStatus(os.Stdout, verb, statusStyle, format, args...)
}

// Warn prints a right-aligned bold yellow "warning" followed by a message to stderr.
func Warn(format string, args ...any) {
	writeStatus(os.Stderr, "warning", warnStyle, format, args...)
}

// Error prints a right-aligned bold orange "error" followed by a message to stderr.
func Error(format string, args ...any) {
	writeStatus(os.Stderr, "error", errorStyle, format, args...)
}

// Debug prints a right-aligned bold purple "debug" followed by a message to stderr.
func Debug(format string, args ...any) {
	writeStatus(os.Stderr, "debug", debugStyle, format, args...)
}

// Dim renders s with the muted foreground color.
func Dim(s string) string {
	return dimStyle.Render(s)
}
