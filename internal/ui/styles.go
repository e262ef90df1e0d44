package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"bt-discovery/internal/console"
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
	DefaultHeight    = 20
)

var (
	// TitleStyle is for the list title
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(console.PrimaryColor).
			Padding(0, 1)

	// SpinnerStyle colours the scanning spinner
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(console.PrimaryColor)

	// StatusStyle is for "Scanning..." and empty results
	StatusStyle = lipgloss.NewStyle().
			Foreground(console.MutedColor).
			PaddingLeft(2)

	// ErrorStyle is for scan failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(console.ErrorColor).
			Bold(true).
			PaddingLeft(2)

	HelpStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingTop(1)
)

// GetTerminalWidth returns the terminal width clamped to the supported range
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
