// Package ui holds the terminal styles shared by the CLI commands.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Renderer writes to stdout with the profile forced to TrueColor; lipgloss
// auto-detection leaves some terminals on the 16-color profile even when
// they support more.
var Renderer = func() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(termenv.TrueColor)
	return r
}()

func fg(color string) lipgloss.Style {
	return Renderer.NewStyle().Foreground(lipgloss.Color(color))
}

// Palette: green for headings and success, cyan for section labels, red for
// failures, dim for secondary text.
var (
	Green = fg("10").Bold(true)
	Cyan  = fg("14")
	Red   = fg("9").Bold(true)
	White = fg("15")
	Dim   = fg("244")
)
