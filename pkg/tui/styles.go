// Package tui implements an interactive terminal walkthrough of a workflow:
// answer steps, watch visibility react, and submit sections through
// validation and lifecycle hooks, rendered as a Bubble Tea app.
package tui

import "github.com/charmbracelet/lipgloss"

// Step glyphs — convey state without relying on color alone.
const (
	GlyphPending  = "○"
	GlyphAnswered = "●"
	GlyphCursor   = "▸"
	GlyphRequired = "*"
	GlyphError    = "✗"
	GlyphValid    = "✓"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	stepCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	stepAnswered = lipgloss.NewStyle().
			Foreground(colorGreen)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	validStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)
