package main

import (
	"github.com/charmbracelet/lipgloss"

	"reviewpanel/internal/jsontree"
	"reviewpanel/internal/score"
)

type theme struct {
	Header     lipgloss.Style
	Frame      lipgloss.Style
	Panel      lipgloss.Style
	PanelFlash lipgloss.Style
	Muted      lipgloss.Style
	Accent     lipgloss.Style
	Success    lipgloss.Style
	Alert      lipgloss.Style
	Danger     lipgloss.Style
	Tab        lipgloss.Style
	TabActive  lipgloss.Style
	Badge      lipgloss.Style
	Overlay    lipgloss.Style
	OverlayBox lipgloss.Style
	JSON       jsontree.Palette
}

func defaultTheme() theme {
	accent := lipgloss.Color("#00FFFF")
	secondary := lipgloss.Color("#7D7D7D")
	success := lipgloss.Color("#00FF00")
	alert := lipgloss.Color("#FFBF00")
	danger := lipgloss.Color("#FF0055")

	return theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),
		PanelFlash: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(alert).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().
			Foreground(secondary),
		Accent: lipgloss.NewStyle().
			Foreground(accent),
		Success: lipgloss.NewStyle().
			Foreground(success),
		Alert: lipgloss.NewStyle().
			Foreground(alert),
		Danger: lipgloss.NewStyle().
			Foreground(danger),
		Tab: lipgloss.NewStyle().
			Foreground(secondary).
			Padding(0, 1),
		TabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Underline(true).
			Padding(0, 1),
		Badge: lipgloss.NewStyle().
			Bold(true).
			Foreground(alert),
		Overlay: lipgloss.NewStyle().
			Foreground(secondary),
		OverlayBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		JSON: jsontree.DefaultPalette(),
	}
}

// plainTheme renders without colour, for smoke output and golden tests.
func plainTheme() theme {
	th := defaultTheme()
	th.JSON = jsontree.PlainPalette()
	return th
}

// scoreStyle colours a score by its label band.
func (th theme) scoreStyle(v int) lipgloss.Style {
	switch score.Label(v) {
	case "Excellent", "Good":
		return th.Success
	case "Okay":
		return th.Alert
	case "Needs Work":
		return th.Danger
	default:
		return th.Muted
	}
}
