// Package ui provides consistent styling for the emuwl CLI
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette - consistent across the application
var (
	// Primary colors
	ColorPrimary = lipgloss.Color("39")  // Bright blue
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	// Neutral colors
	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
	ColorMuted  = lipgloss.Color("238") // Dark gray

	// Status colors
	ColorValid   = ColorSuccess
	ColorInvalid = ColorError
)

var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorInfo)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Width(24)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	ValidIndicator = lipgloss.NewStyle().
			Foreground(ColorValid).
			Render("●")

	InvalidIndicator = lipgloss.NewStyle().
				Foreground(ColorInvalid).
				Render("○")
)

// FormatHeader renders a title over a separator.
func FormatHeader(title string) string {
	return HeaderStyle.Render(title) + "\n" + separator(50, "─")
}

// FormatSection renders a config section name like "[window]".
func FormatSection(name string) string {
	return SectionStyle.Render("[" + name + "]")
}

// FormatKeyValue renders one aligned setting line.
func FormatKeyValue(key string, value any) string {
	return "  " + KeyStyle.Render(key) + TextStyle.Render(fmt.Sprint(value))
}

// FormatStatus prefixes status with a valid or invalid dot.
func FormatStatus(valid bool, status string) string {
	indicator := InvalidIndicator
	if valid {
		indicator = ValidIndicator
	}
	return indicator + " " + status
}

// Table renders rows under headers with the application's table style.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return lipgloss.NewStyle().
					Foreground(ColorPrimary).
					Bold(true).
					Padding(0, 1)
			case col == 0:
				return lipgloss.NewStyle().
					Foreground(ColorInfo).
					Bold(true).
					Padding(0, 1)
			default:
				return lipgloss.NewStyle().
					Foreground(ColorText).
					Padding(0, 1)
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// separator creates a horizontal line separator
func separator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}
	return SubtleStyle.Render(strings.Repeat(char, width))
}
