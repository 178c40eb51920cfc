// Package tui holds the lipgloss styles shared by storemigrate's terminal
// screens.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.AdaptiveColor{Light: "30", Dark: "86"}
	green  = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	red    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	amber  = lipgloss.AdaptiveColor{Light: "172", Dark: "214"}
	blue   = lipgloss.AdaptiveColor{Light: "25", Dark: "75"}
	muted  = lipgloss.AdaptiveColor{Light: "245", Dark: "240"}
)

// Styles used directly by models.
var (
	Label   = lipgloss.NewStyle().Foreground(muted)
	Spinner = lipgloss.NewStyle().Foreground(accent)
	Info    = lipgloss.NewStyle().Foreground(blue)
	Error   = lipgloss.NewStyle().Foreground(red).Bold(true)

	// Box frames a whole screen.
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Padding(1, 2)

	header  = lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	section = lipgloss.NewStyle().Foreground(accent).Bold(true).MarginTop(1)
	success = lipgloss.NewStyle().Foreground(green).Bold(true)
	warning = lipgloss.NewStyle().Foreground(amber)
	tip     = lipgloss.NewStyle().
		Foreground(blue).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(blue).
		Padding(0, 1).
		MarginTop(1)
	hint = lipgloss.NewStyle().Foreground(muted).Italic(true).MarginTop(1)
)

const (
	IconStore   = "🗄"
	IconCheck   = "✓"
	IconCross   = "✗"
	IconWarning = "⚠"
	IconTip     = "💡"
	IconWait    = "⏳"
)

func Header(text string) string { return header.Render(IconStore + " " + text) }

func Section(text string) string { return section.Render(text) }

func Success(text string) string { return success.Render(IconCheck + " " + text) }

func Failure(text string) string { return Error.Render(IconCross + " " + text) }

func Warning(text string) string { return warning.Render(IconWarning + " " + text) }

// Tip renders text in a framed call-out.
func Tip(text string) string { return tip.Render(IconTip + " " + text) }

// Hint renders the key help line at the bottom of a screen.
func Hint(text string) string { return hint.Render(text) }
