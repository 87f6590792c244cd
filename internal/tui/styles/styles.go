// Package styles holds the lipgloss styles shared by taskbridge's terminal output.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)

	// Status colors
	StatusPending = lipgloss.Color("#9CA3AF") // Gray
	StatusRunning = lipgloss.Color("#60A5FA") // Blue
	StatusReady   = lipgloss.Color("#10B981") // Green
	StatusApplied = lipgloss.Color("#A78BFA") // Purple
	StatusPartial = lipgloss.Color("#F59E0B") // Amber
	StatusError   = lipgloss.Color("#F87171") // Red

	Title = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)

	Subtitle = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)

	// Table header row in listings
	TableHeader = lipgloss.NewStyle().Bold(true).Foreground(MutedColor)

	// Help bar
	HelpBar = lipgloss.NewStyle().Foreground(MutedColor).MarginTop(1)

	HelpKey = lipgloss.NewStyle().Bold(true).Foreground(SecondaryColor)

	ListItem = lipgloss.NewStyle().Padding(0, 1)

	ListItemActive = lipgloss.NewStyle().Bold(true).Foreground(TextColor).Background(PrimaryColor).Padding(0, 1)

	PinnedBadge = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)

	SearchPrompt = lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true)

	ErrorMsg = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)

	SuccessMsg = lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true)

	WarningMsg = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)

	// Diff highlighting
	DiffAdd = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))

	DiffRemove = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))

	DiffHeader = lipgloss.NewStyle().Foreground(BlueColor).Bold(true)

	DiffHunk = lipgloss.NewStyle().Foreground(PrimaryColor)
)

// StatusColor returns the color for a task, attempt, or apply status.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return StatusPending
	case "in-progress":
		return StatusRunning
	case "ready", "completed", "success":
		return StatusReady
	case "applied":
		return StatusApplied
	case "partial", "cancelled":
		return StatusPartial
	case "error", "failed":
		return StatusError
	default:
		return MutedColor
	}
}

// StatusIcon returns an icon for a task, attempt, or apply status.
func StatusIcon(status string) string {
	switch status {
	case "pending":
		return "○"
	case "in-progress":
		return "●"
	case "ready", "completed", "success":
		return "✓"
	case "applied":
		return "↓"
	case "partial":
		return "◐"
	case "cancelled":
		return "⊘"
	case "error", "failed":
		return "✗"
	default:
		return "·"
	}
}

// Status renders status with its icon and color.
func Status(status string) string {
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(StatusIcon(status) + " " + status)
}

// DiffLine colors a single line of a unified diff.
func DiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "index "),
		strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "):
		return DiffHeader.Render(line)
	case strings.HasPrefix(line, "@@"):
		return DiffHunk.Render(line)
	case strings.HasPrefix(line, "+"):
		return DiffAdd.Render(line)
	case strings.HasPrefix(line, "-"):
		return DiffRemove.Render(line)
	default:
		return line
	}
}
