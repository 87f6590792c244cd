// Package util holds small text helpers shared by the CLI and the TUI.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// FirstLine returns the first non-blank line of s with surrounding space
// removed.
func FirstLine(s string) string {
	for line := range strings.Lines(s) {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// Truncate shortens s to at most width terminal columns, ending with Ellipsis
// when anything was cut. Escape sequences take no columns and wide runes take
// two, so styled text can be passed in.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, Ellipsis)
}
