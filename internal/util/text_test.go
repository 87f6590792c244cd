package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fix the build", "Fix the build"},
		{"Fix the build\nand the tests", "Fix the build"},
		{"\n\n  Fix the build  \r\nmore", "Fix the build"},
		{"   \n\t\n", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FirstLine(tt.in); got != tt.want {
			t.Errorf("FirstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "hello", 5, "hello"},
		{"cut", "hello world", 6, "hello…"},
		{"zero width", "hello", 0, ""},
		{"wide runes", "日本語テキスト", 5, "日本…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.width); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncate_StyledText(t *testing.T) {
	styled := "\x1b[1mbold text here\x1b[0m"
	got := Truncate(styled, 8)
	if w := lipgloss.Width(got); w > 8 {
		t.Errorf("width = %d, want <= 8 (%q)", w, got)
	}
	if Truncate(styled, 20) != styled {
		t.Error("styled text that fits should be unchanged")
	}
}
