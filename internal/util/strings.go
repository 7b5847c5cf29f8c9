// Package util provides shared string helpers used across the codebase.
package util

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateString truncates a string to maxLen runes, adding "..." if
// truncated. Does not account for ANSI escape codes or wide characters;
// for styled terminal output use TruncateANSI instead.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateANSI truncates a string to maxWidth visual columns, adding "..."
// if truncated, preserving ANSI escape sequences and wide characters.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate includes the tail in the final width calculation
	return ansi.Truncate(s, maxWidth, "...")
}

// FirstLine returns the first non-blank line of a text, trimmed. Plan and
// transcript content spans many paragraphs; the live feed shows one line.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Summarize renders a multi-line text as a single feed line: the first
// non-blank line truncated to maxLen runes, with a line-count suffix when
// more content follows.
func Summarize(s string, maxLen int) string {
	first := FirstLine(s)
	if first == "" {
		return ""
	}
	summary := TruncateString(first, maxLen)
	if extra := countNonBlankLines(s) - 1; extra > 0 {
		summary += fmt.Sprintf(" (+%d more lines)", extra)
	}
	return summary
}

func countNonBlankLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
