// Package cli provides shared formatting helpers for the radioscan CLI:
// column-aligned tables and ANSI color wrappers for run summaries.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when the NO_COLOR env var is set (no-color.org),
// so summaries piped into files or cron mail stay plain text.
var colorEnabled = os.Getenv("NO_COLOR") == ""

// Green wraps s in ANSI green, or returns it unchanged when color is off.
func Green(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

// Yellow wraps s in ANSI yellow, or returns it unchanged when color is off.
func Yellow(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

// Red wraps s in ANSI red, or returns it unchanged when color is off.
func Red(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

// Bold wraps s in ANSI bold, or returns it unchanged when color is off.
func Bold(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

// Dim wraps s in ANSI dim, or returns it unchanged when color is off.
func Dim(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}

// DotPad pads name with dots out to width, leader style:
// DotPad("rooftop-east", 20) → "rooftop-east ......."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}
