// Package sanitize cleans captured text before it is stored or sent to the
// analysis model. It removes ANSI escape codes and console styling
// directives and bounds the length of free-form fields.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ANSI escape codes: \x1b[...m (SGR sequences)
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// Console CSS directive: console.log("%cstyled", "color: red")
	styleDirective = regexp.MustCompile(`%c`)
)

// StripANSI removes ANSI escape codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// StyleDirectives counts the %c directives in a console format string.
func StyleDirectives(s string) int {
	return len(styleDirective.FindAllStringIndex(s, -1))
}

// StripStyleDirectives removes %c directives from a console format string.
func StripStyleDirectives(s string) string {
	return styleDirective.ReplaceAllString(s, "")
}

// Clean strips ANSI codes, normalizes line endings and trims surrounding space.
func Clean(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most max bytes without splitting a rune,
// appending "…" when anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
