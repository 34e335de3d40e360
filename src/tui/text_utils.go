package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"errlens-agent/src/sanitize"
)

// VisualWidth returns the display width of text, ignoring ANSI sequences
// and accounting for wide characters.
func VisualWidth(s string) int {
	return ansi.StringWidth(s)
}

// SingleLine prepares captured text for a one-row cell: escape sequences
// and console style directives are removed and whitespace runs collapse.
func SingleLine(s string) string {
	s = sanitize.StripStyleDirectives(ansi.Strip(s))
	return strings.Join(strings.Fields(s), " ")
}

// Truncate truncates text to maxLen columns with optional ellipsis.
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	if maxLen <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	if ellipsis && maxLen > 1 {
		return runewidth.Truncate(s, maxLen, "…")
	}
	return runewidth.Truncate(s, maxLen, "")
}

// TruncateAndPad truncates text and pads it to exactly width columns.
// Used for table cells to maintain consistent column widths.
func TruncateAndPad(s string, width int, ellipsis bool) string {
	return runewidth.FillRight(Truncate(s, width, ellipsis), width)
}

// ClampLines cuts every line of a rendered block to width columns,
// keeping ANSI styling intact.
func ClampLines(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if ansi.StringWidth(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// Wrap wraps each line of text to width, breaking on spaces and splitting
// words longer than width. Existing line breaks are kept.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	var out []string
	var cur strings.Builder
	curWidth := 0
	flush := func() {
		out = append(out, cur.String())
		cur.Reset()
		curWidth = 0
	}

	for _, word := range words {
		for runewidth.StringWidth(word) > width {
			if curWidth > 0 {
				flush()
			}
			chunk := runewidth.Truncate(word, width, "")
			if chunk == "" {
				// a single rune wider than the line
				_, size := utf8.DecodeRuneInString(word)
				chunk = word[:size]
			}
			out = append(out, chunk)
			word = word[len(chunk):]
		}
		if word == "" {
			continue
		}

		w := runewidth.StringWidth(word)
		switch {
		case curWidth == 0:
		case curWidth+1+w <= width:
			cur.WriteByte(' ')
			curWidth++
		default:
			flush()
		}
		cur.WriteString(word)
		curWidth += w
	}
	if curWidth > 0 {
		flush()
	}
	return out
}
