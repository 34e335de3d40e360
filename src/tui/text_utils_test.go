package tui

import (
	"strings"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"short text", "hello world", 20, "hello world"},
		{"exact width", "hello world", 11, "hello world"},
		{"multiple lines", "hello world this is a test", 15, "hello world\nthis is a test"},
		{"long word", "abcdefghij", 4, "abcd\nefgh\nij"},
		{"long word after text", "hi abcdefgh", 4, "hi\nabcd\nefgh"},
		{"keeps line breaks", "at a\nat b", 20, "at a\nat b"},
		{"empty", "", 10, ""},
		{"zero width", "hello", 0, "hello"},
		{"wide runes", "日本語テキスト", 6, "日本語\nテキス\nト"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Wrap(tt.text, tt.width); got != tt.want {
				t.Errorf("Wrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestWrap_NoLineExceedsWidth(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog ", 10) + strings.Repeat("x", 130)
	for _, line := range strings.Split(Wrap(text, 37), "\n") {
		if VisualWidth(line) > 37 {
			t.Errorf("Line exceeds width: %q", line)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		max      int
		ellipsis bool
		want     string
	}{
		{"fits", "hello", 10, true, "hello"},
		{"ellipsis", "hello world", 8, true, "hello w…"},
		{"no ellipsis", "hello world", 8, false, "hello wo"},
		{"zero", "hello", 0, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.s, tt.max, tt.ellipsis); got != tt.want {
				t.Errorf("Truncate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateAndPad(t *testing.T) {
	if got := TruncateAndPad("ab", 5, false); got != "ab   " {
		t.Errorf("Expected padding, got %q", got)
	}
	if got := TruncateAndPad("abcdefgh", 5, false); got != "abcde" {
		t.Errorf("Expected truncation, got %q", got)
	}
}

func TestSingleLine(t *testing.T) {
	in := "\x1b[31m%cFailed\x1b[0m to load\n   resource"
	if got := SingleLine(in); got != "Failed to load resource" {
		t.Errorf("SingleLine() = %q", got)
	}
}

func TestClampLines(t *testing.T) {
	styled := "\x1b[1m" + strings.Repeat("a", 50) + "\x1b[0m\nshort"
	for _, line := range strings.Split(ClampLines(styled, 20), "\n") {
		if VisualWidth(line) > 20 {
			t.Errorf("Line not clamped: %q", line)
		}
	}
}
