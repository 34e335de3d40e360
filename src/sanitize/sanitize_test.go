package sanitize

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"colored console error", "\x1b[31mTypeError\x1b[0m: x is undefined\r\n", "TypeError: x is undefined"},
		{"nested sgr", "\x1b[1m\x1b[33mwarn\x1b[0m deprecated api", "warn deprecated api"},
		{"crlf stack", "Error: boom\r\n    at f (app.js:1:2)\r", "Error: boom\n    at f (app.js:1:2)"},
		{"plain", "  Failed to fetch  ", "Failed to fetch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripANSI_LeavesBracketsAlone(t *testing.T) {
	in := "arr[0m] is not \x1b[0mansi"
	if got := StripANSI(in); got != "arr[0m] is not ansi" {
		t.Errorf("StripANSI(%q) = %q", in, got)
	}
}

func TestStyleDirectives(t *testing.T) {
	format := "%c[App]%c render failed: %s"
	if n := StyleDirectives(format); n != 2 {
		t.Errorf("StyleDirectives(%q) = %d, want 2", format, n)
	}
	if got := StripStyleDirectives(format); got != "[App] render failed: %s" {
		t.Errorf("StripStyleDirectives(%q) = %q", format, got)
	}
	if n := StyleDirectives("100% complete"); n != 0 {
		t.Errorf("Expected no directives in plain percent text, got %d", n)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc…"},
		{"aéb", 2, "a…"}, // é is two bytes
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
