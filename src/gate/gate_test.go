package gate

import "testing"

func TestGate_Allowed(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		patterns []string
		host     string
		want     bool
	}{
		{"wildcard subdomain", true, []string{"*.staging.*"}, "app.staging.example.com", true},
		{"no matching pattern", true, []string{"*.staging.*"}, "example.com", false},
		{"empty list", true, nil, "example.com", false},
		{"disabled", false, []string{"*"}, "example.com", false},
		{"exact", true, []string{"localhost"}, "localhost", true},
		{"case insensitive", true, []string{"App.Example.COM"}, "app.example.com", true},
		{"anchored start", true, []string{"example.com"}, "evil-example.com", false},
		{"anchored end", true, []string{"example.com"}, "example.com.evil.net", false},
		{"dot is literal", true, []string{"example.com"}, "exampleXcom", false},
		{"star matches empty run", true, []string{"*example.com"}, "example.com", true},
		{"regex metachars literal", true, []string{"a+b.com"}, "aab.com", false},
		{"second pattern", true, []string{"foo.com", "*.bar.com"}, "x.bar.com", true},
		{"blank pattern skipped", true, []string{"  "}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.enabled, tt.patterns)
			if got := g.Allowed(tt.host); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestGate_NilIsClosed(t *testing.T) {
	var g *Gate
	if g.Allowed("localhost") {
		t.Error("Expected nil gate to disallow")
	}
}

func TestGate_Match(t *testing.T) {
	g := New(false, []string{"foo.com", "*.example.com"})
	p, ok := g.Match("www.example.com")
	if !ok || p != "*.example.com" {
		t.Errorf("Match() = %q, %v", p, ok)
	}
	if g.Allowed("www.example.com") {
		t.Error("Match ignores the switch but Allowed must not")
	}
}

func TestGate_MatchTrimsLikeAllowed(t *testing.T) {
	g := New(true, []string{"app.example.com", "*.test.io"})
	tests := []struct {
		name string
		host string
	}{
		{"leading and trailing spaces", "  app.example.com "},
		{"tab and newline", "\tapi.test.io\n"},
		{"no padding", "app.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, matched := g.Match(tt.host)
			allowed := g.Allowed(tt.host)
			if !matched || !allowed {
				t.Errorf("Match() = %v, Allowed() = %v for %q", matched, allowed, tt.host)
			}
		})
	}
}
