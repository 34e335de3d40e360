// Package gate decides whether capture is active for a page host.
package gate

import (
	"regexp"
	"strings"
)

// Gate checks hosts against a configured list of glob patterns.
// A zero Gate allows nothing.
type Gate struct {
	enabled  bool
	patterns []*regexp.Regexp
	raw      []string
}

// New compiles patterns. '*' matches any run of characters; everything else
// is literal. Matching is case-insensitive and anchored at both ends.
// Blank patterns are skipped.
func New(enabled bool, patterns []string) *Gate {
	g := &Gate{enabled: enabled}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g.raw = append(g.raw, p)
		g.patterns = append(g.patterns, compile(p))
	}
	return g
}

func compile(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("(?i)^" + strings.Join(parts, ".*") + "$")
}

// Allowed reports whether capture should run on host: the gate must be
// enabled and at least one pattern must match the full host.
func (g *Gate) Allowed(host string) bool {
	if g == nil || !g.enabled {
		return false
	}
	host = strings.TrimSpace(host)
	for _, re := range g.patterns {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// Match returns the first pattern matching host, ignoring the enabled flag.
// Used for diagnostics in domain-check responses.
func (g *Gate) Match(host string) (string, bool) {
	if g == nil {
		return "", false
	}
	host = strings.TrimSpace(host)
	for i, re := range g.patterns {
		if re.MatchString(host) {
			return g.raw[i], true
		}
	}
	return "", false
}

// Enabled reports the global switch.
func (g *Gate) Enabled() bool {
	return g != nil && g.enabled
}

// Patterns returns the configured patterns.
func (g *Gate) Patterns() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.raw...)
}
