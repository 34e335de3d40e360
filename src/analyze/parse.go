package analyze

import (
	"encoding/json"
	"strings"

	"errlens-agent/src/contracts"
)

// ParseAnalysis extracts the first balanced JSON object from model output
// and decodes it as an analysis. Missing fields stay empty; a missing or
// unknown severity becomes medium. When no object decodes, the whole text
// becomes the explanation and ok is false.
func ParseAnalysis(text string) (a contracts.Analysis, ok bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if obj, end := balancedObject(text[start:]); end > 0 {
			var parsed struct {
				Severity    string `json:"severity"`
				Explanation string `json:"explanation"`
				Cause       string `json:"cause"`
				Fix         string `json:"fix"`
				Prevention  string `json:"prevention"`
			}
			if err := json.Unmarshal([]byte(obj), &parsed); err == nil {
				a = contracts.Analysis{
					Severity:    contracts.Severity(strings.ToLower(strings.TrimSpace(parsed.Severity))),
					Explanation: parsed.Explanation,
					Cause:       parsed.Cause,
					Fix:         parsed.Fix,
					Prevention:  parsed.Prevention,
				}
				if !a.Severity.Valid() {
					a.Severity = contracts.SeverityMedium
				}
				return a, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return contracts.Analysis{
		Severity:    contracts.SeverityMedium,
		Explanation: strings.TrimSpace(text),
	}, false
}

// balancedObject returns the JSON object starting at s[0] and its length,
// honoring string literals and escapes. end is 0 when the braces never balance.
func balancedObject(s string) (obj string, end int) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], i + 1
			}
		}
	}
	return "", 0
}
