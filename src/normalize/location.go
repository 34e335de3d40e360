package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Location is a best-effort source position parsed from stack text.
type Location struct {
	Filename string
	Lineno   int
	Colno    int
}

// IsZero reports whether no location was found.
func (l Location) IsZero() bool {
	return l.Filename == "" && l.Lineno == 0 && l.Colno == 0
}

// Stack frame conventions, tried in order against each line.
var locationPatterns = []*regexp.Regexp{
	// V8: "    at handleClick (https://app.example.com/main.js:10:15)"
	regexp.MustCompile(`^\s*at\s+(?:.+?)\s+\((.+?):(\d+):(\d+)\)\s*$`),
	// V8 anonymous: "    at https://app.example.com/main.js:10:15"
	regexp.MustCompile(`^\s*at\s+(.+?):(\d+):(\d+)\s*$`),
	// Firefox / Safari: "handleClick@https://app.example.com/main.js:10:15"
	regexp.MustCompile(`^\s*(?:[^@\s]*)@(.+?):(\d+):(\d+)\s*$`),
}

// ParseLocation scans stack line by line and returns the first frame that
// matches a known convention. No match yields the zero Location and false.
func ParseLocation(stack string) (Location, bool) {
	if stack == "" {
		return Location{}, false
	}
	for _, line := range strings.Split(stack, "\n") {
		for _, re := range locationPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			lineno, err1 := strconv.Atoi(m[2])
			colno, err2 := strconv.Atoi(m[3])
			if err1 != nil || err2 != nil {
				continue
			}
			return Location{Filename: m[1], Lineno: lineno, Colno: colno}, true
		}
	}
	return Location{}, false
}
