package mcp

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Content hashes in bundle names and build ids.
	hashPattern = regexp.MustCompile(`\b[a-f0-9]{12,}\b`)

	// Script URLs with at least one directory; group 1 is the file name
	// plus any :line:col suffix.
	scriptURLPattern = regexp.MustCompile(`(?:https?|webpack|file)://[^\s()]*/([^/\s():]+(?::\d+){0,2})`)

	spaceRun = regexp.MustCompile(`\s+`)
)

// vendorMarkers identify frames from dependencies rather than app code.
var vendorMarkers = []string{"/node_modules/", "/vendor.", "/chunk-vendors.", "/framework."}

// minPrefixLength is the shortest shared prefix worth replacing with "...".
const minPrefixLength = 20

func maskHashes(line string) string {
	return hashPattern.ReplaceAllString(line, "<HASH>")
}

// compressURL shortens script URLs to .../file.js:line:col.
func compressURL(line string) string {
	return scriptURLPattern.ReplaceAllString(line, ".../$1")
}

func isVendorFrame(line string) bool {
	for _, m := range vendorMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// sharedPrefix returns the longest prefix common to every line, or "" when
// there are fewer than two lines or the prefix is too short to matter.
func sharedPrefix(lines []string) string {
	if len(lines) < 2 {
		return ""
	}
	prefix := lines[0]
	for _, line := range lines[1:] {
		n := 0
		for n < len(prefix) && n < len(line) && prefix[n] == line[n] {
			n++
		}
		prefix = prefix[:n]
	}
	if len(prefix) < minPrefixLength {
		return ""
	}
	return prefix
}

// compactStack turns a stack trace into at most maxFrames short lines for
// tool output. The first line is dropped when it repeats message. Runs of
// dependency frames collapse into one "(n vendor frames)" line, script URLs
// are shortened and hashes masked.
func compactStack(stack, message string, maxFrames int) []string {
	var frames []string
	vendor := 0
	flush := func() {
		if vendor > 0 {
			frames = append(frames, fmt.Sprintf("(%d vendor frames)", vendor))
			vendor = 0
		}
	}

	for i, raw := range strings.Split(stack, "\n") {
		line := strings.TrimSpace(spaceRun.ReplaceAllString(raw, " "))
		switch {
		case line == "":
			continue
		case i == 0 && message != "" && strings.Contains(message, line):
			continue
		case isVendorFrame(line):
			vendor++
			continue
		}
		flush()
		frames = append(frames, maskHashes(compressURL(line)))
	}
	flush()

	if p := sharedPrefix(frames); p != "" {
		for i := range frames {
			frames[i] = "... " + frames[i][len(p):]
		}
	}
	if maxFrames > 0 && len(frames) > maxFrames {
		frames = append(frames[:maxFrames], "...")
	}
	return frames
}
