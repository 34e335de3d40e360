package mcp

import (
	"fmt"
	"sort"
	"time"

	"errlens-agent/src/contracts"
	"errlens-agent/src/sanitize"
)

// Limits applied to each summary to keep tool output small.
const (
	DefaultLimit    = 20
	MaxMessageChars = 500
	MaxStackFrames  = 8
)

// severityRank orders analyzed events before unanalyzed ones.
func severityRank(ev contracts.Event) int {
	if ev.Analysis == nil || ev.Status != contracts.StatusCompleted {
		return 5
	}
	switch ev.Analysis.Severity {
	case contracts.SeverityCritical:
		return 1
	case contracts.SeverityHigh:
		return 2
	case contracts.SeverityMedium:
		return 3
	case contracts.SeverityLow:
		return 4
	}
	return 5
}

// Summarize filters events (given most recent first) and converts them to
// summaries. Counts are taken before the limit is applied.
func Summarize(events []contracts.Event, f Filter) ErrorsResponse {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	resp := ErrorsResponse{
		ByStatus: make(map[string]int),
		Errors:   []ErrorSummary{},
	}

	var matched []contracts.Event
	for _, ev := range events {
		resp.ByStatus[string(ev.Status)]++
		if f.Status != "" && string(ev.Status) != f.Status {
			continue
		}
		if f.Category != "" && string(ev.Category) != f.Category {
			continue
		}
		matched = append(matched, ev)
	}
	resp.Total = len(matched)

	if f.BySeverity {
		sort.SliceStable(matched, func(i, j int) bool {
			return severityRank(matched[i]) < severityRank(matched[j])
		})
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}
	for _, ev := range matched {
		resp.Errors = append(resp.Errors, toSummary(ev))
	}
	resp.Returned = len(resp.Errors)
	return resp
}

func toSummary(ev contracts.Event) ErrorSummary {
	s := ErrorSummary{
		ID:        ev.ID,
		Type:      string(ev.Type),
		Category:  string(ev.Category),
		Status:    string(ev.Status),
		Message:   sanitize.Truncate(sanitize.Clean(ev.Message), MaxMessageChars),
		Page:      ev.OriginURL,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Stack:     compactStack(sanitize.Clean(ev.Stack), ev.Message, MaxStackFrames),
	}
	if ev.Filename != "" {
		s.Location = compressURL(fmt.Sprintf("%s:%d:%d", ev.Filename, ev.Lineno, ev.Colno))
	}
	if a := ev.Analysis; a != nil {
		if ev.Status == contracts.StatusFailed {
			s.Error = a.Error
		} else {
			s.Severity = string(a.Severity)
			s.Explanation = a.Explanation
			s.Cause = a.Cause
			s.Fix = a.Fix
		}
	}
	return s
}
