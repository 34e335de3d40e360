package tui

import (
	"strings"
	"testing"

	"errlens-agent/src/contracts"
)

func TestView_NoLineExceedsTerminalWidth(t *testing.T) {
	long := testEvent("long", contracts.CategoryJavaScript, contracts.StatusCompleted,
		"TypeError: Cannot read properties of undefined (reading '"+strings.Repeat("veryLongPropertyName", 12)+"')")
	long.Filename = "https://cdn.example.com/" + strings.Repeat("assets/", 20) + "main.4f3a9c1b2d.js"
	long.Lineno = 1
	long.Colno = 48213
	long.Stack = "TypeError: boom\n    at render (" + long.Filename + ":1:48213)\n" + strings.Repeat("x", 300)
	long.Analysis = &contracts.Analysis{
		Severity:    contracts.SeverityCritical,
		Explanation: strings.Repeat("The component renders before its data arrives. ", 10),
		Fix:         strings.Repeat("a", 200),
	}

	for _, width := range []int{40, 80, 120} {
		m, _ := createTestModel(t, long)
		m = update(t, m, sizeMsg(width, 30))
		for i, line := range strings.Split(m.View(), "\n") {
			if w := VisualWidth(line); w > width {
				t.Errorf("width %d: line %d is %d columns: %q", width, i, w, line)
			}
		}
	}
}

func TestRenderDetail_FailedShowsRetryHint(t *testing.T) {
	ev := testEvent("bad", contracts.CategoryNetwork, contracts.StatusFailed, "HTTP 503")
	ev.Analysis = &contracts.Analysis{Error: "Invalid API key. Hint: check the key"}
	m, _ := createTestModel(t, ev)

	out := m.renderDetail(Item{Event: ev}, 60)
	if !strings.Contains(out, "ANALYSIS FAILED") || !strings.Contains(out, "Press r to retry") {
		t.Errorf("Expected failure section, got:\n%s", out)
	}
}
