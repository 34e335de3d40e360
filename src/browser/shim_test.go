package browser

import (
	"testing"
	"time"

	"errlens-agent/src/capture"
)

func TestDispatchShimEntries(t *testing.T) {
	reg, rec := installedRegistry(t)

	raw := []byte(`[
		{"kind":"longtask","name":"self","duration":120.5,"startTime":10,"attribution":"iframe.html"},
		{"kind":"longtask","name":"self","duration":20},
		{"kind":"layoutshift","value":0.25,"hadRecentInput":false,"sources":["DIV","IMG"]},
		{"kind":"layoutshift","value":0.5,"hadRecentInput":true},
		{"kind":"csp","violatedDirective":"script-src","effectiveDirective":"script-src","blockedURI":"https://evil.test/x.js","disposition":"enforce"},
		{"kind":"report","type":"deprecation","id":"UnloadHandler","message":"unload is deprecated","sourceFile":"app.js","lineNumber":3},
		{"kind":"report","type":"crash","message":"ignored"},
		{"kind":"mystery"}
	]`)
	entries, err := decodeEntries(raw)
	if err != nil {
		t.Fatalf("decodeEntries() error: %v", err)
	}
	for _, e := range entries {
		dispatchShimEntry(reg, e)
	}

	got := rec.all()
	if len(got) != 4 {
		t.Fatalf("Expected 4 signals after thresholds, got %d", len(got))
	}
	if lt := got[0].LongTask; lt == nil || lt.Duration != 120500*time.Microsecond || lt.Attribution != "iframe.html" {
		t.Errorf("Unexpected long task: %+v", got[0].LongTask)
	}
	if ls := got[1].LayoutShift; ls == nil || ls.Value != 0.25 || len(ls.Sources) != 2 {
		t.Errorf("Unexpected layout shift: %+v", got[1].LayoutShift)
	}
	if csp := got[2].CSP; csp == nil || csp.BlockedURI != "https://evil.test/x.js" {
		t.Errorf("Unexpected CSP violation: %+v", got[2].CSP)
	}
	if rep := got[3].Report; rep == nil || rep.Kind != capture.ReportDeprecation || rep.LineNumber != 3 {
		t.Errorf("Unexpected report: %+v", got[3].Report)
	}
}

func TestDecodeEntries_Invalid(t *testing.T) {
	if _, err := decodeEntries([]byte(`{"kind":"longtask"}`)); err == nil {
		t.Error("Expected error for non-array payload")
	}
}
