package browser

import (
	"time"

	"errlens-agent/src/capture"
)

// observerShim installs the in-page observers DevTools does not report as
// events: long tasks, layout shifts, CSP violations and reporting-API
// deprecations and interventions. Entries are buffered on window and
// drained by drainScript.
const observerShim = `() => {
	const w = window;
	if (w.__errlensHooked) return true;
	w.__errlensHooked = true;
	w.__errlensEvents = [];
	const push = (e) => { if (w.__errlensEvents.length < 500) w.__errlensEvents.push(e); };

	try {
		new PerformanceObserver((list) => {
			for (const e of list.getEntries()) {
				const a = (e.attribution && e.attribution[0]) || {};
				push({ kind: 'longtask', name: e.name, duration: e.duration, startTime: e.startTime,
					attribution: a.containerSrc || a.containerName || a.name || '' });
			}
		}).observe({ type: 'longtask', buffered: true });
	} catch (e) {}

	try {
		new PerformanceObserver((list) => {
			for (const e of list.getEntries()) {
				const sources = (e.sources || []).map((s) => (s.node && s.node.nodeName) || '').filter(Boolean);
				push({ kind: 'layoutshift', value: e.value, hadRecentInput: !!e.hadRecentInput, sources });
			}
		}).observe({ type: 'layout-shift', buffered: true });
	} catch (e) {}

	document.addEventListener('securitypolicyviolation', (e) => {
		push({ kind: 'csp', violatedDirective: e.violatedDirective, effectiveDirective: e.effectiveDirective,
			blockedURI: e.blockedURI, sourceFile: e.sourceFile, lineNumber: e.lineNumber,
			columnNumber: e.columnNumber, disposition: e.disposition, sample: e.sample });
	}, true);

	if (typeof ReportingObserver === 'function') {
		try {
			new ReportingObserver((reports) => {
				for (const r of reports) {
					const b = r.body || {};
					push({ kind: 'report', type: r.type, id: b.id || '', message: b.message || '',
						sourceFile: b.sourceFile || '', lineNumber: b.lineNumber || 0,
						columnNumber: b.columnNumber || 0, url: r.url || '' });
				}
			}, { types: ['deprecation', 'intervention'], buffered: true }).observe();
		} catch (e) {}
	}
	return true;
}`

// drainScript returns and empties the shim buffer.
const drainScript = `() => {
	const buf = Array.isArray(window.__errlensEvents) ? window.__errlensEvents : [];
	window.__errlensEvents = [];
	return buf;
}`

// shimEntry is one buffered observer entry. Times are in milliseconds.
type shimEntry struct {
	Kind string `json:"kind"`

	Name        string   `json:"name"`
	Duration    float64  `json:"duration"`
	StartTime   float64  `json:"startTime"`
	Attribution string   `json:"attribution"`
	Value       float64  `json:"value"`
	RecentInput bool     `json:"hadRecentInput"`
	Sources     []string `json:"sources"`

	ViolatedDirective  string `json:"violatedDirective"`
	EffectiveDirective string `json:"effectiveDirective"`
	BlockedURI         string `json:"blockedURI"`
	SourceFile         string `json:"sourceFile"`
	LineNumber         int    `json:"lineNumber"`
	ColumnNumber       int    `json:"columnNumber"`
	Disposition        string `json:"disposition"`
	Sample             string `json:"sample"`

	Type    string `json:"type"`
	ID      string `json:"id"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// dispatchShimEntry routes one observer entry to its hook. Thresholds are
// applied by the registry.
func dispatchShimEntry(reg *capture.Registry, e shimEntry) {
	switch e.Kind {
	case "longtask":
		reg.ObserveLongTask(capture.LongTaskEntry{
			Name:        e.Name,
			Duration:    millis(e.Duration),
			StartTime:   millis(e.StartTime),
			Attribution: e.Attribution,
		})
	case "layoutshift":
		reg.ObserveLayoutShift(capture.LayoutShiftEntry{
			Value:          e.Value,
			HadRecentInput: e.RecentInput,
			Sources:        e.Sources,
		})
	case "csp":
		reg.OnSecurityPolicyViolation(capture.CSPViolation{
			ViolatedDirective:  e.ViolatedDirective,
			EffectiveDirective: e.EffectiveDirective,
			BlockedURI:         e.BlockedURI,
			SourceFile:         e.SourceFile,
			LineNumber:         e.LineNumber,
			ColumnNumber:       e.ColumnNumber,
			Disposition:        e.Disposition,
			Sample:             e.Sample,
		})
	case "report":
		reg.OnReport(capture.Report{
			Kind:         capture.ReportKind(e.Type),
			ID:           e.ID,
			Message:      e.Message,
			SourceFile:   e.SourceFile,
			LineNumber:   e.LineNumber,
			ColumnNumber: e.ColumnNumber,
			URL:          e.URL,
		})
	}
}
