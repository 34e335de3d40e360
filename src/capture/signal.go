// Package capture is the instrumentation registry: a fixed set of hooks that
// wrap runtime primitives, forward their behavior unchanged and emit raw
// fault signals.
package capture

import "time"

// Hook names one instrumented primitive.
type Hook string

const (
	HookConsole     Hook = "console"
	HookError       Hook = "error"
	HookRejection   Hook = "rejection"
	HookNetwork     Hook = "network"
	HookDOM         Hook = "dom"
	HookLongTask    Hook = "longtask"
	HookLayoutShift Hook = "layoutshift"
	HookCSP         Hook = "csp"
	HookReport      Hook = "report"
)

// allHooks is the enumerable hook set in install order.
var allHooks = []Hook{
	HookConsole, HookError, HookRejection, HookNetwork, HookDOM,
	HookLongTask, HookLayoutShift, HookCSP, HookReport,
}

// SelfMarker prefixes diagnostic lines written by errlens itself.
// Console calls starting with it are never captured.
const SelfMarker = "[ErrLens]"

// Signal is a raw fault observation. Exactly one payload field matching
// Hook is set.
type Signal struct {
	Hook Hook
	At   time.Time

	Console     *ConsoleCall
	Error       *ErrorEvent
	Rejection   *RejectionEvent
	Network     *NetworkCall
	DOM         *DOMFailure
	LongTask    *LongTaskEntry
	LayoutShift *LayoutShiftEntry
	CSP         *CSPViolation
	Report      *Report
}

// ConsoleLevel is the console method that was called.
type ConsoleLevel string

const (
	ConsoleError ConsoleLevel = "error"
	ConsoleWarn  ConsoleLevel = "warn"
)

// ConsoleCall is one console.error / console.warn invocation.
type ConsoleCall struct {
	Level ConsoleLevel
	Args  []any
	// Stack is the call-site stack when the host can provide one.
	Stack string
}

// ErrorEvent is a global error event. When ResourceURL is set the event is a
// failed resource load (script, image, stylesheet) rather than a thrown error.
type ErrorEvent struct {
	Message  string
	Filename string
	Lineno   int
	Colno    int
	Err      error
	Stack    string

	ResourceURL string
	ResourceTag string
}

// RejectionEvent is an unhandled promise rejection. Reason is whatever value
// the promise was rejected with.
type RejectionEvent struct {
	Reason any
	Stack  string
}

// NetworkCall describes a finished request that crossed one of the network
// thresholds.
type NetworkCall struct {
	Method   string
	URL      string
	Status   int
	Duration time.Duration
	Err      error
	Timeout  bool
	// Initiator is "fetch", "xhr", "roundtripper" or similar.
	Initiator string
}

// Failed reports whether the call ended in a transport error or an HTTP error status.
func (c NetworkCall) Failed() bool {
	return c.Err != nil || c.Timeout || c.Status >= 400
}

// DOMFailure is an error returned or a panic raised by a guarded DOM operation.
type DOMFailure struct {
	Operation string
	Err       error
	Panic     any
	Stack     string
}

// LongTaskEntry is a main-thread task that ran longer than the long-task threshold.
type LongTaskEntry struct {
	Name        string
	Duration    time.Duration
	StartTime   time.Duration
	Attribution string
}

// LayoutShiftEntry is one layout-shift performance entry.
type LayoutShiftEntry struct {
	Value          float64
	HadRecentInput bool
	Sources        []string
}

// CSPViolation mirrors the securitypolicyviolation event.
type CSPViolation struct {
	ViolatedDirective  string
	EffectiveDirective string
	BlockedURI         string
	SourceFile         string
	LineNumber         int
	ColumnNumber       int
	Disposition        string
	Sample             string
}

// ReportKind is the reporting-channel report type.
type ReportKind string

const (
	ReportDeprecation  ReportKind = "deprecation"
	ReportIntervention ReportKind = "intervention"
)

// Report is a browser deprecation or intervention report.
type Report struct {
	Kind         ReportKind
	ID           string
	Message      string
	SourceFile   string
	LineNumber   int
	ColumnNumber int
	URL          string
}
