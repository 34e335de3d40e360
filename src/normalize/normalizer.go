// Package normalize converts raw capture signals into canonical events.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"errlens-agent/src/capture"
	"errlens-agent/src/contracts"
	"errlens-agent/src/sanitize"
)

// maxMessageLen bounds the message of a single event.
const maxMessageLen = 2000

// Context is the page state stamped onto every event.
type Context struct {
	OriginURL string
	UserAgent string
	Viewport  contracts.Viewport
}

// Normalizer builds events for one page load.
type Normalizer struct {
	ctx Context
	now func() time.Time
}

// New creates a Normalizer bound to a page context.
func New(ctx Context) *Normalizer {
	return &Normalizer{ctx: ctx, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// stackTracer is implemented by errors that carry their own stack text.
type stackTracer interface {
	StackTrace() string
}

// Normalize converts one signal. It never fails: unknown or empty signals
// produce a console_error event describing what arrived.
func (n *Normalizer) Normalize(s capture.Signal) contracts.Event {
	ev := contracts.Event{
		Source:    string(s.Hook),
		Metadata:  map[string]any{},
		OriginURL: n.ctx.OriginURL,
		Timestamp: n.now(),
		UserAgent: n.ctx.UserAgent,
		Viewport:  n.ctx.Viewport,
	}

	switch {
	case s.Console != nil:
		n.console(&ev, s.Console)
	case s.Error != nil:
		n.errorEvent(&ev, s.Error)
	case s.Rejection != nil:
		n.rejection(&ev, s.Rejection)
	case s.Network != nil:
		n.network(&ev, s.Network)
	case s.DOM != nil:
		n.dom(&ev, s.DOM)
	case s.LongTask != nil:
		n.longTask(&ev, s.LongTask)
	case s.LayoutShift != nil:
		n.layoutShift(&ev, s.LayoutShift)
	case s.CSP != nil:
		n.csp(&ev, s.CSP)
	case s.Report != nil:
		n.report(&ev, s.Report)
	default:
		ev.Type = contracts.TypeConsoleError
		ev.Category = contracts.CategoryJavaScript
		ev.Message = fmt.Sprintf("empty %s signal", s.Hook)
	}

	ev.Message = sanitize.Truncate(sanitize.Clean(ev.Message), maxMessageLen)
	if ev.Filename == "" && ev.Stack != "" {
		if loc, ok := ParseLocation(ev.Stack); ok {
			ev.Filename, ev.Lineno, ev.Colno = loc.Filename, loc.Lineno, loc.Colno
		}
	}
	ev.Metadata["classification"] = string(Classify(ev.Message))
	return ev
}

func (n *Normalizer) console(ev *contracts.Event, c *capture.ConsoleCall) {
	ev.Type = contracts.TypeConsoleError
	if c.Level == capture.ConsoleWarn {
		ev.Type = contracts.TypeConsoleWarning
	}
	ev.Message = Message(c.Args)
	ev.Stack = c.Stack
	if st := firstStack(c.Args); st != "" && ev.Stack == "" {
		ev.Stack = st
	}
	ev.Category = Classify(ev.Message).Category()
	ev.Metadata["level"] = string(c.Level)
}

func (n *Normalizer) errorEvent(ev *contracts.Event, e *capture.ErrorEvent) {
	if e.ResourceURL != "" {
		ev.Type = contracts.TypeResourceError
		ev.Category = contracts.CategoryNetwork
		tag := e.ResourceTag
		if tag == "" {
			tag = "resource"
		}
		ev.Message = fmt.Sprintf("Failed to load %s: %s", strings.ToLower(tag), e.ResourceURL)
		ev.Metadata["tagName"] = tag
		ev.Metadata["url"] = e.ResourceURL
		return
	}
	ev.Type = contracts.TypeUncaughtException
	ev.Category = contracts.CategoryJavaScript
	ev.Message = e.Message
	if !isNil(e.Err) {
		ev.Message = e.Err.Error()
	}
	ev.Stack = e.Stack
	if ev.Stack == "" {
		ev.Stack = stackOf(e.Err)
	}
	ev.Filename, ev.Lineno, ev.Colno = e.Filename, e.Lineno, e.Colno
}

func (n *Normalizer) rejection(ev *contracts.Event, r *capture.RejectionEvent) {
	ev.Type = contracts.TypeUnhandledRejection
	ev.Category = contracts.CategoryJavaScript
	ev.Stack = r.Stack
	if err, ok := r.Reason.(error); ok && ev.Stack == "" {
		ev.Stack = stackOf(err)
	}
	ev.Message = Message([]any{r.Reason})
	if ev.Message == "" {
		ev.Message = "Unhandled promise rejection"
	}
}

func (n *Normalizer) network(ev *contracts.Event, c *capture.NetworkCall) {
	ev.Category = contracts.CategoryNetwork
	method := c.Method
	if method == "" {
		method = "GET"
	}
	ms := c.Duration.Milliseconds()
	switch {
	case c.Timeout:
		ev.Type = contracts.TypeNetworkTimeout
		ev.Message = fmt.Sprintf("%s %s timed out after %dms", method, c.URL, ms)
	case c.Err != nil:
		ev.Type = contracts.TypeNetworkError
		ev.Message = fmt.Sprintf("%s %s failed: %v", method, c.URL, c.Err)
	case c.Status >= 400:
		ev.Type = contracts.TypeNetworkError
		ev.Message = fmt.Sprintf("%s %s failed with status %d", method, c.URL, c.Status)
	default:
		ev.Type = contracts.TypeNetworkSlow
		ev.Message = fmt.Sprintf("Slow request: %s %s took %dms", method, c.URL, ms)
	}
	ev.Metadata["method"] = method
	ev.Metadata["url"] = c.URL
	ev.Metadata["duration"] = ms
	if c.Status != 0 {
		ev.Metadata["status"] = c.Status
	}
	if c.Initiator != "" {
		ev.Metadata["initiator"] = c.Initiator
	}
}

func (n *Normalizer) dom(ev *contracts.Event, d *capture.DOMFailure) {
	ev.Type = contracts.TypeDOMError
	ev.Category = contracts.CategoryDOM
	switch {
	case !isNil(d.Err):
		ev.Message = d.Err.Error()
		ev.Stack = stackOf(d.Err)
	case d.Panic != nil:
		ev.Message = fmt.Sprint(d.Panic)
	default:
		ev.Message = "DOM operation failed"
	}
	if d.Operation != "" {
		ev.Message = d.Operation + ": " + ev.Message
		ev.Metadata["operation"] = d.Operation
	}
	if d.Stack != "" {
		ev.Stack = d.Stack
	}
}

func (n *Normalizer) longTask(ev *contracts.Event, lt *capture.LongTaskEntry) {
	ev.Type = contracts.TypeLongTask
	ev.Category = contracts.CategoryPerformance
	ms := lt.Duration.Milliseconds()
	ev.Message = fmt.Sprintf("Long task blocked the main thread for %dms", ms)
	ev.Metadata["duration"] = ms
	ev.Metadata["startTime"] = lt.StartTime.Milliseconds()
	if lt.Name != "" {
		ev.Metadata["name"] = lt.Name
	}
	if lt.Attribution != "" {
		ev.Metadata["attribution"] = lt.Attribution
	}
}

func (n *Normalizer) layoutShift(ev *contracts.Event, ls *capture.LayoutShiftEntry) {
	ev.Type = contracts.TypeLayoutShift
	ev.Category = contracts.CategoryPerformance
	ev.Message = fmt.Sprintf("Layout shift detected (CLS score %.3f)", ls.Value)
	ev.Metadata["value"] = ls.Value
	if len(ls.Sources) > 0 {
		ev.Metadata["sources"] = strings.Join(ls.Sources, ", ")
	}
}

func (n *Normalizer) csp(ev *contracts.Event, v *capture.CSPViolation) {
	ev.Type = contracts.TypeCSPViolation
	ev.Category = contracts.CategoryCSP
	directive := v.EffectiveDirective
	if directive == "" {
		directive = v.ViolatedDirective
	}
	blocked := v.BlockedURI
	if blocked == "" {
		blocked = "inline"
	}
	ev.Message = fmt.Sprintf("Content Security Policy violation: %s blocked %s", directive, blocked)
	ev.Filename, ev.Lineno, ev.Colno = v.SourceFile, v.LineNumber, v.ColumnNumber
	ev.Metadata["directive"] = directive
	ev.Metadata["blockedURI"] = v.BlockedURI
	if v.Disposition != "" {
		ev.Metadata["disposition"] = v.Disposition
	}
	if v.Sample != "" {
		ev.Metadata["sample"] = v.Sample
	}
}

func (n *Normalizer) report(ev *contracts.Event, r *capture.Report) {
	ev.Type = contracts.TypeDeprecation
	ev.Category = contracts.CategoryDeprecation
	if r.Kind == capture.ReportIntervention {
		ev.Type = contracts.TypeIntervention
		ev.Category = contracts.CategoryIntervention
	}
	ev.Message = r.Message
	if ev.Message == "" {
		ev.Message = fmt.Sprintf("Browser %s report %s", r.Kind, r.ID)
	}
	ev.Filename, ev.Lineno, ev.Colno = r.SourceFile, r.LineNumber, r.ColumnNumber
	if r.ID != "" {
		ev.Metadata["reportId"] = r.ID
	}
	if r.URL != "" {
		ev.Metadata["url"] = r.URL
	}
}

// Message builds a human-readable message from console-style arguments.
// The first error argument wins; otherwise strings are used as-is (with %c
// styling removed along with its CSS arguments) and other values are
// JSON-encoded, falling back to fmt formatting.
func Message(args []any) string {
	for _, a := range args {
		if err, ok := a.(error); ok && !isNil(err) {
			return err.Error()
		}
	}

	parts := make([]string, 0, len(args))
	skip := 0
	for i, a := range args {
		if skip > 0 {
			if _, ok := a.(string); ok {
				skip--
				continue
			}
			skip = 0
		}
		s := stringify(a)
		if i == 0 {
			if str, ok := a.(string); ok {
				skip = sanitize.StyleDirectives(str)
				s = sanitize.StripStyleDirectives(str)
			}
		}
		parts = append(parts, s)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// isNil reports whether a is nil or a typed nil pointer-like value, which
// would panic when its methods are called.
func isNil(a any) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func stringify(a any) string {
	switch a.(type) {
	case error, fmt.Stringer:
		if isNil(a) {
			return "null"
		}
	}
	switch v := a.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v)
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Sprint(a)
	}
	return string(data)
}

func firstStack(args []any) string {
	for _, a := range args {
		if err, ok := a.(error); ok && !isNil(err) {
			if st := stackOf(err); st != "" {
				return st
			}
		}
	}
	return ""
}

func stackOf(err error) string {
	if isNil(err) {
		return ""
	}
	var st stackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return ""
}
