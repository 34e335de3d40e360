package browser

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"errlens-agent/src/capture"
)

// rejectionPrefix marks exceptions DevTools reports for unhandled promise
// rejections.
const rejectionPrefix = "Uncaught (in promise)"

// jsError is a remote exception with its description split into message
// and stack.
type jsError struct {
	message string
	stack   string
}

func (e *jsError) Error() string      { return e.message }
func (e *jsError) StackTrace() string { return e.stack }

// splitDescription separates "TypeError: x\n    at f (a.js:1:2)" into the
// first line and the remaining frames.
func splitDescription(desc string) (message, stack string) {
	desc = strings.TrimSpace(desc)
	if i := strings.IndexByte(desc, '\n'); i >= 0 {
		return desc[:i], strings.TrimSpace(desc[i+1:])
	}
	return desc, ""
}

// formatStack renders a DevTools stack trace with 1-based positions.
func formatStack(st *proto.RuntimeStackTrace) string {
	if st == nil {
		return ""
	}
	lines := make([]string, 0, len(st.CallFrames))
	for _, f := range st.CallFrames {
		if f == nil {
			continue
		}
		loc := fmt.Sprintf("%s:%d:%d", f.URL, f.LineNumber+1, f.ColumnNumber+1)
		if f.FunctionName != "" {
			lines = append(lines, fmt.Sprintf("    at %s (%s)", f.FunctionName, loc))
		} else {
			lines = append(lines, "    at "+loc)
		}
	}
	return strings.Join(lines, "\n")
}

// remoteValue converts a console argument to what the console hook expects:
// strings and numbers as Go values, errors as error values.
func remoteValue(obj *proto.RuntimeRemoteObject) any {
	if obj == nil {
		return nil
	}
	if obj.Subtype == proto.RuntimeRemoteObjectSubtypeError {
		msg, stack := splitDescription(obj.Description)
		return &jsError{message: msg, stack: stack}
	}
	if !obj.Value.Nil() {
		return obj.Value.String()
	}
	if obj.Description != "" {
		return obj.Description
	}
	return string(obj.Type)
}

// consoleCall maps console.error and console.warn calls. Other console
// methods are not instrumented.
func consoleCall(ev *proto.RuntimeConsoleAPICalled) (level capture.ConsoleLevel, args []any, ok bool) {
	switch ev.Type {
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		level = capture.ConsoleError
	case proto.RuntimeConsoleAPICalledTypeWarning:
		level = capture.ConsoleWarn
	default:
		return "", nil, false
	}
	args = make([]any, 0, len(ev.Args))
	for _, a := range ev.Args {
		args = append(args, remoteValue(a))
	}
	return level, args, true
}

// dispatchConsole feeds a console call through the wrapped console so the
// hook's own filtering applies.
func dispatchConsole(reg *capture.Registry, ev *proto.RuntimeConsoleAPICalled) {
	level, args, ok := consoleCall(ev)
	if !ok {
		return
	}
	console := reg.WrapConsole(capture.NopConsole{})
	if level == capture.ConsoleWarn {
		console.Warn(args...)
	} else {
		console.Error(args...)
	}
}

// dispatchException routes an uncaught exception to the error hook, or to
// the rejection hook when it came from a promise.
func dispatchException(reg *capture.Registry, details *proto.RuntimeExceptionDetails) {
	if details == nil {
		return
	}
	message, stack := details.Text, formatStack(details.StackTrace)
	if details.Exception != nil && details.Exception.Description != "" {
		var descStack string
		message, descStack = splitDescription(details.Exception.Description)
		if stack == "" {
			stack = descStack
		}
	}

	if strings.HasPrefix(details.Text, rejectionPrefix) {
		var reason any = message
		if details.Exception != nil && details.Exception.Subtype == proto.RuntimeRemoteObjectSubtypeError {
			reason = &jsError{message: message, stack: stack}
		}
		reg.WrapRejectionListener(nil)(capture.RejectionEvent{Reason: reason, Stack: stack})
		return
	}

	reg.WrapErrorListener(nil)(capture.ErrorEvent{
		Message:  message,
		Filename: details.URL,
		Lineno:   details.LineNumber + 1,
		Colno:    details.ColumnNumber + 1,
		Stack:    stack,
	})
}

// request is one in-flight network request.
type request struct {
	method   string
	url      string
	resource proto.NetworkResourceType
	start    time.Time
	status   int
}

// initiator returns the network hook initiator for fetch and XHR requests.
func (r request) initiator() (string, bool) {
	switch r.resource {
	case proto.NetworkResourceTypeFetch:
		return "fetch", true
	case proto.NetworkResourceTypeXHR:
		return "xhr", true
	}
	return "", false
}

// resourceTag returns the element kind for sub-resource loads whose failure
// fires an element error event.
func (r request) resourceTag() (string, bool) {
	switch r.resource {
	case proto.NetworkResourceTypeScript:
		return "SCRIPT", true
	case proto.NetworkResourceTypeStylesheet:
		return "LINK", true
	case proto.NetworkResourceTypeImage:
		return "IMG", true
	case proto.NetworkResourceTypeMedia:
		return "VIDEO", true
	}
	return "", false
}

// requestTracker pairs DevTools request lifecycle events and times each
// request with the host clock.
type requestTracker struct {
	mu       sync.Mutex
	inflight map[proto.NetworkRequestID]*request
	now      func() time.Time
}

func newRequestTracker(now func() time.Time) *requestTracker {
	return &requestTracker{inflight: make(map[proto.NetworkRequestID]*request), now: now}
}

func (t *requestTracker) started(ev *proto.NetworkRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// Redirects reuse the id; keep the original start time.
	if r, ok := t.inflight[ev.RequestID]; ok {
		r.url = ev.Request.URL
		return
	}
	t.inflight[ev.RequestID] = &request{
		method:   ev.Request.Method,
		url:      ev.Request.URL,
		resource: ev.Type,
		start:    t.now(),
	}
}

func (t *requestTracker) responded(ev *proto.NetworkResponseReceived) {
	if ev.Response == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.inflight[ev.RequestID]; ok {
		r.status = ev.Response.Status
	}
}

func (t *requestTracker) done(id proto.NetworkRequestID) (request, time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.inflight[id]
	if !ok {
		return request{}, 0, false
	}
	delete(t.inflight, id)
	return *r, t.now().Sub(r.start), true
}

func (t *requestTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = make(map[proto.NetworkRequestID]*request)
}

// finished reports a completed request. Fetch and XHR go to the network
// hook; failed sub-resources become resource errors.
func (t *requestTracker) finished(reg *capture.Registry, id proto.NetworkRequestID) {
	r, elapsed, ok := t.done(id)
	if !ok {
		return
	}
	if initiator, ok := r.initiator(); ok {
		reg.ObserveNetwork(capture.NetworkCall{
			Method:    r.method,
			URL:       r.url,
			Status:    r.status,
			Duration:  elapsed,
			Initiator: initiator,
		})
		return
	}
	if tag, ok := r.resourceTag(); ok && r.status >= 400 {
		reg.WrapErrorListener(nil)(capture.ErrorEvent{ResourceURL: r.url, ResourceTag: tag})
	}
}

// failed reports a request that never completed. Cancelled requests are
// ignored.
func (t *requestTracker) failed(reg *capture.Registry, ev *proto.NetworkLoadingFailed) {
	r, elapsed, ok := t.done(ev.RequestID)
	if !ok || ev.Canceled {
		return
	}
	if initiator, ok := r.initiator(); ok {
		reg.ObserveNetwork(capture.NetworkCall{
			Method:    r.method,
			URL:       r.url,
			Status:    r.status,
			Duration:  elapsed,
			Err:       errors.New(ev.ErrorText),
			Timeout:   strings.Contains(ev.ErrorText, "TIMED_OUT"),
			Initiator: initiator,
		})
		return
	}
	if tag, ok := r.resourceTag(); ok {
		reg.WrapErrorListener(nil)(capture.ErrorEvent{ResourceURL: r.url, ResourceTag: tag})
	}
}
