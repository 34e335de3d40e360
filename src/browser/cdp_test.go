package browser

import (
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"errlens-agent/src/capture"
)

type recorder struct {
	mu      sync.Mutex
	signals []capture.Signal
}

func (r *recorder) emit(s capture.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func (r *recorder) all() []capture.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Signal(nil), r.signals...)
}

func installedRegistry(t *testing.T) (*capture.Registry, *recorder) {
	t.Helper()
	rec := &recorder{}
	reg := capture.NewRegistry()
	if !reg.Install(rec.emit) {
		t.Fatal("Install failed")
	}
	return reg, rec
}

func TestSplitDescription(t *testing.T) {
	msg, stack := splitDescription("TypeError: x is undefined\n    at render (app.js:10:5)\n    at main (app.js:1:1)")
	if msg != "TypeError: x is undefined" {
		t.Errorf("message = %q", msg)
	}
	if stack != "at render (app.js:10:5)\n    at main (app.js:1:1)" {
		t.Errorf("stack = %q", stack)
	}

	msg, stack = splitDescription("plain")
	if msg != "plain" || stack != "" {
		t.Errorf("Unexpected split: %q %q", msg, stack)
	}
}

func TestFormatStack(t *testing.T) {
	st := &proto.RuntimeStackTrace{CallFrames: []*proto.RuntimeCallFrame{
		{FunctionName: "render", URL: "https://a.test/app.js", LineNumber: 9, ColumnNumber: 4},
		{URL: "https://a.test/app.js", LineNumber: 0, ColumnNumber: 0},
	}}
	want := "    at render (https://a.test/app.js:10:5)\n    at https://a.test/app.js:1:1"
	if got := formatStack(st); got != want {
		t.Errorf("formatStack() = %q, want %q", got, want)
	}
	if formatStack(nil) != "" {
		t.Error("Expected empty stack for nil")
	}
}

func TestDispatchConsole(t *testing.T) {
	reg, rec := installedRegistry(t)

	dispatchConsole(reg, &proto.RuntimeConsoleAPICalled{
		Type: proto.RuntimeConsoleAPICalledTypeError,
		Args: []*proto.RuntimeRemoteObject{
			{Type: proto.RuntimeRemoteObjectTypeObject, Subtype: proto.RuntimeRemoteObjectSubtypeError, Description: "Error: boom\n    at f (a.js:1:1)"},
		},
	})
	dispatchConsole(reg, &proto.RuntimeConsoleAPICalled{
		Type: proto.RuntimeConsoleAPICalledTypeWarning,
		Args: []*proto.RuntimeRemoteObject{{Type: proto.RuntimeRemoteObjectTypeObject, Description: "Object"}},
	})
	dispatchConsole(reg, &proto.RuntimeConsoleAPICalled{
		Type: proto.RuntimeConsoleAPICalledTypeLog,
		Args: []*proto.RuntimeRemoteObject{{Type: proto.RuntimeRemoteObjectTypeObject, Description: "ignored"}},
	})
	dispatchConsole(reg, &proto.RuntimeConsoleAPICalled{
		Type: proto.RuntimeConsoleAPICalledTypeError,
		Args: []*proto.RuntimeRemoteObject{{Type: proto.RuntimeRemoteObjectTypeObject, Description: capture.SelfMarker + " internal"}},
	})

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("Expected 2 console signals, got %d", len(got))
	}
	if got[0].Console.Level != capture.ConsoleError {
		t.Errorf("Expected error level, got %s", got[0].Console.Level)
	}
	err, ok := got[0].Console.Args[0].(error)
	if !ok || err.Error() != "Error: boom" {
		t.Errorf("Expected remote error argument, got %#v", got[0].Console.Args[0])
	}
	if got[1].Console.Level != capture.ConsoleWarn || got[1].Console.Args[0] != "Object" {
		t.Errorf("Unexpected warning signal: %+v", got[1].Console)
	}
}

func TestDispatchException(t *testing.T) {
	reg, rec := installedRegistry(t)

	dispatchException(reg, &proto.RuntimeExceptionDetails{
		Text:         "Uncaught",
		URL:          "https://a.test/app.js",
		LineNumber:   41,
		ColumnNumber: 6,
		Exception: &proto.RuntimeRemoteObject{
			Type:        proto.RuntimeRemoteObjectTypeObject,
			Subtype:     proto.RuntimeRemoteObjectSubtypeError,
			Description: "TypeError: Cannot read properties of null\n    at f (app.js:42:7)",
		},
	})
	dispatchException(reg, &proto.RuntimeExceptionDetails{
		Text: "Uncaught (in promise)",
		Exception: &proto.RuntimeRemoteObject{
			Type:        proto.RuntimeRemoteObjectTypeString,
			Description: "nope",
		},
	})
	dispatchException(reg, nil)

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("Expected 2 signals, got %d", len(got))
	}
	e := got[0].Error
	if got[0].Hook != capture.HookError || e == nil {
		t.Fatalf("Expected error hook, got %+v", got[0])
	}
	if e.Message != "TypeError: Cannot read properties of null" || e.Lineno != 42 || e.Colno != 7 || e.Filename != "https://a.test/app.js" {
		t.Errorf("Unexpected error event: %+v", e)
	}
	if e.Stack == "" {
		t.Error("Expected stack from description")
	}
	if got[1].Hook != capture.HookRejection || got[1].Rejection.Reason != "nope" {
		t.Errorf("Expected rejection with reason, got %+v", got[1])
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestRequestTracker(t *testing.T) {
	reg, rec := installedRegistry(t)
	clock := &fakeClock{t: time.Now()}
	tr := newRequestTracker(clock.now)

	send := func(id, method, u string, kind proto.NetworkResourceType) {
		tr.started(&proto.NetworkRequestWillBeSent{
			RequestID: proto.NetworkRequestID(id),
			Request:   &proto.NetworkRequest{Method: method, URL: u},
			Type:      kind,
		})
	}

	// fast successful fetch: nothing
	send("1", "GET", "https://a.test/ok", proto.NetworkResourceTypeFetch)
	tr.responded(&proto.NetworkResponseReceived{RequestID: "1", Response: &proto.NetworkResponse{Status: 200}})
	tr.finished(reg, "1")

	// 500 from XHR
	send("2", "POST", "https://a.test/api", proto.NetworkResourceTypeXHR)
	tr.responded(&proto.NetworkResponseReceived{RequestID: "2", Response: &proto.NetworkResponse{Status: 500}})
	tr.finished(reg, "2")

	// slow fetch
	send("3", "GET", "https://a.test/slow", proto.NetworkResourceTypeFetch)
	clock.t = clock.t.Add(4 * time.Second)
	tr.responded(&proto.NetworkResponseReceived{RequestID: "3", Response: &proto.NetworkResponse{Status: 200}})
	tr.finished(reg, "3")

	// timed out fetch
	send("4", "GET", "https://a.test/hang", proto.NetworkResourceTypeFetch)
	tr.failed(reg, &proto.NetworkLoadingFailed{RequestID: "4", ErrorText: "net::ERR_TIMED_OUT"})

	// cancelled fetch: nothing
	send("5", "GET", "https://a.test/cancel", proto.NetworkResourceTypeFetch)
	tr.failed(reg, &proto.NetworkLoadingFailed{RequestID: "5", ErrorText: "net::ERR_ABORTED", Canceled: true})

	// script 404 and failed image become resource errors
	send("6", "GET", "https://cdn.test/app.js", proto.NetworkResourceTypeScript)
	tr.responded(&proto.NetworkResponseReceived{RequestID: "6", Response: &proto.NetworkResponse{Status: 404}})
	tr.finished(reg, "6")
	send("7", "GET", "https://cdn.test/logo.png", proto.NetworkResourceTypeImage)
	tr.failed(reg, &proto.NetworkLoadingFailed{RequestID: "7", ErrorText: "net::ERR_NAME_NOT_RESOLVED"})

	// documents are not instrumented
	send("8", "GET", "https://a.test/", proto.NetworkResourceTypeDocument)
	tr.failed(reg, &proto.NetworkLoadingFailed{RequestID: "8", ErrorText: "net::ERR_FAILED"})

	got := rec.all()
	if len(got) != 5 {
		t.Fatalf("Expected 5 signals, got %d: %+v", len(got), got)
	}
	if n := got[0].Network; n == nil || n.Status != 500 || n.Method != "POST" || n.Initiator != "xhr" {
		t.Errorf("Unexpected status signal: %+v", got[0].Network)
	}
	if n := got[1].Network; n == nil || n.Duration != 4*time.Second || n.Failed() {
		t.Errorf("Unexpected slow signal: %+v", got[1].Network)
	}
	if n := got[2].Network; n == nil || !n.Timeout {
		t.Errorf("Expected timeout signal, got %+v", got[2].Network)
	}
	if e := got[3].Error; e == nil || e.ResourceURL != "https://cdn.test/app.js" || e.ResourceTag != "SCRIPT" {
		t.Errorf("Unexpected script resource error: %+v", got[3].Error)
	}
	if e := got[4].Error; e == nil || e.ResourceTag != "IMG" {
		t.Errorf("Unexpected image resource error: %+v", got[4].Error)
	}
}

func TestRequestTracker_RedirectKeepsStart(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tr := newRequestTracker(clock.now)
	tr.started(&proto.NetworkRequestWillBeSent{RequestID: "r", Request: &proto.NetworkRequest{Method: "GET", URL: "http://a.test/old"}, Type: proto.NetworkResourceTypeFetch})
	clock.t = clock.t.Add(time.Second)
	tr.started(&proto.NetworkRequestWillBeSent{RequestID: "r", Request: &proto.NetworkRequest{Method: "GET", URL: "https://a.test/new"}, Type: proto.NetworkResourceTypeFetch})
	clock.t = clock.t.Add(time.Second)

	r, elapsed, ok := tr.done("r")
	if !ok || r.url != "https://a.test/new" || elapsed != 2*time.Second {
		t.Errorf("Unexpected request %+v after %v", r, elapsed)
	}
}
