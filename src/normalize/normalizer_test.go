package normalize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"errlens-agent/src/capture"
	"errlens-agent/src/contracts"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return New(Context{
		OriginURL: "https://app.example.com/checkout",
		UserAgent: "Mozilla/5.0 test",
		Viewport:  contracts.Viewport{Width: 1280, Height: 720},
	}).WithClock(func() time.Time { return fixedNow })
}

type stackErr struct {
	msg   string
	stack string
}

func (e *stackErr) Error() string      { return e.msg }
func (e *stackErr) StackTrace() string { return e.stack }

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name  string
		stack string
		want  Location
		ok    bool
	}{
		{
			name:  "v8 named frame",
			stack: "TypeError: x is undefined\n    at handleClick (https://app.example.com/main.js:10:15)\n    at other (https://app.example.com/lib.js:1:1)",
			want:  Location{"https://app.example.com/main.js", 10, 15},
			ok:    true,
		},
		{
			name:  "v8 anonymous frame",
			stack: "Error: boom\n    at https://app.example.com/main.js:22:7",
			want:  Location{"https://app.example.com/main.js", 22, 7},
			ok:    true,
		},
		{
			name:  "firefox frame",
			stack: "handleClick@https://app.example.com/main.js:5:3\n@https://app.example.com/main.js:9:1",
			want:  Location{"https://app.example.com/main.js", 5, 3},
			ok:    true,
		},
		{
			name:  "safari anonymous frame",
			stack: "@https://app.example.com/bundle.js:1:2048",
			want:  Location{"https://app.example.com/bundle.js", 1, 2048},
			ok:    true,
		},
		{
			name:  "no frames",
			stack: "just a message",
			ok:    false,
		},
		{
			name: "empty",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLocation(tt.stack)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseLocation() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    Classification
	}{
		{"[Deprecation] Synchronous XMLHttpRequest is deprecated", ClassDeprecation},
		{"Refused to load script because it violates the Content Security Policy", ClassCSP},
		{"blocked by CORS policy: No 'Access-Control-Allow-Origin' header", ClassCORS},
		{"TypeError: Failed to fetch", ClassNetwork},
		{"SyntaxError: Unexpected token <", ClassSyntaxError},
		{"TypeError: undefined is not a function", ClassTypeError},
		{"ReferenceError: foo is not defined", ClassReferenceError},
		{"NotAllowedError: permission denied", ClassPermission},
		{"something odd happened", ClassGeneral},
		// Earlier rules win when keywords overlap.
		{"CSP network report deprecated", ClassDeprecation},
		{"CORS network failure", ClassCORS},
	}
	for _, tt := range tests {
		if got := Classify(tt.message); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}

// nilPtrError has a pointer receiver, so a typed nil *nilPtrError is a
// non-nil error whose Error method dereferences nil.
type nilPtrError struct{ msg string }

func (e *nilPtrError) Error() string { return e.msg }

func TestMessage_TypedNilError(t *testing.T) {
	var err *nilPtrError
	if got := Message([]any{"failed:", err}); got != "failed: null" {
		t.Errorf("Message() = %q, want %q", got, "failed: null")
	}
	if got := Message([]any{error(err), errors.New("real")}); got != "real" {
		t.Errorf("Message() = %q, want the first usable error", got)
	}

	ev := newTestNormalizer().Normalize(capture.Signal{
		Hook:  capture.HookError,
		Error: &capture.ErrorEvent{Message: "Uncaught Error: late", Err: err},
	})
	if ev.Message != "Uncaught Error: late" || ev.Stack != "" {
		t.Errorf("Expected message kept for typed nil Err, got %q / %q", ev.Message, ev.Stack)
	}
}

func TestMessage(t *testing.T) {
	type payload struct {
		Code int `json:"code"`
	}
	tests := []struct {
		name string
		args []any
		want string
	}{
		{"error argument wins", []any{"context:", errors.New("boom")}, "boom"},
		{"strings joined", []any{"failed", "to", "save"}, "failed to save"},
		{"object serialized", []any{"bad response", payload{Code: 500}}, `bad response {"code":500}`},
		{"map serialized", []any{map[string]int{"a": 1}}, `{"a":1}`},
		{"numbers", []any{"retry", 3}, "retry 3"},
		{"nil", []any{nil}, "null"},
		{"unserializable falls back", []any{func() {}}, ""},
		{"style directives dropped", []any{"%cApp%c crashed", "color:red", "color:blue", "extra"}, "App crashed extra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Message(tt.args)
			if tt.name == "unserializable falls back" {
				if !strings.HasPrefix(got, "0x") {
					t.Errorf("Message() = %q, expected fmt fallback", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_ConsoleError(t *testing.T) {
	n := newTestNormalizer()
	ev := n.Normalize(capture.Signal{
		Hook: capture.HookConsole,
		Console: &capture.ConsoleCall{
			Level: capture.ConsoleError,
			Args: []any{&stackErr{
				msg:   "TypeError: cart is undefined",
				stack: "TypeError: cart is undefined\n    at render (https://app.example.com/cart.js:44:9)",
			}},
		},
	})

	if ev.Type != contracts.TypeConsoleError || ev.Category != contracts.CategoryJavaScript {
		t.Errorf("Unexpected type/category: %s/%s", ev.Type, ev.Category)
	}
	if ev.Message != "TypeError: cart is undefined" {
		t.Errorf("Message = %q", ev.Message)
	}
	if ev.Filename != "https://app.example.com/cart.js" || ev.Lineno != 44 || ev.Colno != 9 {
		t.Errorf("Location = %s:%d:%d", ev.Filename, ev.Lineno, ev.Colno)
	}
	if ev.Metadata["classification"] != string(ClassTypeError) {
		t.Errorf("classification = %v", ev.Metadata["classification"])
	}
	if ev.OriginURL != "https://app.example.com/checkout" || !ev.Timestamp.Equal(fixedNow) || ev.Viewport.Width != 1280 {
		t.Errorf("Context fields not stamped: %+v", ev)
	}
	if ev.ID != "" || ev.Status != "" || ev.TabID != "" {
		t.Error("Normalizer must not set ingestion-owned fields")
	}
}

func TestNormalize_ConsoleCategoryFromClassification(t *testing.T) {
	n := newTestNormalizer()
	ev := n.Normalize(capture.Signal{Hook: capture.HookConsole, Console: &capture.ConsoleCall{
		Level: capture.ConsoleWarn,
		Args:  []any{"Access blocked by CORS policy"},
	}})
	if ev.Type != contracts.TypeConsoleWarning || ev.Category != contracts.CategoryNetwork {
		t.Errorf("Unexpected type/category: %s/%s", ev.Type, ev.Category)
	}
}

func TestNormalize_Network(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name string
		call capture.NetworkCall
		want contracts.EventType
	}{
		{"status", capture.NetworkCall{Method: "POST", URL: "/api", Status: 503}, contracts.TypeNetworkError},
		{"transport", capture.NetworkCall{URL: "/api", Err: errors.New("connection refused")}, contracts.TypeNetworkError},
		{"timeout", capture.NetworkCall{URL: "/api", Err: errors.New("deadline"), Timeout: true}, contracts.TypeNetworkTimeout},
		{"slow", capture.NetworkCall{URL: "/api", Status: 200, Duration: 4 * time.Second}, contracts.TypeNetworkSlow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := tt.call
			ev := n.Normalize(capture.Signal{Hook: capture.HookNetwork, Network: &call})
			if ev.Type != tt.want || ev.Category != contracts.CategoryNetwork {
				t.Errorf("Type = %s, Category = %s", ev.Type, ev.Category)
			}
			if ev.Metadata["url"] != "/api" {
				t.Errorf("url metadata = %v", ev.Metadata["url"])
			}
		})
	}
}

func TestNormalize_OtherHooks(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name     string
		signal   capture.Signal
		wantType contracts.EventType
		wantCat  contracts.Category
	}{
		{
			"uncaught",
			capture.Signal{Hook: capture.HookError, Error: &capture.ErrorEvent{Message: "Uncaught ReferenceError: x is not defined", Filename: "a.js", Lineno: 1, Colno: 2}},
			contracts.TypeUncaughtException, contracts.CategoryJavaScript,
		},
		{
			"resource",
			capture.Signal{Hook: capture.HookError, Error: &capture.ErrorEvent{ResourceURL: "https://cdn/x.png", ResourceTag: "IMG"}},
			contracts.TypeResourceError, contracts.CategoryNetwork,
		},
		{
			"rejection",
			capture.Signal{Hook: capture.HookRejection, Rejection: &capture.RejectionEvent{Reason: map[string]string{"reason": "denied"}}},
			contracts.TypeUnhandledRejection, contracts.CategoryJavaScript,
		},
		{
			"dom",
			capture.Signal{Hook: capture.HookDOM, DOM: &capture.DOMFailure{Operation: "appendChild", Err: errors.New("HierarchyRequestError")}},
			contracts.TypeDOMError, contracts.CategoryDOM,
		},
		{
			"long task",
			capture.Signal{Hook: capture.HookLongTask, LongTask: &capture.LongTaskEntry{Duration: 180 * time.Millisecond}},
			contracts.TypeLongTask, contracts.CategoryPerformance,
		},
		{
			"layout shift",
			capture.Signal{Hook: capture.HookLayoutShift, LayoutShift: &capture.LayoutShiftEntry{Value: 0.42}},
			contracts.TypeLayoutShift, contracts.CategoryPerformance,
		},
		{
			"csp",
			capture.Signal{Hook: capture.HookCSP, CSP: &capture.CSPViolation{EffectiveDirective: "script-src", BlockedURI: "https://evil.example"}},
			contracts.TypeCSPViolation, contracts.CategoryCSP,
		},
		{
			"intervention",
			capture.Signal{Hook: capture.HookReport, Report: &capture.Report{Kind: capture.ReportIntervention, Message: "Ignored attempt to cancel a touchmove"}},
			contracts.TypeIntervention, contracts.CategoryIntervention,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := n.Normalize(tt.signal)
			if ev.Type != tt.wantType || ev.Category != tt.wantCat {
				t.Errorf("Type/Category = %s/%s, want %s/%s", ev.Type, ev.Category, tt.wantType, tt.wantCat)
			}
			if ev.Message == "" {
				t.Error("Expected non-empty message")
			}
			if ev.Source != string(tt.signal.Hook) {
				t.Errorf("Source = %q, want %q", ev.Source, tt.signal.Hook)
			}
		})
	}
}

func TestNormalize_RejectionMessage(t *testing.T) {
	n := newTestNormalizer()
	ev := n.Normalize(capture.Signal{Hook: capture.HookRejection, Rejection: &capture.RejectionEvent{Reason: "quota exceeded"}})
	if ev.Message != "quota exceeded" {
		t.Errorf("Message = %q", ev.Message)
	}
}

func TestNormalize_StripsANSI(t *testing.T) {
	n := newTestNormalizer()
	ev := n.Normalize(capture.Signal{Hook: capture.HookConsole, Console: &capture.ConsoleCall{
		Level: capture.ConsoleError,
		Args:  []any{"\x1b[31mfailed\x1b[0m"},
	}})
	if ev.Message != "failed" {
		t.Errorf("Message = %q", ev.Message)
	}
}
