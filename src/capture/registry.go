package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"errlens-agent/src/logger"
)

// Thresholds controls when performance and network observations become signals.
type Thresholds struct {
	SlowRequest time.Duration
	LongTask    time.Duration
	LayoutShift float64
}

// DefaultThresholds returns the standard capture thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SlowRequest: 3 * time.Second,
		LongTask:    50 * time.Millisecond,
		LayoutShift: 0.1,
	}
}

// Registry installs the hook set once and routes signals to a single emit
// function. Wrappers created before Install pass through silently.
type Registry struct {
	installed  atomic.Bool
	emit       atomic.Pointer[func(Signal)]
	thresholds Thresholds
	now        func() time.Time
	log        logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithThresholds overrides the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(r *Registry) { r.thresholds = t }
}

// WithClock sets the time source used for signal timestamps and request timing.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger used to report emit panics.
func WithLogger(log logger.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates an uninstalled registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		thresholds: DefaultThresholds(),
		now:        time.Now,
		log:        logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Install activates every hook and sends their signals to emit. It returns
// false, changing nothing, if the registry was already installed.
func (r *Registry) Install(emit func(Signal)) bool {
	if emit == nil || !r.installed.CompareAndSwap(false, true) {
		return false
	}
	r.emit.Store(&emit)
	return true
}

// Installed reports whether Install has succeeded.
func (r *Registry) Installed() bool {
	return r.installed.Load()
}

// Hooks returns the fixed set of hooks this registry instruments.
func (r *Registry) Hooks() []Hook {
	return append([]Hook(nil), allHooks...)
}

// Thresholds returns the active thresholds.
func (r *Registry) Thresholds() Thresholds {
	return r.thresholds
}

// signal hands s to the emit function. A panicking emit is logged and
// swallowed; instrumentation never fails the instrumented code.
func (r *Registry) signal(s Signal) {
	fn := r.emit.Load()
	if fn == nil {
		return
	}
	if s.At.IsZero() {
		s.At = r.now()
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("[Capture] %s hook emit panicked: %v", s.Hook, rec)
		}
	}()
	(*fn)(s)
}

// Console is the logging primitive the console hook wraps.
type Console interface {
	Error(args ...any)
	Warn(args ...any)
}

// NopConsole discards everything. Hosts that only observe console calls
// (rather than own them) wrap it.
type NopConsole struct{}

func (NopConsole) Error(args ...any) {}
func (NopConsole) Warn(args ...any)  {}

type consoleHook struct {
	r    *Registry
	next Console
}

// WrapConsole returns a Console that calls next, then emits a console signal.
func (r *Registry) WrapConsole(next Console) Console {
	if next == nil {
		next = NopConsole{}
	}
	return &consoleHook{r: r, next: next}
}

func (c *consoleHook) Error(args ...any) {
	c.next.Error(args...)
	c.observe(ConsoleError, args)
}

func (c *consoleHook) Warn(args ...any) {
	c.next.Warn(args...)
	c.observe(ConsoleWarn, args)
}

func (c *consoleHook) observe(level ConsoleLevel, args []any) {
	if isSelfLog(args) {
		return
	}
	copied := append([]any(nil), args...)
	c.r.signal(Signal{Hook: HookConsole, Console: &ConsoleCall{Level: level, Args: copied}})
}

func isSelfLog(args []any) bool {
	if len(args) == 0 {
		return false
	}
	first, ok := args[0].(string)
	return ok && strings.HasPrefix(first, SelfMarker)
}

// WrapErrorListener returns a listener that emits an error signal and then
// forwards the event to next (which may be nil).
func (r *Registry) WrapErrorListener(next func(ErrorEvent)) func(ErrorEvent) {
	return func(ev ErrorEvent) {
		r.signal(Signal{Hook: HookError, Error: &ev})
		if next != nil {
			next(ev)
		}
	}
}

// WrapRejectionListener returns a listener that emits a rejection signal and
// then forwards the event to next (which may be nil).
func (r *Registry) WrapRejectionListener(next func(RejectionEvent)) func(RejectionEvent) {
	return func(ev RejectionEvent) {
		r.signal(Signal{Hook: HookRejection, Rejection: &ev})
		if next != nil {
			next(ev)
		}
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// WrapRoundTripper instruments an HTTP transport. The response and error from
// next are returned untouched; failed, timed-out and slow calls are signalled.
func (r *Registry) WrapRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := r.now()
		resp, err := next.RoundTrip(req)
		call := NetworkCall{
			Method:    req.Method,
			URL:       req.URL.String(),
			Duration:  r.now().Sub(start),
			Err:       err,
			Initiator: "roundtripper",
		}
		if err != nil {
			call.Timeout = IsTimeout(err)
		} else if resp != nil {
			call.Status = resp.StatusCode
		}
		r.ObserveNetwork(call)
		return resp, err
	})
}

// ObserveNetwork signals a finished request if it failed or was slow.
// Hosts that see requests from outside (a DevTools session) call it directly.
func (r *Registry) ObserveNetwork(call NetworkCall) {
	if !call.Failed() && call.Duration <= r.thresholds.SlowRequest {
		return
	}
	r.signal(Signal{Hook: HookNetwork, Network: &call})
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Guard runs a DOM operation. A returned error is signalled and returned; a
// panic is signalled and then re-raised with its original value.
func (r *Registry) Guard(operation string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.signal(Signal{Hook: HookDOM, DOM: &DOMFailure{
				Operation: operation,
				Err:       panicError(rec),
				Panic:     rec,
				Stack:     string(debug.Stack()),
			}})
			panic(rec)
		}
	}()
	err = fn()
	if err != nil {
		r.signal(Signal{Hook: HookDOM, DOM: &DOMFailure{Operation: operation, Err: err}})
	}
	return err
}

// GuardValue is Guard for operations that return a value.
func GuardValue[T any](r *Registry, operation string, fn func() (T, error)) (T, error) {
	var out T
	err := r.Guard(operation, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("%v", rec)
}

// ObserveLongTask signals tasks at or above the long-task threshold.
func (r *Registry) ObserveLongTask(entry LongTaskEntry) {
	if entry.Duration < r.thresholds.LongTask {
		return
	}
	r.signal(Signal{Hook: HookLongTask, LongTask: &entry})
}

// ObserveLayoutShift signals shifts at or above the threshold that were not
// caused by recent user input.
func (r *Registry) ObserveLayoutShift(entry LayoutShiftEntry) {
	if entry.HadRecentInput || entry.Value < r.thresholds.LayoutShift {
		return
	}
	entry.Sources = append([]string(nil), entry.Sources...)
	r.signal(Signal{Hook: HookLayoutShift, LayoutShift: &entry})
}

// OnSecurityPolicyViolation signals a CSP violation.
func (r *Registry) OnSecurityPolicyViolation(v CSPViolation) {
	r.signal(Signal{Hook: HookCSP, CSP: &v})
}

// OnReport signals a deprecation or intervention report. Other report
// types are ignored.
func (r *Registry) OnReport(rep Report) {
	if rep.Kind != ReportDeprecation && rep.Kind != ReportIntervention {
		return
	}
	r.signal(Signal{Hook: HookReport, Report: &rep})
}
