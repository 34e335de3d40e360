// Package browser hosts page sessions in a Chrome tab driven over the
// DevTools protocol. DevTools events and an injected observer shim are
// mapped onto the capture hooks, and every main-frame navigation starts a
// fresh page session.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"errlens-agent/src/capture"
	"errlens-agent/src/contracts"
	"errlens-agent/src/gate"
	"errlens-agent/src/logger"
	"errlens-agent/src/normalize"
	"errlens-agent/src/page"
	"errlens-agent/src/throttle"
	"errlens-agent/src/transport"
)

// DefaultPollInterval is how often the observer shim buffer is drained.
const DefaultPollInterval = 500 * time.Millisecond

// SenderFactory builds the transport for one tab identity.
type SenderFactory func(from contracts.Sender) transport.Sender

// Options configures a Watcher.
type Options struct {
	// URL is opened in a new tab.
	URL string
	// ControlURL attaches to a running browser. When empty a browser is
	// launched and killed on exit.
	ControlURL string
	Headless   bool
	// Gate is consulted once per navigation so configuration reloads apply
	// to the next page load.
	Gate         func() *gate.Gate
	Senders      SenderFactory
	Throttle     throttle.Config
	PollInterval time.Duration
	Logger       logger.Logger
}

// Watcher drives one tab.
type Watcher struct {
	opts     Options
	log      logger.Logger
	requests *requestTracker

	mu        sync.Mutex
	session   *page.Session
	sender    transport.Sender
	userAgent string
}

// New creates a watcher. Call Run to open the tab.
func New(opts Options) *Watcher {
	if opts.Logger == nil {
		opts.Logger = logger.NewSilentLogger()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Senders == nil {
		opts.Senders = func(contracts.Sender) transport.Sender {
			return transport.FuncSender(func(context.Context, contracts.Event) transport.Result {
				return transport.Result{}
			})
		}
	}
	if opts.Gate == nil {
		opts.Gate = func() *gate.Gate { return gate.New(true, nil) }
	}
	return &Watcher{
		opts:     opts,
		log:      opts.Logger,
		requests: newRequestTracker(time.Now),
	}
}

// Run opens the tab and captures until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	controlURL := w.opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(w.opts.Headless).Context(ctx)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		defer l.Kill()
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	if version, err := (proto.BrowserGetVersion{}).Call(b); err == nil {
		w.userAgent = version.UserAgent
	}

	p, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("failed to open tab: %w", err)
	}
	p = p.Context(ctx)
	defer func() {
		w.closeSession()
		_ = p.Close()
	}()

	if _, err := p.EvalOnNewDocument("(" + observerShim + ")()"); err != nil {
		return fmt.Errorf("failed to install observer shim: %w", err)
	}
	_ = proto.RuntimeEnable{}.Call(p)
	_ = proto.NetworkEnable{}.Call(p)
	_ = proto.PageEnable{}.Call(p)

	wait := p.EachEvent(
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame != nil && ev.Frame.ParentID == "" {
				w.navigated(ctx, p, ev.Frame.URL)
			}
		},
		func(ev *proto.RuntimeConsoleAPICalled) {
			if reg := w.registry(); reg != nil {
				dispatchConsole(reg, ev)
			}
		},
		func(ev *proto.RuntimeExceptionThrown) {
			if reg := w.registry(); reg != nil {
				dispatchException(reg, ev.ExceptionDetails)
			}
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			w.requests.started(ev)
		},
		func(ev *proto.NetworkResponseReceived) {
			w.requests.responded(ev)
		},
		func(ev *proto.NetworkLoadingFinished) {
			if reg := w.registry(); reg != nil {
				w.requests.finished(reg, ev.RequestID)
			}
		},
		func(ev *proto.NetworkLoadingFailed) {
			if reg := w.registry(); reg != nil {
				w.requests.failed(reg, ev)
			}
		},
	)
	go wait()

	w.log.Info("[BrowserWatcher] Opening %s", w.opts.URL)
	if err := p.Navigate(w.opts.URL); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", w.opts.URL, err)
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("[BrowserWatcher] Context cancelled, closing tab")
			return ctx.Err()
		case <-ticker.C:
			w.drain(p)
		}
	}
}

// navigated replaces the page session for a new main-frame document.
func (w *Watcher) navigated(ctx context.Context, p *rod.Page, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
		return
	}

	var viewport contracts.Viewport
	if metrics, err := (proto.PageGetLayoutMetrics{}).Call(p); err == nil && metrics.CSSLayoutViewport != nil {
		viewport = contracts.Viewport{Width: metrics.CSSLayoutViewport.ClientWidth, Height: metrics.CSSLayoutViewport.ClientHeight}
	}

	from := contracts.Sender{TabID: string(p.TargetID), Origin: u.Scheme + "://" + u.Host}
	sender := w.opts.Senders(from)
	session := page.Bootstrap(ctx, page.Options{
		Host: u.Hostname(),
		Gate: w.opts.Gate(),
		Context: normalize.Context{
			OriginURL: rawURL,
			UserAgent: w.userAgent,
			Viewport:  viewport,
		},
		Sender:   sender,
		Throttle: w.opts.Throttle,
		Logger:   w.log,
	})

	w.closeSession()
	w.requests.reset()
	w.mu.Lock()
	w.session = session
	w.sender = sender
	w.mu.Unlock()
	w.log.Debug("[BrowserWatcher] Navigated to %s (capture active: %v)", rawURL, session.Active())
}

// registry returns the active session's hooks, or nil when no capture is
// running for the current document.
func (w *Watcher) registry() *capture.Registry {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil || !w.session.Active() {
		return nil
	}
	return w.session.Registry()
}

// closeSession logs the outgoing session's counters and flushes its sender.
func (w *Watcher) closeSession() {
	w.mu.Lock()
	session, sender := w.session, w.sender
	w.session, w.sender = nil, nil
	w.mu.Unlock()

	if session == nil {
		return
	}
	if session.Active() {
		st := session.Stats()
		w.log.Info("[BrowserWatcher] Page %s done: %d signals, %d forwarded, %d rate limited, %d duplicates",
			session.Host(), st.Signals, st.Forwarded, st.RateLimited, st.Duplicates)
	}
	if c, ok := sender.(interface{ Close() }); ok {
		c.Close()
	}
}

// drain pulls buffered observer entries from the page.
func (w *Watcher) drain(p *rod.Page) {
	reg := w.registry()
	if reg == nil {
		return
	}
	res, err := p.Evaluate(&rod.EvalOptions{
		JS:           drainScript,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		w.log.Debug("[BrowserWatcher] Failed to decode observer entries: %v", err)
		return
	}
	for _, e := range entries {
		dispatchShimEntry(reg, e)
	}
}

func decodeEntries(raw []byte) ([]shimEntry, error) {
	var entries []shimEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal observer entries: %w", err)
	}
	return entries, nil
}
