// Package page bootstraps capture for one page load: it consults the domain
// gate once, installs the capture registry and runs every signal through
// normalize, throttle and transport.
package page

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"errlens-agent/src/capture"
	"errlens-agent/src/contracts"
	"errlens-agent/src/gate"
	"errlens-agent/src/logger"
	"errlens-agent/src/metrics"
	"errlens-agent/src/normalize"
	"errlens-agent/src/throttle"
	"errlens-agent/src/transport"
)

// Options configures a page session.
type Options struct {
	// Host is the page's hostname, checked against Gate.
	Host    string
	Gate    *gate.Gate
	Context normalize.Context
	// Sender delivers forwarded events. It should not block; wrap slow
	// senders in transport.NewAsync.
	Sender   transport.Sender
	Throttle throttle.Config
	// Registry is optional; a fresh one is created when nil.
	Registry *capture.Registry
	Logger   logger.Logger
}

// Stats counts what happened to this page's signals.
type Stats struct {
	Signals      int64
	Forwarded    int64
	RateLimited  int64
	Duplicates   int64
	SendFailures int64
}

// Session is one page load.
type Session struct {
	id       string
	host     string
	active   bool
	ctx      context.Context
	registry *capture.Registry
	norm     *normalize.Normalizer
	throttle *throttle.Throttle
	sender   transport.Sender
	log      logger.Logger

	signals      atomic.Int64
	forwarded    atomic.Int64
	rateLimited  atomic.Int64
	duplicates   atomic.Int64
	sendFailures atomic.Int64
}

// Bootstrap creates the session for a page load. When the gate disallows the
// host, the returned session is inactive: its registry is never installed and
// no signal is ever produced.
func Bootstrap(ctx context.Context, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.NewSilentLogger()
	}
	reg := opts.Registry
	if reg == nil {
		reg = capture.NewRegistry(capture.WithLogger(log))
	}
	sender := opts.Sender
	if sender == nil {
		sender = transport.FuncSender(func(context.Context, contracts.Event) transport.Result {
			return transport.Result{}
		})
	}

	s := &Session{
		id:       uuid.NewString(),
		host:     opts.Host,
		ctx:      ctx,
		registry: reg,
		norm:     normalize.New(opts.Context),
		throttle: throttle.New(opts.Throttle),
		sender:   sender,
		log:      log,
	}

	if !opts.Gate.Allowed(opts.Host) {
		log.Debug("[PageSession] Capture disabled for %s", opts.Host)
		return s
	}
	s.active = reg.Install(s.handle)
	if s.active {
		log.Info("[PageSession] Capture active for %s (session %s)", opts.Host, s.id)
	}
	return s
}

// ID is the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Host is the page host the gate was evaluated for.
func (s *Session) Host() string { return s.host }

// Active reports whether capture hooks were installed.
func (s *Session) Active() bool { return s.active }

// Registry exposes the hooks for the host to wire into its primitives.
func (s *Session) Registry() *capture.Registry { return s.registry }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Signals:      s.signals.Load(),
		Forwarded:    s.forwarded.Load(),
		RateLimited:  s.rateLimited.Load(),
		Duplicates:   s.duplicates.Load(),
		SendFailures: s.sendFailures.Load(),
	}
}

func (s *Session) handle(sig capture.Signal) {
	s.signals.Add(1)
	metrics.SignalsCaptured.WithLabelValues(string(sig.Hook)).Inc()

	ev := s.norm.Normalize(sig)
	decision := s.throttle.Allow(ev)
	metrics.ThrottleDecisions.WithLabelValues(decision.String()).Inc()

	switch decision {
	case throttle.DroppedRateLimited:
		s.rateLimited.Add(1)
		s.log.Debug("[PageSession] Rate limited %s: %s", ev.Type, ev.Message)
		return
	case throttle.DroppedDuplicate:
		s.duplicates.Add(1)
		return
	}

	res := transport.Safe(s.ctx, s.sender, ev)
	if res.Err != nil || !res.Delivered {
		s.sendFailures.Add(1)
		metrics.TransportFailures.Inc()
		s.log.Debug("[PageSession] Send failed for %s: %v", ev.Type, res.Err)
		return
	}
	s.forwarded.Add(1)
}
