// Package throttle bounds how many events one page load forwards: a
// fixed-window rate limit followed by short-window duplicate suppression.
package throttle

import (
	"sync"
	"time"

	"errlens-agent/src/contracts"
)

// Decision is the outcome of Allow.
type Decision int

const (
	Allowed Decision = iota
	DroppedRateLimited
	DroppedDuplicate
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DroppedRateLimited:
		return "rate_limited"
	case DroppedDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Config holds the throttle limits.
type Config struct {
	// Limit is the number of events forwarded per Window.
	Limit  int
	Window time.Duration
	// Debounce is the minimum spacing between two events with the same key.
	Debounce time.Duration
	// SweepAbove triggers pruning of keys older than Horizon once the key
	// map holds more entries than this.
	SweepAbove int
	Horizon    time.Duration
}

// DefaultConfig returns the standard page limits.
func DefaultConfig() Config {
	return Config{
		Limit:      50,
		Window:     time.Minute,
		Debounce:   100 * time.Millisecond,
		SweepAbove: 100,
		Horizon:    10 * time.Second,
	}
}

type dedupKey struct {
	typ      contracts.EventType
	message  string
	filename string
}

// Throttle is safe for concurrent use. It holds per-page state only; create
// a new one (or call Reset) on navigation.
type Throttle struct {
	mu          sync.Mutex
	cfg         Config
	now         func() time.Time
	windowStart time.Time
	count       int
	lastSent    map[dedupKey]time.Time
}

// New creates a Throttle. Zero fields in cfg take their default values.
func New(cfg Config) *Throttle {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.SweepAbove <= 0 {
		cfg.SweepAbove = def.SweepAbove
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	return &Throttle{
		cfg:      cfg,
		now:      time.Now,
		lastSent: make(map[dedupKey]time.Time),
	}
}

// WithClock replaces the time source. Intended for tests.
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// Allow decides whether ev is forwarded. The rate limit is checked first;
// only allowed events count against it or refresh their duplicate key.
func (t *Throttle) Allow(ev contracts.Event) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= t.cfg.Window {
		t.windowStart = now
		t.count = 0
	}
	if t.count >= t.cfg.Limit {
		return DroppedRateLimited
	}

	key := dedupKey{typ: ev.Type, message: ev.Message, filename: ev.Filename}
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.cfg.Debounce {
		return DroppedDuplicate
	}

	t.lastSent[key] = now
	t.count++
	if len(t.lastSent) > t.cfg.SweepAbove {
		t.sweep(now)
	}
	return Allowed
}

func (t *Throttle) sweep(now time.Time) {
	for k, ts := range t.lastSent {
		if now.Sub(ts) > t.cfg.Horizon {
			delete(t.lastSent, k)
		}
	}
}

// Reset clears all state, as on navigation.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windowStart = time.Time{}
	t.count = 0
	t.lastSent = make(map[dedupKey]time.Time)
}

// Stats is a point-in-time view of the throttle state.
type Stats struct {
	WindowCount int
	Keys        int
}

// Stats returns the current window count and key-map size.
func (t *Throttle) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{WindowCount: t.count, Keys: len(t.lastSent)}
}
