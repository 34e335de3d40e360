package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"errlens-agent/src/contracts"
)

const (
	defaultBufferSize   = 256
	defaultSendTimeout  = 5 * time.Second
	defaultDrainTimeout = 2 * time.Second
)

// ErrBufferFull is returned by Async.Send when the event was dropped.
var ErrBufferFull = errors.New("transport buffer full")

// ErrClosed is returned by Async.Send after Close.
var ErrClosed = errors.New("transport closed")

// Async decouples the page from delivery. Send enqueues and returns at once;
// one goroutine drains the buffer to the inner sender so per-page order is
// kept. A full buffer drops the event.
type Async struct {
	inner   Sender
	ch      chan contracts.Event
	done    chan struct{}
	timeout time.Duration
	onDone  func(contracts.Event, Result)

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	dropped   atomic.Int64
}

// AsyncOption configures an Async sender.
type AsyncOption func(*Async)

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.ch = make(chan contracts.Event, n)
		}
	}
}

// WithSendTimeout bounds each inner send.
func WithSendTimeout(d time.Duration) AsyncOption {
	return func(a *Async) { a.timeout = d }
}

// WithResultHook is called after every inner send, on the drain goroutine.
func WithResultHook(fn func(contracts.Event, Result)) AsyncOption {
	return func(a *Async) { a.onDone = fn }
}

// NewAsync starts the drain goroutine.
func NewAsync(inner Sender, opts ...AsyncOption) *Async {
	a := &Async{
		inner:   inner,
		ch:      make(chan contracts.Event, defaultBufferSize),
		done:    make(chan struct{}),
		timeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.drain()
	return a
}

// Send enqueues ev. Delivered reports only that the event was accepted.
func (a *Async) Send(_ context.Context, ev contracts.Event) Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return Result{Err: ErrClosed}
	}
	select {
	case a.ch <- ev:
		return Result{Delivered: true}
	default:
		a.dropped.Add(1)
		return Result{Err: ErrBufferFull}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits briefly for the buffer to drain.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		a.mu.Unlock()

		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
		}
	})
}

func (a *Async) drain() {
	defer close(a.done)
	for ev := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		res := Safe(ctx, a.inner, ev)
		cancel()
		if a.onDone != nil {
			a.onDone(ev, res)
		}
	}
}
