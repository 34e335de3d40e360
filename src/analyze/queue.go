// Package analyze runs the analysis queue: one worker that sends pending
// events to the external model no faster than a fixed minimum interval.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"errlens-agent/src/contracts"
	"errlens-agent/src/logger"
	"errlens-agent/src/metrics"
)

// DefaultMinInterval is the minimum spacing between two external calls.
const DefaultMinInterval = time.Second

// ErrAlreadyRunning is returned by Run when a worker is already active.
var ErrAlreadyRunning = errors.New("analysis queue already running")

// ErrStale is returned by a Tracker when the event is no longer in the
// working set (for example after a clear).
var ErrStale = errors.New("event no longer tracked")

// Analyzer performs the external analysis call and returns the raw text.
type Analyzer interface {
	Analyze(ctx context.Context, ev contracts.Event) (string, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, ev contracts.Event) (string, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, ev contracts.Event) (string, error) {
	return f(ctx, ev)
}

// Tracker owns event state. The queue never writes events directly; every
// transition goes through it and is persisted and notified there.
type Tracker interface {
	MarkAnalyzing(ctx context.Context, id string) (contracts.Event, error)
	Complete(ctx context.Context, id string, a contracts.Analysis) (contracts.Event, error)
	Fail(ctx context.Context, id string, reason string) (contracts.Event, error)
}

// Queue is a FIFO of event ids drained by a single worker.
type Queue struct {
	analyzer Analyzer
	tracker  Tracker
	log      logger.Logger
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	items    []string
	wake     chan struct{}
	lastCall time.Time
	running  atomic.Bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithMinInterval sets the minimum spacing between external calls.
func WithMinInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.interval = d
		}
	}
}

// WithClock replaces the time source and the rate-limit wait. Intended for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(q *Queue) {
		q.now = now
		q.sleep = sleep
	}
}

// WithLogger sets the queue logger.
func WithLogger(log logger.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// NewQueue creates an idle queue. Call Run to start the worker.
func NewQueue(analyzer Analyzer, tracker Tracker, opts ...Option) *Queue {
	q := &Queue{
		analyzer: analyzer,
		tracker:  tracker,
		log:      logger.NewSilentLogger(),
		interval: DefaultMinInterval,
		now:      time.Now,
		sleep:    sleepContext,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue appends id. It never blocks.
func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	depth := len(q.items)
	q.mu.Unlock()
	metrics.AnalysisQueueDepth.Set(float64(depth))

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Reset drops every queued id. An in-flight call is not cancelled.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
	metrics.AnalysisQueueDepth.Set(0)
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	metrics.AnalysisQueueDepth.Set(float64(len(q.items)))
	return id, true
}

// Run is the worker loop. It returns when ctx is done. Only one Run may be
// active at a time.
func (q *Queue) Run(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer q.running.Store(false)

	q.log.Info("[AnalysisQueue] Starting (min interval %s)", q.interval)
	for {
		id, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				q.log.Info("[AnalysisQueue] Context cancelled, shutting down")
				return ctx.Err()
			}
		}
		if err := q.process(ctx, id); err != nil {
			if ctx.Err() != nil {
				q.log.Info("[AnalysisQueue] Context cancelled, shutting down")
				return ctx.Err()
			}
			q.log.Error("[AnalysisQueue] Error processing %s: %v", id, err)
		}
	}
}

// process handles one id: wait out the rate limit, mark analyzing, call the
// analyzer, then record the outcome. Stale ids are skipped without a call.
func (q *Queue) process(ctx context.Context, id string) error {
	if !q.lastCall.IsZero() {
		if wait := q.interval - q.now().Sub(q.lastCall); wait > 0 {
			if err := q.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	ev, err := q.tracker.MarkAnalyzing(ctx, id)
	if errors.Is(err, ErrStale) {
		q.log.Debug("[AnalysisQueue] Skipping %s: no longer tracked", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark analyzing: %w", err)
	}

	q.lastCall = q.now()
	text, callErr := q.analyzer.Analyze(ctx, ev)
	metrics.AnalysisDuration.Observe(float64(q.now().Sub(q.lastCall).Milliseconds()))

	if callErr != nil {
		q.log.Warn("[AnalysisQueue] Analysis failed for %s: %v", id, callErr)
		_, err = q.tracker.Fail(ctx, id, callErr.Error())
		return q.recorded(id, contracts.StatusFailed, err)
	}

	analysis, parsed := ParseAnalysis(text)
	if !parsed {
		q.log.Debug("[AnalysisQueue] No JSON in response for %s, using text as explanation", id)
	}
	_, err = q.tracker.Complete(ctx, id, analysis)
	return q.recorded(id, contracts.StatusCompleted, err)
}

func (q *Queue) recorded(id string, status contracts.Status, err error) error {
	if errors.Is(err, ErrStale) {
		metrics.AnalysisOutcomes.WithLabelValues("stale").Inc()
		q.log.Info("[AnalysisQueue] Discarded %s result for cleared event %s", status, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", status, err)
	}
	metrics.AnalysisOutcomes.WithLabelValues(string(status)).Inc()
	return nil
}
