// Package ingest accepts captured events from page sessions, assigns their
// identity, keeps the bounded log and drives each event's analysis status.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"errlens-agent/src/analyze"
	"errlens-agent/src/config"
	"errlens-agent/src/contracts"
	"errlens-agent/src/gate"
	"errlens-agent/src/logger"
	"errlens-agent/src/metrics"
	"errlens-agent/src/notify"
	"errlens-agent/src/store"
)

// InterruptedReason is recorded on events that were analyzing when the
// process stopped.
const InterruptedReason = "analysis interrupted by restart"

var (
	// ErrUnknownKind is returned for envelopes that are not error_captured.
	ErrUnknownKind = errors.New("unknown envelope kind")

	// ErrNotFailed is returned by Requeue for events that are not failed.
	ErrNotFailed = errors.New("event is not in failed state")

	// ErrInvalidTransition is returned when a status change would move an
	// event backwards or skip a step.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Enqueuer is the analysis queue as seen by ingestion.
type Enqueuer interface {
	Enqueue(id string)
	Reset()
}

// ReceiveResult reports what happened to one envelope.
type ReceiveResult struct {
	ID        string
	Duplicate bool
	Event     contracts.Event
}

// Options configures a Service.
type Options struct {
	Store    store.Store
	Notifier notify.Notifier
	Limit    int
	Config   func() *config.Config
	Logger   logger.Logger
}

// Service is the single owner of ingestion state: the working set of known
// ids and their statuses, the durable log, and the analysis queue handle.
// All mutations are serialized by one mutex in arrival order.
type Service struct {
	mu      sync.Mutex
	working map[string]contracts.Status
	store   store.Store
	notify  notify.Notifier
	queue   Enqueuer
	limit   int
	config  func() *config.Config
	log     logger.Logger
}

// NewService creates a service. Attach a queue before receiving events.
func NewService(opts Options) *Service {
	s := &Service{
		working: make(map[string]contracts.Status),
		store:   opts.Store,
		notify:  opts.Notifier,
		limit:   opts.Limit,
		config:  opts.Config,
		log:     opts.Logger,
	}
	if s.store == nil {
		s.store = store.NewMemoryStore()
	}
	if s.notify == nil {
		s.notify = notify.NotifierFunc(func(contracts.Notification) {})
	}
	if s.limit <= 0 {
		s.limit = store.DefaultLimit
	}
	if s.config == nil {
		s.config = config.Default
	}
	if s.log == nil {
		s.log = logger.NewSilentLogger()
	}
	return s
}

// Attach sets the analysis queue that new and requeued events are sent to.
func (s *Service) Attach(q Enqueuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = q
}

// ComputeID derives the event id from its identifying fields and capture
// time: 16 hex chars of sha256(type|message|filename|lineno), a dash, and
// the timestamp in base-36 milliseconds.
func ComputeID(ev contracts.Event) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", ev.Type, ev.Message, ev.Filename, ev.Lineno)))
	return hex.EncodeToString(sum[:])[:16] + "-" + strconv.FormatInt(ev.Timestamp.UnixMilli(), 36)
}

// Receive ingests one envelope. An id already in the working set is
// reported as a duplicate and nothing else happens.
func (s *Service) Receive(ctx context.Context, env contracts.Envelope) (ReceiveResult, error) {
	if env.Kind != contracts.KindErrorCaptured {
		return ReceiveResult{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}

	ev := env.Payload.Clone()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.ID = ComputeID(ev)
	ev.TabID = env.Sender.TabID
	ev.TabOrigin = env.Sender.Origin
	ev.Status = contracts.StatusPending
	ev.Analysis = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.working[ev.ID]; ok {
		metrics.EventsDuplicate.Inc()
		s.log.Debug("[IngestService] Duplicate event %s ignored", ev.ID)
		return ReceiveResult{ID: ev.ID, Duplicate: true}, nil
	}

	evicted, err := s.store.Prepend(ctx, ev, s.limit)
	if err != nil {
		return ReceiveResult{}, fmt.Errorf("failed to store event %s: %w", ev.ID, err)
	}
	s.working[ev.ID] = contracts.StatusPending
	for _, id := range evicted {
		delete(s.working, id)
	}
	if len(evicted) > 0 {
		metrics.EventsEvicted.Add(float64(len(evicted)))
		s.log.Debug("[IngestService] Evicted %d old event(s)", len(evicted))
	}
	metrics.EventsIngested.WithLabelValues(string(ev.Type)).Inc()

	s.log.Info("[IngestService] Captured %s %s from tab %s", ev.Type, ev.ID, ev.TabID)
	s.notify.Notify(notify.NewEvent(ev))
	if s.queue != nil {
		s.queue.Enqueue(ev.ID)
	}
	return ReceiveResult{ID: ev.ID, Event: ev.Clone()}, nil
}

// Errors returns the log, most recent first.
func (s *Service) Errors(ctx context.Context) ([]contracts.Event, error) {
	events, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Get returns one event from the log.
func (s *Service) Get(ctx context.Context, id string) (contracts.Event, error) {
	return s.store.Get(ctx, id)
}

// Clear empties the log and the working set together, drops queued
// analysis work and notifies observers.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	n := len(s.working)
	s.working = make(map[string]contracts.Status)
	if s.queue != nil {
		s.queue.Reset()
	}
	s.log.Info("[IngestService] Cleared %d event(s)", n)
	s.notify.Notify(notify.ErrorsCleared())
	return nil
}

// Config returns the display-safe configuration view.
func (s *Service) Config() contracts.ConfigView {
	return s.config().View()
}

// CheckDomain reports whether capture would be active on host under the
// current configuration.
func (s *Service) CheckDomain(host string) bool {
	cfg := s.config()
	return gate.New(cfg.Enabled, cfg.Domains).Allowed(host)
}

// MarkAnalyzing moves a pending event to analyzing.
func (s *Service) MarkAnalyzing(ctx context.Context, id string) (contracts.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.transition(ctx, id, contracts.StatusPending, contracts.StatusAnalyzing, nil)
	if err != nil {
		return contracts.Event{}, err
	}
	s.notify.Notify(notify.StatusUpdated(id, contracts.StatusAnalyzing))
	return ev, nil
}

// Complete records a successful analysis.
func (s *Service) Complete(ctx context.Context, id string, a contracts.Analysis) (contracts.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.transition(ctx, id, contracts.StatusAnalyzing, contracts.StatusCompleted, &a)
	if err != nil {
		return contracts.Event{}, err
	}
	s.log.Info("[IngestService] Analysis completed for %s (severity %s)", id, a.Severity)
	s.notify.Notify(notify.AnalysisCompleted(ev))
	return ev, nil
}

// Fail records a failed analysis with its reason.
func (s *Service) Fail(ctx context.Context, id string, reason string) (contracts.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.transition(ctx, id, contracts.StatusAnalyzing, contracts.StatusFailed, &contracts.Analysis{Error: reason})
	if err != nil {
		return contracts.Event{}, err
	}
	s.log.Warn("[IngestService] Analysis failed for %s: %s", id, reason)
	s.notify.Notify(notify.AnalysisFailed(id, reason))
	return ev, nil
}

// Requeue sends a failed event back to the analysis queue. It is only ever
// triggered explicitly.
func (s *Service) Requeue(ctx context.Context, id string) (contracts.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.working[id]
	if !ok {
		return contracts.Event{}, fmt.Errorf("failed to requeue %s: %w", id, store.ErrNotFound)
	}
	if status != contracts.StatusFailed {
		return contracts.Event{}, fmt.Errorf("failed to requeue %s (%s): %w", id, status, ErrNotFailed)
	}

	ev, err := s.store.Get(ctx, id)
	if err != nil {
		return contracts.Event{}, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	ev.Status = contracts.StatusPending
	ev.Analysis = nil
	if err := s.store.Update(ctx, ev); err != nil {
		return contracts.Event{}, fmt.Errorf("failed to persist event %s: %w", id, err)
	}
	s.working[id] = contracts.StatusPending

	s.log.Info("[IngestService] Requeued %s", id)
	s.notify.Notify(notify.StatusUpdated(id, contracts.StatusPending))
	if s.queue != nil {
		s.queue.Enqueue(id)
	}
	return ev, nil
}

// Restore loads the persisted log into the working set. Pending events are
// queued oldest first; events left analyzing by a previous run are marked
// failed. It returns the number of events loaded.
func (s *Service) Restore(ctx context.Context) (int, error) {
	events, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load events: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []string
	for _, ev := range events {
		if ev.Status == contracts.StatusAnalyzing {
			ev.Status = contracts.StatusFailed
			ev.Analysis = &contracts.Analysis{Error: InterruptedReason}
			if err := s.store.Update(ctx, ev); err != nil {
				return 0, fmt.Errorf("failed to persist event %s: %w", ev.ID, err)
			}
		}
		if ev.Status == "" {
			ev.Status = contracts.StatusPending
		}
		s.working[ev.ID] = ev.Status
		if ev.Status == contracts.StatusPending {
			pending = append(pending, ev.ID)
		}
	}

	if s.queue != nil {
		for i := len(pending) - 1; i >= 0; i-- {
			s.queue.Enqueue(pending[i])
		}
	}
	s.log.Info("[IngestService] Restored %d event(s), %d pending analysis", len(events), len(pending))
	return len(events), nil
}

// Len returns the size of the working set.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.working)
}

// transition applies from -> to for id. Callers hold s.mu. An id missing
// from the working set yields analyze.ErrStale so late results are dropped.
func (s *Service) transition(ctx context.Context, id string, from, to contracts.Status, a *contracts.Analysis) (contracts.Event, error) {
	status, ok := s.working[id]
	if !ok {
		return contracts.Event{}, analyze.ErrStale
	}
	if status != from {
		return contracts.Event{}, fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, id, status, from)
	}

	ev, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		delete(s.working, id)
		return contracts.Event{}, analyze.ErrStale
	}
	if err != nil {
		return contracts.Event{}, fmt.Errorf("failed to load event %s: %w", id, err)
	}

	ev.Status = to
	ev.Analysis = a
	if err := s.store.Update(ctx, ev); err != nil {
		return contracts.Event{}, fmt.Errorf("failed to persist event %s: %w", id, err)
	}
	s.working[id] = to
	return ev, nil
}

var _ analyze.Tracker = (*Service)(nil)
