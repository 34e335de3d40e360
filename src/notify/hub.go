// Package notify fans ingestion notifications out to display observers.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"errlens-agent/src/broker"
	"errlens-agent/src/contracts"
	"errlens-agent/src/logger"
	"errlens-agent/src/metrics"
)

const (
	subscriberBuffer = 256

	// outboxSize bounds notifications waiting for the broker.
	outboxSize = 256

	// publishTimeout caps one broker publish.
	publishTimeout = 5 * time.Second
)

// Notifier is what ingestion and the analysis queue publish to.
type Notifier interface {
	Notify(n contracts.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(contracts.Notification)

func (f NotifierFunc) Notify(n contracts.Notification) { f(n) }

// Hub delivers every notification to all current subscribers without
// blocking; a subscriber whose buffer is full misses the notification.
// When a broker is set, notifications are also published to
// errlens.notifications for out-of-process displays. Broker publishes run
// on a background goroutine fed by a bounded outbox, so Notify never waits
// on the broker; when the outbox is full the notification is dropped.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan contracts.Notification
	nextID  int
	broker  broker.Broker
	log     logger.Logger
	dropped int64

	outbox    chan contracts.Notification
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a hub. brk may be nil.
func NewHub(brk broker.Broker, log logger.Logger) *Hub {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	h := &Hub{
		subs:   make(map[int]chan contracts.Notification),
		broker: brk,
		log:    log,
		done:   make(chan struct{}),
	}
	if brk != nil {
		h.outbox = make(chan contracts.Notification, outboxSize)
		go h.publishLoop()
	}
	return h
}

// Close stops the broker publisher. Queued notifications are discarded.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) publishLoop() {
	for {
		select {
		case n := <-h.outbox:
			h.publish(n)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) publish(n contracts.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.log.Error("[NotifyHub] Failed to marshal %s notification: %v", n.Kind, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.broker.Publish(ctx, contracts.TopicNotifications, n.ID, data); err != nil {
		h.log.Warn("[NotifyHub] Failed to publish %s notification: %v", n.Kind, err)
	}
}

// Subscribe registers an observer. The channel is closed when ctx is done.
func (h *Hub) Subscribe(ctx context.Context) <-chan contracts.Notification {
	ch := make(chan contracts.Notification, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Subscribers returns the number of current observers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber or
// the broker outbox was full.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Notify delivers n without blocking. Event payloads are copied so
// observers cannot mutate ingestion state.
func (h *Hub) Notify(n contracts.Notification) {
	if n.Event != nil {
		ev := n.Event.Clone()
		n.Event = &ev
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.dropped++
			metrics.NotificationsDropped.Inc()
		}
	}
	if h.outbox == nil {
		return
	}
	select {
	case h.outbox <- n:
	default:
		h.dropped++
		metrics.NotificationsDropped.Inc()
	}
}

// NewEvent builds a new_event notification.
func NewEvent(ev contracts.Event) contracts.Notification {
	return contracts.Notification{Kind: contracts.NotifyNewEvent, Event: &ev, ID: ev.ID}
}

// StatusUpdated builds a status_updated notification.
func StatusUpdated(id string, status contracts.Status) contracts.Notification {
	return contracts.Notification{Kind: contracts.NotifyStatusUpdated, ID: id, Status: status}
}

// AnalysisCompleted builds an analysis_completed notification.
func AnalysisCompleted(ev contracts.Event) contracts.Notification {
	return contracts.Notification{Kind: contracts.NotifyAnalysisCompleted, Event: &ev, ID: ev.ID, Status: ev.Status}
}

// AnalysisFailed builds an analysis_failed notification.
func AnalysisFailed(id, reason string) contracts.Notification {
	return contracts.Notification{Kind: contracts.NotifyAnalysisFailed, ID: id, Status: contracts.StatusFailed, Error: reason}
}

// ErrorsCleared builds an errors_cleared notification.
func ErrorsCleared() contracts.Notification {
	return contracts.Notification{Kind: contracts.NotifyErrorsCleared}
}
