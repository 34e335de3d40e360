package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"errlens-agent/src/broker"
	"errlens-agent/src/contracts"
)

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx)
	b := hub.Subscribe(ctx)

	hub.Notify(StatusUpdated("ev-1", contracts.StatusAnalyzing))

	for i, ch := range []<-chan contracts.Notification{a, b} {
		select {
		case n := <-ch:
			if n.Kind != contracts.NotifyStatusUpdated || n.ID != "ev-1" || n.Status != contracts.StatusAnalyzing {
				t.Errorf("Subscriber %d: unexpected notification %+v", i, n)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %d: timeout", i)
		}
	}
}

func TestHub_EventIsCopied(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx)

	ev := contracts.Event{ID: "ev-1", Metadata: map[string]any{"k": "v"}}
	hub.Notify(NewEvent(ev))
	n := <-ch
	n.Event.Metadata["k"] = "mutated"

	if ev.Metadata["k"] != "v" {
		t.Error("Observers must not share the event's metadata map")
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			hub.Notify(ErrorsCleared())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow subscriber")
	}
	if hub.Dropped() != 10 {
		t.Errorf("Expected 10 drops, got %d", hub.Dropped())
	}
}

func TestHub_UnsubscribeOnCancel(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for close")
	}
	if hub.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.Subscribers())
	}
	hub.Notify(ErrorsCleared())
}

func TestHub_PublishesToBroker(t *testing.T) {
	brk := broker.NewInMemoryBroker()
	defer brk.Close()
	ctx := context.Background()
	msgs, err := brk.Subscribe(ctx, contracts.TopicNotifications, "display")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	hub := NewHub(brk, nil)
	hub.Notify(AnalysisFailed("ev-9", "invalid API key"))

	select {
	case msg := <-msgs:
		var n contracts.Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if n.Kind != contracts.NotifyAnalysisFailed || n.Error != "invalid API key" {
			t.Errorf("Unexpected notification: %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for broker publish")
	}
}

// stallBroker blocks every publish until its context ends.
type stallBroker struct {
	deadlines chan bool
}

func (b *stallBroker) Publish(ctx context.Context, topic, key string, value []byte) error {
	_, ok := ctx.Deadline()
	select {
	case b.deadlines <- ok:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (b *stallBroker) Subscribe(ctx context.Context, topic, groupID string) (<-chan broker.Message, error) {
	return nil, nil
}

func (b *stallBroker) Close() error { return nil }

func TestHub_StalledBrokerDoesNotBlockNotify(t *testing.T) {
	brk := &stallBroker{deadlines: make(chan bool, 1)}
	hub := NewHub(brk, nil)
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	display := hub.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < outboxSize*2; i++ {
			hub.Notify(StatusUpdated("ev", contracts.StatusPending))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked behind a stalled broker")
	}

	select {
	case n := <-display:
		if n.Kind != contracts.NotifyStatusUpdated {
			t.Errorf("Unexpected notification: %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Local subscriber starved by stalled broker")
	}
	if hub.Dropped() == 0 {
		t.Error("Expected overflowing outbox to be counted as dropped")
	}

	select {
	case hasDeadline := <-brk.deadlines:
		if !hasDeadline {
			t.Error("Expected broker publish to carry a deadline")
		}
	case <-time.After(time.Second):
		t.Fatal("Broker publish never attempted")
	}
}
