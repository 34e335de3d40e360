package broker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscription channel capacity.
const subscriberBuffer = 1024

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker is closed")

// InMemoryBroker is a process-local Broker. Every subscription on a topic
// receives every message published to it. A subscriber that falls more than
// subscriberBuffer messages behind loses messages rather than blocking publishers.
type InMemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	offsets     map[string]int64
	dropped     int64
	closed      bool
}

type subscription struct {
	ch chan Message
}

// NewInMemoryBroker creates a new InMemoryBroker instance.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subscribers: make(map[string][]*subscription),
		offsets:     make(map[string]int64),
	}
}

// Publish delivers the message to all current subscribers of topic.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	offset := b.offsets[topic]
	b.offsets[topic] = offset + 1

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Offset:    offset,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- msg:
		default:
			b.dropped++
		}
	}
	return nil
}

// Subscribe registers a new subscription on topic. groupID is ignored.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &subscription{ch: make(chan Message, subscriberBuffer)}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, sub)
	}()

	return sub.ch, nil
}

func (b *InMemoryBroker) unsubscribe(topic string, target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub == target {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Dropped returns how many deliveries were lost to full subscriber buffers.
func (b *InMemoryBroker) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close closes every subscription channel. Further publishes fail with ErrClosed.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for topic, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(b.subscribers, topic)
	}
	return nil
}
