package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"errlens-agent/src/logger"
)

// RedpandaBroker is a Kafka-compatible broker implementation using franz-go.
// It lets page hosts on other machines feed one ingestion process.
type RedpandaBroker struct {
	client    *kgo.Client
	brokers   []string
	logger    logger.Logger
	mu        sync.RWMutex
	consumers map[string]*kgo.Client // topic:group or topic#n -> consumer client
	seq       int
	closed    bool
}

// NewRedpandaBroker creates a new RedpandaBroker instance.
// brokers is a slice of broker addresses (e.g., ["localhost:19092"]).
func NewRedpandaBroker(brokers []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &RedpandaBroker{
		client:    client,
		brokers:   brokers,
		logger:    log,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// Publish sends a message to a topic with the specified key.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	// Keyed by tab id, so one tab's envelopes stay on one partition in order.
	record := &kgo.Record{Topic: topic, Value: value}
	if key != "" {
		record.Key = []byte(key)
	}
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe creates a consumer for topic. With a groupID the topic is
// shared among the group's members (ingestion workers). With an empty
// groupID the consumer reads every partition directly, so each display sees
// every notification. Consumers start at the end of the topic: envelopes
// produced while nothing was consuming are not replayed.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(b.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	}
	b.seq++
	consumerKey := fmt.Sprintf("%s#%d", topic, b.seq)
	if groupID != "" {
		consumerKey = topic + ":" + groupID
		if _, exists := b.consumers[consumerKey]; exists {
			return nil, fmt.Errorf("consumer already exists for topic %s and group %s", topic, groupID)
		}
		opts = append(opts, kgo.ConsumerGroup(groupID))
	}

	consumer, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	b.consumers[consumerKey] = consumer

	msgChan := make(chan Message, subscriberBuffer)
	go func() {
		b.consumeLoop(ctx, consumer, msgChan)
		b.release(consumerKey, consumer)
	}()

	return msgChan, nil
}

// release closes a consumer whose subscription ended, unless Close already did.
func (b *RedpandaBroker) release(key string, consumer *kgo.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumers[key] == consumer {
		delete(b.consumers, key)
		consumer.Close()
	}
}

// consumeLoop continuously polls for messages and sends them to the channel.
func (b *RedpandaBroker) consumeLoop(ctx context.Context, consumer *kgo.Client, msgChan chan<- Message) {
	defer close(msgChan)

	for {
		if ctx.Err() != nil {
			return
		}

		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				if ctx.Err() != nil {
					return
				}
				b.logger.Error("[RedpandaBroker] Fetch error on %s: %v", err.Topic, err.Err)
			}
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			msg := Message{
				Topic:     record.Topic,
				Key:       string(record.Key),
				Value:     record.Value,
				Offset:    record.Offset,
				Partition: record.Partition,
				Timestamp: record.Timestamp.UnixMilli(),
			}

			select {
			case msgChan <- msg:
			case <-ctx.Done():
			}
		})
	}
}

// Close shuts down the broker and all consumer connections.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, consumer := range b.consumers {
		consumer.Close()
	}
	b.consumers = make(map[string]*kgo.Client)

	b.client.Close()
	return nil
}
