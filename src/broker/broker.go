// Package broker defines the interface for message brokers and provides implementations.
package broker

import "context"

// Broker abstracts message publishing and consumption.
// It carries captured-event envelopes from page sessions to ingestion and
// notifications from ingestion to displays. Implementations exist for a single
// process (in-memory) and for a distributed setup (Redpanda/Kafka).
type Broker interface {
	// Publish sends a message to a topic with an optional key for partitioning.
	// For in-memory broker, key is carried but not used for routing.
	// For Redpanda/Kafka, key is used for partition assignment.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel for consuming messages from a topic.
	// groupID is used for consumer group coordination in Kafka.
	// For in-memory broker, every subscription receives every message.
	// The channel is closed when ctx is cancelled or the broker is closed.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a consumed message from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}
