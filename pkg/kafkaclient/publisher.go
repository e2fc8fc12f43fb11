package kafkaclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines the interface for a Kafka message writer, mirroring
// KafkaReader so the publisher can be unit tested without a broker.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends JSON-encoded events to a single topic.
type Publisher struct {
	writer KafkaWriter
}

// NewPublisher creates a publisher for the given topic. Messages are hashed
// by key, so events for the same farmer land on the same partition in order.
func NewPublisher(topic, broker string) *Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(broker),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return &Publisher{writer: writer}
}

// Publish marshals value to JSON and writes it under the given key.
func (p *Publisher) Publish(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
