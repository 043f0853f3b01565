package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes session events to the session topic.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a producer for the session event topic.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        Topic,
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// WriteMessages publishes the batch, blocking until acknowledged.
func (p *KafkaProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close releases the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
