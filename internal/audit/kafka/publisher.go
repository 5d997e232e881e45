// Package kafka ships audit records to a Kafka topic for downstream
// consumers. Delivery is best-effort; the store write is the durable copy.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"conductor/internal/audit"
)

// Publisher produces one JSON message per audit record, keyed by
// correlation id so records for one event land in one partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

func NewPublisher(broker, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

func (p *Publisher) Publish(ctx context.Context, record audit.Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("kafka: encode record: %w", err)
	}
	kafkaRecord := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(record.CorrelationID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, kafkaRecord).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}
