// Package kafka publishes XP events with the confluent Kafka client.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"studysphere/internal/xp"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// HeaderEventType carries the event type so consumers can route without decoding.
const HeaderEventType = "event_type"

// Producer wraps Kafka producer with helper methods
type Producer struct {
	producer *kafka.Producer
	config   *Config
	logger   *slog.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(config *Config, logger *slog.Logger) (*Producer, error) {
	producerConfig := &kafka.ConfigMap{
		"bootstrap.servers":                     config.Brokers,
		"enable.idempotence":                    config.EnableIdempotence,
		"acks":                                  config.Acks,
		"max.in.flight.requests.per.connection": 5,
		"retries":                               2147483647,
	}

	p, err := kafka.NewProducer(producerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	producer := &Producer{
		producer: p,
		config:   config,
		logger:   logger,
	}

	go producer.handleDeliveryReports()

	logger.Info("Kafka producer initialized",
		"brokers", config.Brokers,
		"topic", config.XPEventsTopic,
		"idempotence", config.EnableIdempotence)

	return producer, nil
}

// awardMessage encodes an event keyed by user id, so one user's awards stay ordered
// within a partition.
func awardMessage(topic string, event xp.AwardedEvent) (*kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
		},
	}, nil
}

// PublishAward implements xp.Publisher. Delivery is reported asynchronously.
func (p *Producer) PublishAward(ctx context.Context, event xp.AwardedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := awardMessage(p.config.XPEventsTopic, event)
	if err != nil {
		return err
	}

	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.logger.Debug("XP event published to Kafka",
		"topic", p.config.XPEventsTopic,
		"message_id", event.MessageID,
		"size", len(msg.Value))

	return nil
}

// PublishRaw publishes value to topic and waits for the delivery report.
// The notifier uses it for dead letters.
func (p *Producer) PublishRaw(ctx context.Context, topic string, key, value []byte, headers []kafka.Header) error {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
		Headers:        headers,
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
		}
		p.logger.Info("Message published to Kafka (sync)",
			"topic", *m.TopicPartition.Topic,
			"partition", m.TopicPartition.Partition,
			"offset", m.TopicPartition.Offset)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) handleDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("Delivery failed",
					"topic", *ev.TopicPartition.Topic,
					"key", string(ev.Key),
					"error", ev.TopicPartition.Error)
			} else {
				p.logger.Debug("Message delivered",
					"topic", *ev.TopicPartition.Topic,
					"partition", ev.TopicPartition.Partition,
					"offset", ev.TopicPartition.Offset)
			}
		case kafka.Error:
			p.logger.Error("Kafka producer error", "error", ev)
		}
	}
}

// Flush waits for all messages to be delivered
func (p *Producer) Flush(timeoutMs int) int {
	remaining := p.producer.Flush(timeoutMs)
	if remaining > 0 {
		p.logger.Warn("Failed to flush all messages",
			"remaining", remaining)
	}
	return remaining
}

// Close flushes outstanding messages and closes the producer
func (p *Producer) Close() {
	p.logger.Info("Closing Kafka producer...")

	if remaining := p.Flush(10000); remaining > 0 {
		p.logger.Error("Some messages were not delivered",
			"count", remaining)
	}

	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
