package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	studykafka "studysphere/internal/kafka"
	"studysphere/internal/xp"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// DeadLetterPublisher publishes failed events to the DLQ topic
type DeadLetterPublisher interface {
	PublishRaw(ctx context.Context, topic string, key, value []byte, headers []kafka.Header) error
}

// Consumer reads XP events from Kafka and hands them to a Processor
type Consumer struct {
	consumer  *kafka.Consumer
	processor *Processor
	dlq       DeadLetterPublisher
	config    *studykafka.Config
	logger    *slog.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *studykafka.Config, processor *Processor, dlq DeadLetterPublisher, logger *slog.Logger) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  config.Brokers,
		"group.id":           config.ConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized",
		"brokers", config.Brokers,
		"topic", config.XPEventsTopic,
		"group", config.ConsumerGroup)

	return &Consumer{
		consumer:  c,
		processor: processor,
		dlq:       dlq,
		config:    config,
		logger:    logger,
	}, nil
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.config.XPEventsTopic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	c.logger.Info("Starting to consume messages", "topic", c.config.XPEventsTopic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer shutting down...")
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("Error reading message", "error", err)
			continue
		}

		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg *kafka.Message) {
	c.logger.Debug("Received XP event",
		"topic", *msg.TopicPartition.Topic,
		"partition", msg.TopicPartition.Partition,
		"offset", msg.TopicPartition.Offset)

	event, outcome, err := c.processor.Process(ctx, msg.Value)
	switch outcome {
	case OutcomeRetry:
		c.logger.Error("Transient failure, offset left uncommitted",
			"messageID", event.MessageID,
			"error", err)
		c.rewind(msg)
		return
	case OutcomeDeadLetter:
		c.logger.Error("Failed to process XP event after retries",
			"messageID", event.MessageID,
			"error", err)
		c.sendToDLQ(ctx, msg, event, err)
	}

	c.commitMessage(msg)

	if outcome == OutcomeDone {
		c.logger.Info("XP event processed",
			"messageID", event.MessageID,
			"user_id", event.UserID,
			"leveled_up", event.LeveledUp())
	}
}

// rewind seeks back so the message is read again on the next poll.
func (c *Consumer) rewind(msg *kafka.Message) {
	if err := c.consumer.Seek(msg.TopicPartition, 0); err != nil {
		c.logger.Error("Failed to seek back", "offset", msg.TopicPartition.Offset, "error", err)
	}
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg *kafka.Message, event xp.AwardedEvent, processingError error) {
	data, err := json.Marshal(DeadLetter{
		OriginalEvent: event,
		Error:         processingError.Error(),
		FailedAt:      time.Now().UTC(),
		ConsumerGroup: c.config.ConsumerGroup,
	})
	if err != nil {
		c.logger.Error("Failed to marshal DLQ event", "messageID", event.MessageID, "error", err)
		return
	}

	if err := c.dlq.PublishRaw(ctx, c.config.XPDLQTopic, msg.Key, data, msg.Headers); err != nil {
		c.logger.Error("Failed to send to DLQ", "messageID", event.MessageID, "error", err)
		return
	}

	c.logger.Warn("XP event sent to DLQ",
		"messageID", event.MessageID,
		"user_id", event.UserID,
		"dlq_topic", c.config.XPDLQTopic)
}

func (c *Consumer) commitMessage(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Error("Failed to commit offset",
			"topic", *msg.TopicPartition.Topic,
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
	}
}

// Close closes the consumer
func (c *Consumer) Close() {
	c.logger.Info("Closing Kafka consumer...")
	if err := c.consumer.Close(); err != nil {
		c.logger.Error("Failed to close consumer", "error", err)
	}
	c.logger.Info("Kafka consumer closed")
}
