package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"studysphere/internal/xp"
)

// Outcome tells the consumer what to do with a message offset.
type Outcome int

const (
	// OutcomeDone means the event was handled; commit.
	OutcomeDone Outcome = iota
	// OutcomeSkipped means the event was malformed or a duplicate; commit.
	OutcomeSkipped
	// OutcomeRetry means a transient failure; leave the offset uncommitted.
	OutcomeRetry
	// OutcomeDeadLetter means sending failed after all retries; publish to the DLQ and commit.
	OutcomeDeadLetter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRetry:
		return "retry"
	case OutcomeDeadLetter:
		return "dead_letter"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Processor applies the notification rules to one decoded event. It knows nothing
// about Kafka.
type Processor struct {
	sender     Sender
	store      Deduplicator
	maxRetries int
	backoff    func(attempt int) time.Duration
	logger     *slog.Logger
}

// NewProcessor creates a Processor. maxRetries <= 0 means 3.
func NewProcessor(sender Sender, store Deduplicator, maxRetries int, logger *slog.Logger) *Processor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Processor{
		sender:     sender,
		store:      store,
		maxRetries: maxRetries,
		backoff:    func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		logger:     logger,
	}
}

// Process handles the raw message value. The returned event is zero when the value
// could not be decoded.
func (p *Processor) Process(ctx context.Context, value []byte) (xp.AwardedEvent, Outcome, error) {
	var event xp.AwardedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		p.logger.Error("Failed to parse XP event", "error", err, "raw_value", string(value))
		return xp.AwardedEvent{}, OutcomeSkipped, nil
	}
	if event.MessageID == "" || event.EventType != xp.EventTypeAwarded {
		p.logger.Error("Invalid XP event", "message_id", event.MessageID, "event_type", event.EventType)
		return event, OutcomeSkipped, nil
	}

	processed, err := p.store.IsProcessed(ctx, event.MessageID)
	if err != nil {
		return event, OutcomeRetry, fmt.Errorf("check idempotency: %w", err)
	}
	if processed {
		p.logger.Warn("Duplicate XP event detected, skipping", "messageID", event.MessageID, "user_id", event.UserID)
		return event, OutcomeSkipped, nil
	}

	emailed := false
	if event.LeveledUp() {
		if err := p.sendWithRetry(ctx, event); err != nil {
			return event, OutcomeDeadLetter, err
		}
		emailed = true
	}

	ok, err := p.store.MarkAsProcessed(ctx, event.MessageID, Metadata{
		ProcessedAt: time.Now().UTC(),
		UserID:      event.UserID,
		Level:       event.Level,
		Emailed:     emailed,
	})
	if err != nil {
		return event, OutcomeRetry, fmt.Errorf("mark processed: %w", err)
	}
	if !ok {
		p.logger.Warn("Event was processed by another consumer", "messageID", event.MessageID)
	}

	return event, OutcomeDone, nil
}

func (p *Processor) sendWithRetry(ctx context.Context, event xp.AwardedEvent) error {
	msg := LevelUpFrom(event)

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		err := p.sender.SendLevelUp(ctx, msg)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("Email sent successfully after retry", "messageID", event.MessageID, "attempt", attempt)
			}
			return nil
		}

		lastErr = err
		p.logger.Warn("Failed to send email, will retry",
			"messageID", event.MessageID,
			"attempt", attempt,
			"maxRetries", p.maxRetries,
			"error", err)

		if attempt < p.maxRetries {
			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
