package xp

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventTypeAwarded is the event type of AwardedEvent on the wire.
const EventTypeAwarded = "xp.awarded"

// AwardedEvent is published after every committed award.
type AwardedEvent struct {
	// MessageID deduplicates redeliveries on the consumer side.
	MessageID     string    `json:"message_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Reason        Reason    `json:"reason"`
	Amount        int       `json:"amount"`
	RefID         string    `json:"ref_id,omitempty"`
	TotalXP       int       `json:"total_xp"`
	Level         int       `json:"level"`
	PreviousLevel int       `json:"previous_level"`
}

// LeveledUp reports whether the award crossed a level boundary.
func (e AwardedEvent) LeveledUp() bool {
	return e.Level > e.PreviousLevel
}

// NewAwardedEvent builds the event for a committed award.
func NewAwardedEvent(a *Award) AwardedEvent {
	return AwardedEvent{
		MessageID:     uuid.New().String(),
		EventType:     EventTypeAwarded,
		Timestamp:     time.Now().UTC(),
		UserID:        a.UserID,
		Username:      a.Username,
		Email:         a.Email,
		Reason:        a.Reason,
		Amount:        a.Amount,
		RefID:         a.RefID,
		TotalXP:       a.TotalXP,
		Level:         a.Level,
		PreviousLevel: a.PreviousLevel,
	}
}

// Publisher emits award events to downstream consumers.
type Publisher interface {
	PublishAward(ctx context.Context, event AwardedEvent) error
}

type nopPublisher struct{}

// NopPublisher returns a Publisher that drops events. Used when Kafka is not configured.
func NopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) PublishAward(context.Context, AwardedEvent) error { return nil }

// Invalidator drops cached rankings.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Announcer runs the post-commit side effects of an award. Failures are logged and
// never undo the award.
type Announcer struct {
	publisher Publisher
	board     Invalidator
	logger    *slog.Logger
}

// NewAnnouncer creates an Announcer. board may be nil.
func NewAnnouncer(publisher Publisher, board Invalidator, logger *slog.Logger) *Announcer {
	if publisher == nil {
		publisher = NopPublisher()
	}
	return &Announcer{publisher: publisher, board: board, logger: logger}
}

// Announce publishes the award and invalidates the leaderboard cache.
func (a *Announcer) Announce(ctx context.Context, award *Award) {
	if award == nil {
		return
	}

	if a.board != nil {
		if err := a.board.Invalidate(ctx); err != nil {
			a.logger.Warn("failed to invalidate leaderboard", "error", err)
		}
	}

	event := NewAwardedEvent(award)
	if err := a.publisher.PublishAward(ctx, event); err != nil {
		a.logger.Error("failed to publish xp award",
			"user_id", award.UserID,
			"reason", award.Reason,
			"message_id", event.MessageID,
			"error", err)
		return
	}

	a.logger.Info("xp awarded",
		"user_id", award.UserID,
		"reason", award.Reason,
		"amount", award.Amount,
		"level", award.Level)
}
