// Package notify consumes XP award events and emails users when they level up.
package notify

import (
	"time"

	"studysphere/internal/xp"
)

// LevelUp is the content of a level-up email
type LevelUp struct {
	Email    string
	Username string
	Level    int
	TotalXP  int
	Reason   xp.Reason
}

// LevelUpFrom extracts the email content from an award event.
func LevelUpFrom(e xp.AwardedEvent) LevelUp {
	return LevelUp{
		Email:    e.Email,
		Username: e.Username,
		Level:    e.Level,
		TotalXP:  e.TotalXP,
		Reason:   e.Reason,
	}
}

// Metadata is stored in Redis for every processed event
type Metadata struct {
	ProcessedAt time.Time `json:"processed_at"`
	UserID      string    `json:"user_id"`
	Level       int       `json:"level"`
	Emailed     bool      `json:"emailed"`
}

// DeadLetter wraps an event that could not be processed
type DeadLetter struct {
	OriginalEvent xp.AwardedEvent `json:"original_event"`
	Error         string          `json:"error"`
	FailedAt      time.Time       `json:"failed_at"`
	ConsumerGroup string          `json:"consumer_group"`
}
