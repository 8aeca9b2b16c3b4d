package xp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownReason is returned when crediting a reason with no reward.
	ErrUnknownReason = errors.New("unknown xp reason")
	// ErrAlreadyCredited is returned when the user already holds an award for the same reason and ref.
	ErrAlreadyCredited = errors.New("xp already credited")
)

// Award is one committed ledger row together with the user's new totals.
type Award struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"-"`
	Email         string    `json:"-"`
	Reason        Reason    `json:"reason"`
	Amount        int       `json:"amount"`
	RefID         string    `json:"ref_id,omitempty"`
	TotalXP       int       `json:"total_xp"`
	Level         int       `json:"level"`
	PreviousLevel int       `json:"previous_level"`
	CreatedAt     time.Time `json:"created_at"`
}

// LeveledUp reports whether this award moved the user to a higher level.
func (a *Award) LeveledUp() bool {
	return a.Level > a.PreviousLevel
}

// Tx is the part of *sql.Tx the ledger needs.
type Tx interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreditTx records an award and bumps the user's XP and level inside tx. Callers
// commit tx and then hand the award to an Announcer. A non-empty refID is credited
// at most once per user and reason.
func CreditTx(ctx context.Context, tx Tx, userID string, reason Reason, refID string) (*Award, error) {
	amount := RewardFor(reason)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReason, reason)
	}

	a := &Award{UserID: userID, Reason: reason, Amount: amount, RefID: refID}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO xp_awards (user_id, reason, amount, ref_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, reason, ref_id) WHERE ref_id <> '' DO NOTHING
		RETURNING id, created_at`,
		userID, string(reason), amount, refID,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyCredited
	}
	if err != nil {
		return nil, fmt.Errorf("insert xp award: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET xp = xp + $2, level = (xp + $2) / $3 + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING xp, level, username, email`,
		userID, amount, PointsPerLevel,
	).Scan(&a.TotalXP, &a.Level, &a.Username, &a.Email)
	if err != nil {
		return nil, fmt.Errorf("update user xp: %w", err)
	}

	a.PreviousLevel = LevelFor(a.TotalXP - amount)
	return a, nil
}
