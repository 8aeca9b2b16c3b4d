package xp

import (
	"context"
	"fmt"
	"time"

	"studysphere/internal/database"
)

type repository struct {
	db database.Service
}

// NewRepository creates a Postgres-backed ranking repository
func NewRepository(db database.Service) Repository {
	return &repository{db: db}
}

func (r *repository) Top(ctx context.Context, limit int, since time.Time) ([]Entry, error) {
	query := `
		SELECT id, username, first_name, last_name, image, xp, level
		FROM users
		ORDER BY xp DESC, username ASC
		LIMIT $1`
	args := []any{limit}

	if !since.IsZero() {
		query = `
			SELECT u.id, u.username, u.first_name, u.last_name, u.image, COALESCE(SUM(a.amount), 0) AS earned, u.level
			FROM users u
			JOIN xp_awards a ON a.user_id = u.id AND a.created_at >= $2
			GROUP BY u.id
			ORDER BY earned DESC, u.username ASC
			LIMIT $1`
		args = append(args, since)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Username, &e.FirstName, &e.LastName, &e.Image, &e.XP, &e.Level); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) History(ctx context.Context, userID string, limit int) ([]Award, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, reason, amount, ref_id, created_at
		FROM xp_awards
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query xp history: %w", err)
	}
	defer rows.Close()

	awards := []Award{}
	for rows.Next() {
		var a Award
		var reason string
		if err := rows.Scan(&a.ID, &a.UserID, &reason, &a.Amount, &a.RefID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Reason = Reason(reason)
		awards = append(awards, a)
	}
	return awards, rows.Err()
}
