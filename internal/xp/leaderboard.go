package xp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studysphere/internal/session"
)

// Period selects the window a leaderboard is ranked over
type Period string

const (
	PeriodWeek Period = "week"
	PeriodAll  Period = "all"
)

// ParsePeriod defaults to the weekly board for unknown values.
func ParsePeriod(s string) Period {
	if Period(s) == PeriodAll {
		return PeriodAll
	}
	return PeriodWeek
}

// LeaderboardSize is the number of ranked users returned.
const LeaderboardSize = 10

// DefaultBadge is shown for users without an earned badge.
const DefaultBadge = "Rising Star"

// Entry is one ranked user
type Entry struct {
	Rank      int    `json:"rank"`
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Image     string `json:"image"`
	XP        int    `json:"xp"`
	Level     int    `json:"level"`
	Badge     string `json:"badge"`
}

// Repository reads rankings and award history
type Repository interface {
	// Top returns users ordered by XP. A non-zero since restricts to XP earned after it.
	Top(ctx context.Context, limit int, since time.Time) ([]Entry, error)
	History(ctx context.Context, userID string, limit int) ([]Award, error)
}

// Leaderboard serves rankings through a cache-aside store.
type Leaderboard struct {
	repo   Repository
	cache  session.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewLeaderboard creates a Leaderboard. cache may be nil to always read through.
func NewLeaderboard(repo Repository, cache session.Store, ttl time.Duration, logger *slog.Logger) *Leaderboard {
	return &Leaderboard{repo: repo, cache: cache, ttl: ttl, now: time.Now, logger: logger}
}

func cacheKey(p Period) string {
	return "leaderboard:" + string(p)
}

// Top returns the ranked entries for period.
func (l *Leaderboard) Top(ctx context.Context, period Period) ([]Entry, error) {
	if l.cache != nil {
		if raw, err := l.cache.Get(ctx, cacheKey(period)); err == nil {
			var entries []Entry
			if err := json.Unmarshal([]byte(raw), &entries); err == nil {
				return entries, nil
			}
		} else if !errors.Is(err, session.ErrKeyNotFound) {
			l.logger.Warn("leaderboard cache read failed", "error", err)
		}
	}

	var since time.Time
	if period == PeriodWeek {
		since = l.now().Add(-7 * 24 * time.Hour)
	}

	entries, err := l.repo.Top(ctx, LeaderboardSize, since)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
		if entries[i].Badge == "" {
			entries[i].Badge = DefaultBadge
		}
	}

	if l.cache != nil {
		if data, err := json.Marshal(entries); err == nil {
			if err := l.cache.Set(ctx, cacheKey(period), string(data), l.ttl); err != nil {
				l.logger.Warn("leaderboard cache write failed", "error", err)
			}
		}
	}
	return entries, nil
}

// Invalidate drops every cached period.
func (l *Leaderboard) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	var errs []error
	for _, p := range []Period{PeriodWeek, PeriodAll} {
		if err := l.cache.Delete(ctx, cacheKey(p)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// History returns the most recent awards of a user.
func (l *Leaderboard) History(ctx context.Context, userID string, limit int) ([]Award, error) {
	return l.repo.History(ctx, userID, limit)
}
