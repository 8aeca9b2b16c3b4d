// Package session provides login session management shared by the API and the gateway.
// Sessions are stored in Redis with TTL-based expiration.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a session has expired
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidSession is returned when session data is invalid
	ErrInvalidSession = errors.New("invalid session")
)

// Manager defines the interface for session management operations
type Manager interface {
	Create(ctx context.Context, userID, username string, maxAge time.Duration) (string, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	Validate(ctx context.Context, sessionID string) (bool, error)
}

type manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a new session manager
func NewManager(store Store) Manager {
	return &manager{
		store: store,
		now:   time.Now,
	}
}

func key(sessionID string) string {
	return "session:" + sessionID
}

// Create creates a new session and returns the session ID
func (m *manager) Create(ctx context.Context, userID, username string, maxAge time.Duration) (string, error) {
	if maxAge <= 0 {
		return "", fmt.Errorf("%w: non-positive max age", ErrInvalidSession)
	}

	sessionID := uuid.New().String()
	now := m.now()
	s := &Session{
		ID:        sessionID,
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := m.store.Set(ctx, key(sessionID), string(data), maxAge); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return sessionID, nil
}

// Get retrieves a session by ID
func (m *manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	data, err := m.store.Get(ctx, key(sessionID))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, ErrInvalidSession
	}

	if m.now().After(s.ExpiresAt) {
		_ = m.store.Delete(ctx, key(sessionID))
		return nil, ErrSessionExpired
	}

	return &s, nil
}

// Delete removes a session
func (m *manager) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, key(sessionID))
}

// Validate checks if a session exists and is valid
func (m *manager) Validate(ctx context.Context, sessionID string) (bool, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return s != nil, nil
}
