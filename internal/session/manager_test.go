package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManager_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore())

	id, err := mgr.Create(ctx, "user-1", "ada", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a session id")
	}

	s, err := mgr.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.UserID != "user-1" || s.Username != "ada" {
		t.Errorf("unexpected session %+v", s)
	}

	ok, err := mgr.Validate(ctx, id)
	if err != nil || !ok {
		t.Errorf("Validate = %v, %v", ok, err)
	}
}

func TestManager_GetUnknown(t *testing.T) {
	mgr := NewManager(NewMemoryStore())

	if _, err := mgr.Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := mgr.Get(context.Background(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for empty id, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore())

	id, _ := mgr.Create(ctx, "user-1", "ada", time.Hour)
	if err := mgr.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := mgr.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestManager_Expired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	m := &manager{store: store, now: func() time.Time { return now }}

	id, err := m.Create(ctx, "user-1", "ada", time.Minute)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Store TTL still alive, session payload already past expiry.
	store.now = func() time.Time { return now }
	m.now = func() time.Time { return now.Add(2 * time.Minute) }

	if _, err := m.Get(ctx, id); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
	if ok, _ := store.Exists(ctx, key(id)); ok {
		t.Error("expired session should be removed from the store")
	}
}

func TestManager_RejectsNonPositiveMaxAge(t *testing.T) {
	mgr := NewManager(NewMemoryStore())
	if _, err := mgr.Create(context.Background(), "u", "n", 0); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	_ = store.Set(ctx, "k", "v", time.Second)
	if v, err := store.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	store.now = func() time.Time { return now.Add(2 * time.Second) }
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after ttl, got %v", err)
	}
}
