package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotConfirmed is returned when the user declines a destructive action.
var ErrNotConfirmed = errors.New("action not confirmed")

// ErrCannotDelete is returned for resources the user may not delete.
var ErrCannotDelete = errors.New("you cannot delete this resource")

// ConfirmFunc asks the user to confirm deleting r.
type ConfirmFunc func(r Resource) bool

// ResourceList is the resource panel of one session. Every mutation is followed by a
// full refetch.
type ResourceList struct {
	c         *Client
	sessionID int64

	busy atomic.Bool

	mu    sync.Mutex
	items []Resource
}

// NewResourceList creates an empty list; call Refresh to load it.
func (c *Client) NewResourceList(sessionID int64) *ResourceList {
	return &ResourceList{c: c, sessionID: sessionID}
}

// Items returns the last fetched resources.
func (l *ResourceList) Items() []Resource {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Resource, len(l.items))
	copy(out, l.items)
	return out
}

// Refresh reloads the list from the server.
func (l *ResourceList) Refresh(ctx context.Context) ([]Resource, error) {
	items, err := l.c.Sessions.GetResources(ctx, l.sessionID)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
	return l.Items(), nil
}

// Add validates and shares a link, then refetches.
func (l *ResourceList) Add(ctx context.Context, in ResourceInput) (*Resource, error) {
	if err := check(in.trimmed()); err != nil {
		return nil, err
	}
	if !l.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer l.busy.Store(false)

	r, err := l.c.Sessions.AddResource(ctx, l.sessionID, in)
	if err != nil {
		return nil, err
	}
	if _, err := l.Refresh(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// Delete removes r after confirm approves it, then refetches.
func (l *ResourceList) Delete(ctx context.Context, r Resource, confirm ConfirmFunc) error {
	if !r.CanDelete {
		return ErrCannotDelete
	}
	if confirm == nil || !confirm(r) {
		return ErrNotConfirmed
	}
	if !l.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer l.busy.Store(false)

	if err := l.c.Sessions.DeleteResource(ctx, l.sessionID, r.ID); err != nil {
		return err
	}
	_, err := l.Refresh(ctx)
	return err
}
