package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"studysphere/internal/schedule"
)

// State is where the current user stands with respect to a session.
type State string

const (
	StateNotMember   State = "NOT_MEMBER"
	StateEventPassed State = "EVENT_PASSED"
	StateNotRSVPd    State = "NOT_RSVPD"
	StateRSVPd       State = "RSVPD"
	StateAttended    State = "ATTENDED"
)

// ErrBusy is returned when a flow already has a request in flight.
var ErrBusy = errors.New("a request is already in progress")

// StateError is an action the current state does not allow. No request was sent.
type StateError struct {
	State  State
	Action string
}

func (e *StateError) Error() string {
	switch e.State {
	case StateNotMember:
		return "Join the group to RSVP to this session."
	case StateEventPassed:
		return "This session has already taken place."
	case StateRSVPd:
		return "You have already RSVP'd to this session."
	case StateAttended:
		return "You have already marked your attendance for this session."
	case StateNotRSVPd:
		return "RSVP to this session first."
	}
	return fmt.Sprintf("cannot %s in state %s", e.Action, e.State)
}

// EventPassed reports whether s has started by now. A server-computed start time wins
// over the free-text heuristic.
func EventPassed(s *Session, now time.Time) bool {
	if s.StartsAt != nil {
		return s.StartsAt.Before(now)
	}
	return schedule.EventPassed(s.Date, s.Time, now.Local())
}

// StateOf derives the RSVP state. Attendance and RSVPs already made take precedence over
// the gates that only block new RSVPs.
func StateOf(s *Session, now time.Time) State {
	switch {
	case s.HasAttended:
		return StateAttended
	case s.IsAttending:
		return StateRSVPd
	case s.Group != nil && !s.IsGroupMember:
		return StateNotMember
	case EventPassed(s, now):
		return StateEventPassed
	default:
		return StateNotRSVPd
	}
}

// RSVPFlow drives the RSVP button of one session.
type RSVPFlow struct {
	c   *Client
	now func() time.Time

	busy atomic.Bool

	mu      sync.Mutex
	session *Session
}

// NewRSVPFlow starts the flow from an already fetched session.
func (c *Client) NewRSVPFlow(s *Session) *RSVPFlow {
	return &RSVPFlow{c: c, now: time.Now, session: s}
}

// Session returns the last fetched session.
func (f *RSVPFlow) Session() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// State is the current RSVP state.
func (f *RSVPFlow) State() State {
	return StateOf(f.Session(), f.now())
}

// Busy reports whether a submission is in flight.
func (f *RSVPFlow) Busy() bool {
	return f.busy.Load()
}

// Submit RSVPs once and refetches the session. On failure the session is left as it was
// and the error carries the server's detail.
func (f *RSVPFlow) Submit(ctx context.Context) (*Session, error) {
	if st := f.State(); st != StateNotRSVPd {
		return nil, &StateError{State: st, Action: "rsvp"}
	}
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	id := f.Session().ID
	if err := f.c.Sessions.RSVP(ctx, id); err != nil {
		return nil, err
	}
	return f.refresh(ctx, id)
}

func (f *RSVPFlow) refresh(ctx context.Context, id int64) (*Session, error) {
	s, err := f.c.Sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	return s, nil
}
