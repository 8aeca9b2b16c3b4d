package client

import (
	"context"
	"sync"
	"sync/atomic"
)

// AttendanceDialog collects a verification code and submits it for one session.
type AttendanceDialog struct {
	c         *Client
	sessionID int64

	busy atomic.Bool

	mu      sync.Mutex
	code    string
	detail  string
	session *Session
}

// NewAttendanceDialog opens the dialog for a session.
func (c *Client) NewAttendanceDialog(sessionID int64) *AttendanceDialog {
	return &AttendanceDialog{c: c, sessionID: sessionID}
}

// Input replaces the typed code and returns what the field should show.
func (d *AttendanceDialog) Input(raw string) string {
	code := NormalizeCode(raw)
	d.mu.Lock()
	d.code = code
	d.mu.Unlock()
	return code
}

// Code is the current normalized input.
func (d *AttendanceDialog) Code() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code
}

// CanSubmit reports whether the submit control should be enabled.
func (d *AttendanceDialog) CanSubmit() bool {
	return !d.busy.Load() && ValidateCode(d.Code()) == nil
}

// Detail is the message of the last failed submission, shown inline.
func (d *AttendanceDialog) Detail() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detail
}

// Session is the session refetched after the last accepted code.
func (d *AttendanceDialog) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Submit sends the current code. On success the session is refetched and the result
// carries the XP the server awarded. On failure the dialog stays usable and Detail holds
// the reason.
func (d *AttendanceDialog) Submit(ctx context.Context) (*AttendanceResult, error) {
	code := d.Code()
	if err := ValidateCode(code); err != nil {
		d.setDetail(Notice(err))
		return nil, err
	}
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer d.busy.Store(false)

	res, err := d.c.Sessions.MarkAttendance(ctx, d.sessionID, code)
	if err != nil {
		d.setDetail(Notice(err))
		return nil, err
	}

	s, err := d.c.Sessions.GetByID(ctx, d.sessionID)
	if err != nil {
		// Attendance is recorded; only the refresh failed.
		d.c.logger.Warn("refetch after attendance failed", "session_id", d.sessionID, "error", err)
	}

	d.mu.Lock()
	d.detail = ""
	if s != nil {
		d.session = s
	}
	d.mu.Unlock()
	return res, nil
}

func (d *AttendanceDialog) setDetail(msg string) {
	d.mu.Lock()
	d.detail = msg
	d.mu.Unlock()
}
