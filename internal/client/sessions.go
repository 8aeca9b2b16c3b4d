package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"studysphere/internal/studysession"
)

// SessionsAPI covers /api/sessions and the per-user views built on it.
type SessionsAPI struct {
	c *Client
}

func sessionPath(id int64, rest string) string {
	return fmt.Sprintf("/api/sessions/%d%s", id, rest)
}

// GetByID fetches one session as the current user sees it.
func (a *SessionsAPI) GetByID(ctx context.Context, id int64) (*Session, error) {
	var s Session
	if err := a.c.do(ctx, http.MethodGet, sessionPath(id, ""), nil, &s); err != nil {
		return nil, err
	}
	s.normalize(a.c.viewerID())
	return &s, nil
}

// List fetches every session.
func (a *SessionsAPI) List(ctx context.Context) ([]Session, error) {
	return a.list(ctx, "/api/sessions")
}

// ListForGroup fetches the sessions of one group.
func (a *SessionsAPI) ListForGroup(ctx context.Context, groupID int64) ([]Session, error) {
	return a.list(ctx, fmt.Sprintf("/api/groups/%d/sessions", groupID))
}

func (a *SessionsAPI) list(ctx context.Context, path string) ([]Session, error) {
	var out []Session
	if err := a.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	viewer := a.c.viewerID()
	for i := range out {
		out[i].normalize(viewer)
	}
	return out, nil
}

// Create validates the form and creates a session hosted by the current user.
func (a *SessionsAPI) Create(ctx context.Context, in SessionInput) (*Session, error) {
	in = in.trimmed()
	if err := check(in); err != nil {
		return nil, err
	}

	var s Session
	if err := a.c.do(ctx, http.MethodPost, "/api/sessions", in.request(), &s); err != nil {
		return nil, err
	}
	s.normalize(a.c.viewerID())
	return &s, nil
}

// RSVP registers the current user for a session.
func (a *SessionsAPI) RSVP(ctx context.Context, id int64) error {
	return a.c.do(ctx, http.MethodPost, sessionPath(id, "/rsvp"), nil, nil)
}

// CancelRSVP withdraws the current user's RSVP.
func (a *SessionsAPI) CancelRSVP(ctx context.Context, id int64) error {
	return a.c.do(ctx, http.MethodDelete, sessionPath(id, "/rsvp"), nil, nil)
}

// MarkAttendance submits a verification code.
func (a *SessionsAPI) MarkAttendance(ctx context.Context, id int64, code string) (*AttendanceResult, error) {
	var res AttendanceResult
	req := studysession.MarkAttendanceRequest{VerificationCode: code}
	if err := a.c.do(ctx, http.MethodPost, sessionPath(id, "/mark-attendance"), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetResources lists the resources of a session.
func (a *SessionsAPI) GetResources(ctx context.Context, id int64) ([]Resource, error) {
	var out []Resource
	if err := a.c.do(ctx, http.MethodGet, sessionPath(id, "/resources"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddResource validates the form and shares a link with the session. Nothing is sent
// when validation fails.
func (a *SessionsAPI) AddResource(ctx context.Context, id int64, in ResourceInput) (*Resource, error) {
	in = in.trimmed()
	if err := check(in); err != nil {
		return nil, err
	}

	var r Resource
	req := studysession.AddResourceRequest{Title: in.Title, Link: in.Link}
	if err := a.c.do(ctx, http.MethodPost, sessionPath(id, "/resources"), req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteResource removes a resource.
func (a *SessionsAPI) DeleteResource(ctx context.Context, id, resourceID int64) error {
	return a.c.do(ctx, http.MethodDelete, sessionPath(id, fmt.Sprintf("/resources/%d", resourceID)), nil, nil)
}

// UploadURL asks for a presigned upload for an attachment.
func (a *SessionsAPI) UploadURL(ctx context.Context, id int64, fileName, contentType string) (*AttachmentUpload, error) {
	var up AttachmentUpload
	req := studysession.UploadURLRequest{FileName: fileName, ContentType: contentType}
	if err := a.c.do(ctx, http.MethodPost, sessionPath(id, "/resources/upload-url"), req, &up); err != nil {
		return nil, err
	}
	return &up, nil
}

// Dashboard fetches the current user's upcoming sessions and stats.
func (a *SessionsAPI) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := a.c.do(ctx, http.MethodGet, "/api/dashboard", nil, &d); err != nil {
		return nil, err
	}
	viewer := a.c.viewerID()
	for i := range d.UpcomingSessions {
		s := Session{View: d.UpcomingSessions[i]}
		s.normalize(viewer)
		d.UpcomingSessions[i] = s.View
	}
	return &d, nil
}

// Leaderboard fetches the top users for a period ("week" or "all").
func (a *SessionsAPI) Leaderboard(ctx context.Context, period string) ([]LeaderboardEntry, error) {
	path := "/api/leaderboard"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	var out []LeaderboardEntry
	if err := a.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
