package client

import (
	"studysphere/internal/auth"
	"studysphere/internal/groups"
	"studysphere/internal/studysession"
	"studysphere/internal/xp"
)

// The wire contract is shared with the server packages.
type (
	User             = auth.User
	Group            = groups.Group
	Resource         = studysession.ResourceView
	Message          = studysession.MessageView
	AttendanceResult = studysession.AttendanceResult
	AttachmentUpload = studysession.AttachmentUpload
	Dashboard        = studysession.Dashboard
	LeaderboardEntry = xp.Entry
)

// Session is a study session as this client's user may see it.
type Session struct {
	studysession.View
}

// normalize enforces the view invariants on data received from the network: the
// verification code is dropped for everyone but the host, and has_attended implies
// is_attending.
func (s *Session) normalize(viewerID string) {
	if viewerID == "" || viewerID != s.Host {
		s.VerificationCode = ""
	}
	if s.HasAttended {
		s.IsAttending = true
	}
}

// VisibleCode returns the verification code when viewerID is the host.
func (s *Session) VisibleCode(viewerID string) (string, bool) {
	if viewerID == "" || viewerID != s.Host || s.VerificationCode == "" {
		return "", false
	}
	return s.VerificationCode, true
}
