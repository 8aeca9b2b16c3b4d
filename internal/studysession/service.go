// Package studysession implements study sessions: RSVPs, code-verified attendance with
// XP awards, shared resources and the session chat.
package studysession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"studysphere/internal/schedule"
	"studysphere/internal/storage"
	"studysphere/internal/xp"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotGroupMember     = errors.New("not a member of the session's group")
	ErrHostNotGroupMember = errors.New("host is not a member of the group")
	ErrEventPassed        = errors.New("session has already started")
	ErrAlreadyRSVPd       = errors.New("already rsvp'd")
	ErrNotRSVPd           = errors.New("not rsvp'd")
	ErrAlreadyAttended    = errors.New("attendance already marked")
	ErrCodeRequired       = errors.New("verification code is required")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrNotAttending       = errors.New("not attending the session")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrCannotDelete       = errors.New("only the host or owner can delete")
	ErrEmptyMessage       = errors.New("message text is empty")
	ErrUploadsDisabled    = errors.New("attachments are not configured")
)

// MembershipChecker answers group membership questions
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID int64, userID string) (bool, error)
}

// FileStore issues attachment uploads and downloads
type FileStore interface {
	NewUpload(ctx context.Context, prefix, filename, contentType string) (*storage.Upload, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// AttendanceResult is returned by MarkAttendance
type AttendanceResult struct {
	Detail   string `json:"detail"`
	XPEarned int    `json:"xp_earned"`
}

// AttachmentUpload is a presigned upload plus the link to store as a resource
type AttachmentUpload struct {
	storage.Upload
	Link string `json:"link"`
}

// Service defines session operations. viewerID is always the authenticated user.
type Service interface {
	Create(ctx context.Context, viewerID string, req CreateSessionRequest) (*View, error)
	Get(ctx context.Context, viewerID string, id int64) (*View, error)
	List(ctx context.Context, viewerID string) ([]View, error)
	ListForGroup(ctx context.Context, viewerID string, groupID int64) ([]View, error)

	RSVP(ctx context.Context, viewerID string, id int64) error
	CancelRSVP(ctx context.Context, viewerID string, id int64) error
	MarkAttendance(ctx context.Context, viewerID string, id int64, code string) (*AttendanceResult, error)

	Resources(ctx context.Context, viewerID string, id int64) ([]ResourceView, error)
	AddResource(ctx context.Context, viewerID string, id int64, req AddResourceRequest) (*ResourceView, error)
	DeleteResource(ctx context.Context, viewerID string, id, resourceID int64) error
	NewAttachmentUpload(ctx context.Context, viewerID string, id int64, req UploadURLRequest) (*AttachmentUpload, error)
	AttachmentURL(ctx context.Context, viewerID string, id int64, key string) (string, error)

	Messages(ctx context.Context, viewerID string, id int64) ([]MessageView, error)
	SendMessage(ctx context.Context, viewerID string, id int64, text string) (*MessageView, error)

	Dashboard(ctx context.Context, viewerID string) (*Dashboard, error)
}

// Options carries the optional collaborators of the service
type Options struct {
	Files FileStore
	// PublicBaseURL prefixes attachment links.
	PublicBaseURL string
	Now           func() time.Time
}

type service struct {
	repo      Repository
	groups    MembershipChecker
	announcer *xp.Announcer
	files     FileStore
	baseURL   string
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new session service
func NewService(repo Repository, groups MembershipChecker, announcer *xp.Announcer, opts Options, logger *slog.Logger) Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      repo,
		groups:    groups,
		announcer: announcer,
		files:     opts.Files,
		baseURL:   strings.TrimSuffix(opts.PublicBaseURL, "/"),
		now:       now,
		logger:    logger,
	}
}

func (s *service) Create(ctx context.Context, viewerID string, req CreateSessionRequest) (*View, error) {
	if req.Group != nil {
		member, err := s.groups.IsMember(ctx, *req.Group, viewerID)
		if err != nil {
			return nil, fmt.Errorf("check group membership: %w", err)
		}
		if !member {
			return nil, ErrHostNotGroupMember
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Title:            strings.TrimSpace(req.Title),
		CourseCode:       strings.TrimSpace(req.CourseCode),
		Description:      strings.TrimSpace(req.Description),
		Date:             strings.TrimSpace(req.Date),
		Time:             strings.TrimSpace(req.Time),
		StartsAt:         req.StartsAt,
		Location:         strings.TrimSpace(req.Location),
		HostID:           viewerID,
		GroupID:          req.Group,
		VerificationCode: code,
	}
	if sess.StartsAt == nil {
		if start, err := schedule.ParseStart(sess.Date, sess.Time, s.now()); err == nil {
			sess.StartsAt = &start
		}
	}

	rec, award, err := s.repo.Create(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.announcer.Announce(ctx, award)

	s.logger.Info("session created", "session_id", rec.ID, "host_id", viewerID)
	v := Project(rec, viewerID)
	return &v, nil
}

func (s *service) Get(ctx context.Context, viewerID string, id int64) (*View, error) {
	rec, err := s.repo.Get(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	v := Project(rec, viewerID)
	return &v, nil
}

func (s *service) project(records []Record, viewerID string) []View {
	views := make([]View, 0, len(records))
	for i := range records {
		views = append(views, Project(&records[i], viewerID))
	}
	return views
}

func (s *service) List(ctx context.Context, viewerID string) ([]View, error) {
	records, err := s.repo.List(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.project(records, viewerID), nil
}

func (s *service) ListForGroup(ctx context.Context, viewerID string, groupID int64) ([]View, error) {
	records, err := s.repo.ListForGroup(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	return s.project(records, viewerID), nil
}

// started prefers the structured start time and falls back to the free-text heuristic.
func (s *service) started(rec *Record) bool {
	now := s.now()
	if rec.StartsAt != nil {
		return now.After(*rec.StartsAt)
	}
	return schedule.EventPassed(rec.Date, rec.Time, now)
}

func (s *service) RSVP(ctx context.Context, viewerID string, id int64) error {
	rec, err := s.repo.Get(ctx, id, viewerID)
	if err != nil {
		return err
	}

	if rec.GroupID != nil && !rec.ViewerInGroup {
		return ErrNotGroupMember
	}
	if s.started(rec) {
		return ErrEventPassed
	}

	if err := s.repo.AddRSVP(ctx, id, viewerID); err != nil {
		return err
	}
	s.logger.Info("rsvp created", "session_id", id, "user_id", viewerID)
	return nil
}

func (s *service) CancelRSVP(ctx context.Context, viewerID string, id int64) error {
	if _, err := s.repo.Get(ctx, id, viewerID); err != nil {
		return err
	}

	rsvpd, attended, err := s.repo.RSVPState(ctx, id, viewerID)
	if err != nil {
		return err
	}
	switch {
	case !rsvpd:
		return ErrNotRSVPd
	case attended:
		return ErrAlreadyAttended
	}
	return s.repo.RemoveRSVP(ctx, id, viewerID)
}

func (s *service) MarkAttendance(ctx context.Context, viewerID string, id int64, code string) (*AttendanceResult, error) {
	rec, err := s.repo.Get(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}

	rsvpd, attended, err := s.repo.RSVPState(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if !rsvpd {
		return nil, ErrNotRSVPd
	}
	if attended {
		return nil, ErrAlreadyAttended
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if !validCode(code) || code != rec.VerificationCode {
		s.logger.Info("attendance code rejected", "session_id", id, "user_id", viewerID)
		return nil, ErrInvalidCode
	}

	award, err := s.repo.MarkAttended(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	s.announcer.Announce(ctx, award)

	return &AttendanceResult{Detail: "Attendance marked successfully", XPEarned: award.Amount}, nil
}

// attending loads the session and requires the viewer to have RSVP'd.
func (s *service) attending(ctx context.Context, viewerID string, id int64) (*Record, error) {
	rec, err := s.repo.Get(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	for _, a := range rec.Attendees {
		if a.UserID == viewerID {
			return rec, nil
		}
	}
	return nil, ErrNotAttending
}

func (s *service) Resources(ctx context.Context, viewerID string, id int64) ([]ResourceView, error) {
	rec, err := s.attending(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}

	resources, err := s.repo.ListResources(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]ResourceView, 0, len(resources))
	for i := range resources {
		views = append(views, ProjectResource(&resources[i], viewerID, rec.HostID))
	}
	return views, nil
}

func (s *service) AddResource(ctx context.Context, viewerID string, id int64, req AddResourceRequest) (*ResourceView, error) {
	rec, err := s.attending(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}

	res, err := s.repo.AddResource(ctx, &Resource{
		SessionID: id,
		Title:     strings.TrimSpace(req.Title),
		Link:      strings.TrimSpace(req.Link),
		AddedByID: viewerID,
	})
	if err != nil {
		return nil, err
	}

	v := ProjectResource(res, viewerID, rec.HostID)
	return &v, nil
}

func (s *service) DeleteResource(ctx context.Context, viewerID string, id, resourceID int64) error {
	rec, err := s.repo.Get(ctx, id, viewerID)
	if err != nil {
		return err
	}

	res, err := s.repo.GetResource(ctx, id, resourceID)
	if err != nil {
		return err
	}
	if viewerID != rec.HostID && viewerID != res.AddedByID {
		return ErrCannotDelete
	}

	if err := s.repo.DeleteResource(ctx, resourceID); err != nil {
		return err
	}
	s.logger.Info("resource deleted", "session_id", id, "resource_id", resourceID, "user_id", viewerID)
	return nil
}

func attachmentPrefix(id int64) string {
	return fmt.Sprintf("sessions/%d", id)
}

func (s *service) NewAttachmentUpload(ctx context.Context, viewerID string, id int64, req UploadURLRequest) (*AttachmentUpload, error) {
	if s.files == nil {
		return nil, ErrUploadsDisabled
	}
	if _, err := s.attending(ctx, viewerID, id); err != nil {
		return nil, err
	}

	up, err := s.files.NewUpload(ctx, attachmentPrefix(id), req.FileName, req.ContentType)
	if err != nil {
		return nil, err
	}

	return &AttachmentUpload{
		Upload: *up,
		Link:   fmt.Sprintf("%s/api/sessions/%d/attachments/%s", s.baseURL, id, strings.TrimPrefix(up.FileKey, attachmentPrefix(id)+"/")),
	}, nil
}

func (s *service) AttachmentURL(ctx context.Context, viewerID string, id int64, key string) (string, error) {
	if s.files == nil {
		return "", ErrUploadsDisabled
	}
	if _, err := s.attending(ctx, viewerID, id); err != nil {
		return "", err
	}

	name := strings.TrimPrefix(key, "/")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return "", ErrResourceNotFound
	}
	return s.files.DownloadURL(ctx, attachmentPrefix(id)+"/"+name)
}

func (s *service) Messages(ctx context.Context, viewerID string, id int64) ([]MessageView, error) {
	if _, err := s.attending(ctx, viewerID, id); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, ProjectMessage(&messages[i], viewerID))
	}
	return views, nil
}

func (s *service) SendMessage(ctx context.Context, viewerID string, id int64, text string) (*MessageView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := s.attending(ctx, viewerID, id); err != nil {
		return nil, err
	}

	m, err := s.repo.AddMessage(ctx, &Message{SessionID: id, SenderID: viewerID, Text: text})
	if err != nil {
		return nil, err
	}
	v := ProjectMessage(m, viewerID)
	return &v, nil
}

// DashboardUpcoming is the number of sessions shown on the dashboard.
const DashboardUpcoming = 3

func (s *service) Dashboard(ctx context.Context, viewerID string) (*Dashboard, error) {
	records, err := s.repo.ListAttending(ctx, viewerID, s.now(), DashboardUpcoming)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{UpcomingSessions: s.project(records, viewerID), Stats: stats}, nil
}
