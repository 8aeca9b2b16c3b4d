package studysession

import (
	"time"

	"studysphere/internal/identity"
)

// Session is a stored study session row joined with host and group display fields
type Session struct {
	ID               int64
	Title            string
	CourseCode       string
	Description      string
	Date             string
	Time             string
	StartsAt         *time.Time
	Location         string
	HostID           string
	HostUsername     string
	HostImage        string
	GroupID          *int64
	GroupName        *string
	VerificationCode string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Attendee is one RSVP on a session
type Attendee struct {
	UserID    string
	Username  string
	FirstName string
	LastName  string
	Image     string
	Attended  bool
}

// Record is a session with everything needed to project it for one viewer
type Record struct {
	Session
	Attendees []Attendee
	// ViewerInGroup is whether the viewer belongs to the session's group.
	ViewerInGroup bool
}

// AttendeeView is the public attendee shape
type AttendeeView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// View is a session as returned to one viewer
type View struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	CourseCode       string         `json:"course_code"`
	Description      string         `json:"description"`
	Date             string         `json:"date"`
	Time             string         `json:"time"`
	StartsAt         *time.Time     `json:"starts_at,omitempty"`
	Location         string         `json:"location"`
	Host             string         `json:"host"`
	HostName         string         `json:"host_name"`
	HostImage        string         `json:"host_image"`
	Group            *int64         `json:"group"`
	GroupName        *string        `json:"group_name"`
	VerificationCode string         `json:"verification_code,omitempty"`
	AttendeesCount   int            `json:"attendees_count"`
	AttendeesList    []AttendeeView `json:"attendees_list"`
	IsAttending      bool           `json:"is_attending"`
	HasAttended      bool           `json:"has_attended"`
	IsGroupMember    bool           `json:"is_group_member"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Project builds the viewer-relative view. The verification code is only kept for
// the host and has_attended never holds without is_attending.
func Project(r *Record, viewerID string) View {
	v := View{
		ID:            r.ID,
		Title:         r.Title,
		CourseCode:    r.CourseCode,
		Description:   r.Description,
		Date:          r.Date,
		Time:          r.Time,
		StartsAt:      r.StartsAt,
		Location:      r.Location,
		Host:          r.HostID,
		HostName:      r.HostUsername,
		HostImage:     identity.Avatar(r.HostImage, r.HostUsername),
		Group:         r.GroupID,
		GroupName:     r.GroupName,
		AttendeesList: make([]AttendeeView, 0, len(r.Attendees)),
		IsGroupMember: r.GroupID == nil || r.ViewerInGroup,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}

	if viewerID != "" && viewerID == r.HostID {
		v.VerificationCode = r.VerificationCode
	}

	for _, a := range r.Attendees {
		v.AttendeesList = append(v.AttendeesList, AttendeeView{
			ID:    a.UserID,
			Name:  attendeeName(a),
			Image: identity.Avatar(a.Image, a.Username),
		})
		if viewerID != "" && a.UserID == viewerID {
			v.IsAttending = true
			v.HasAttended = a.Attended
		}
	}
	v.AttendeesCount = len(v.AttendeesList)

	return v
}

func attendeeName(a Attendee) string {
	if a.FirstName == "" {
		return a.Username
	}
	return identity.DisplayName(a.FirstName, a.LastName, a.Username)
}

// CreateSessionRequest is the request body for POST /api/sessions
type CreateSessionRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	CourseCode  string     `json:"course_code" binding:"required,max=50"`
	Description string     `json:"description" binding:"required,max=2000"`
	Date        string     `json:"date" binding:"required,max=100"`
	Time        string     `json:"time" binding:"required,max=100"`
	StartsAt    *time.Time `json:"starts_at"`
	Location    string     `json:"location" binding:"required,max=200"`
	Group       *int64     `json:"group"`
}

// MarkAttendanceRequest is the request body for POST /api/sessions/:id/mark-attendance
type MarkAttendanceRequest struct {
	VerificationCode string `json:"verification_code"`
}

// Resource is a stored session resource joined with its author
type Resource struct {
	ID        int64
	SessionID int64
	Title     string
	Link      string
	AddedByID string
	Username  string
	FirstName string
	LastName  string
	Image     string
	CreatedAt time.Time
}

// ResourceView is a resource as returned to one viewer
type ResourceView struct {
	ID           int64     `json:"id"`
	Session      int64     `json:"session"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	AddedBy      string    `json:"added_by"`
	AddedByName  string    `json:"added_by_name"`
	AddedByImage string    `json:"added_by_image"`
	IsOwner      bool      `json:"is_owner"`
	CanDelete    bool      `json:"can_delete"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectResource builds the viewer-relative resource view. hostID is the session host.
func ProjectResource(r *Resource, viewerID, hostID string) ResourceView {
	owner := viewerID != "" && viewerID == r.AddedByID
	return ResourceView{
		ID:           r.ID,
		Session:      r.SessionID,
		Title:        r.Title,
		Link:         r.Link,
		AddedBy:      r.AddedByID,
		AddedByName:  identity.DisplayName(r.FirstName, r.LastName, r.Username),
		AddedByImage: identity.Avatar(r.Image, r.Username),
		IsOwner:      owner,
		CanDelete:    owner || (viewerID != "" && viewerID == hostID),
		CreatedAt:    r.CreatedAt,
	}
}

// AddResourceRequest is the request body for POST /api/sessions/:id/resources
type AddResourceRequest struct {
	Title string `json:"title" binding:"required,max=200"`
	Link  string `json:"link" binding:"required,url,max=2000"`
}

// UploadURLRequest is the request body for POST /api/sessions/:id/resources/upload-url
type UploadURLRequest struct {
	FileName    string `json:"file_name" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required,max=100"`
}

// Message is a stored chat message joined with its sender
type Message struct {
	ID        int64
	SessionID int64
	SenderID  string
	Username  string
	FirstName string
	LastName  string
	Image     string
	Text      string
	CreatedAt time.Time
}

// MessageView is a message as returned to one viewer
type MessageView struct {
	ID            int64     `json:"id"`
	Session       int64     `json:"session"`
	Sender        string    `json:"sender"`
	SenderName    string    `json:"sender_name"`
	SenderImage   string    `json:"sender_image"`
	IsCurrentUser bool      `json:"is_current_user"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProjectMessage builds the viewer-relative message view.
func ProjectMessage(m *Message, viewerID string) MessageView {
	return MessageView{
		ID:            m.ID,
		Session:       m.SessionID,
		Sender:        m.SenderID,
		SenderName:    identity.DisplayName(m.FirstName, m.LastName, m.Username),
		SenderImage:   identity.Avatar(m.Image, m.Username),
		IsCurrentUser: viewerID != "" && viewerID == m.SenderID,
		Text:          m.Text,
		CreatedAt:     m.CreatedAt,
	}
}

// SendMessageRequest is the request body for POST /api/sessions/:id/messages
type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=4000"`
}

// DashboardStats summarizes a user's activity
type DashboardStats struct {
	SessionsAttended int `json:"sessions_attended"`
	GroupsJoined     int `json:"groups_joined"`
	SessionsHosted   int `json:"sessions_hosted"`
	XP               int `json:"xp"`
	Level            int `json:"level"`
}

// Dashboard is the response of GET /api/dashboard
type Dashboard struct {
	UpcomingSessions []View         `json:"upcoming_sessions"`
	Stats            DashboardStats `json:"stats"`
}
