package groups

import "time"

// Status is the moderation state of a group
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Member is a group member as shown in group listings
type Member struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Image     string `json:"image"`
}

// Group is a study group together with its viewer-relative fields
type Group struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Subject      string    `json:"subject"`
	Description  string    `json:"description"`
	CreatorID    string    `json:"creator"`
	CreatorName  string    `json:"creator_name"`
	CreatorImage string    `json:"creator_image"`
	MembersCount int       `json:"members_count"`
	Members      []Member  `json:"members"`
	MemberImages []string  `json:"member_images"`
	IsMember     bool      `json:"is_member"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateGroupRequest is the request body for POST /api/groups
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Subject     string `json:"subject" binding:"max=100"`
	Description string `json:"description" binding:"max=2000"`
}

// AdminStats summarizes moderation state for staff
type AdminStats struct {
	TotalGroups    int `json:"total_groups"`
	ApprovedGroups int `json:"approved_groups"`
	RejectedGroups int `json:"rejected_groups"`
	TotalSessions  int `json:"total_sessions"`
	ActiveSessions int `json:"active_sessions"`
}

// AdminOverview is the staff moderation queue
type AdminOverview struct {
	Pending  []Group    `json:"pending"`
	Approved []Group    `json:"approved"`
	Rejected []Group    `json:"rejected"`
	Stats    AdminStats `json:"stats"`
}
