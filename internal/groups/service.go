// Package groups manages study groups, memberships and staff moderation.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"studysphere/internal/xp"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotApproved   = errors.New("group is not approved")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
	ErrForbidden     = errors.New("forbidden")
)

// Service defines group operations
type Service interface {
	Create(ctx context.Context, userID string, req CreateGroupRequest) (*Group, error)
	List(ctx context.Context, userID string) ([]Group, error)
	Get(ctx context.Context, userID string, id int64) (*Group, error)
	// Join returns the XP credited for joining.
	Join(ctx context.Context, userID string, id int64) (int, error)
	Leave(ctx context.Context, userID string, id int64) error
	IsMember(ctx context.Context, groupID int64, userID string) (bool, error)

	AdminOverview(ctx context.Context, userID string) (*AdminOverview, error)
	Approve(ctx context.Context, userID string, id int64) error
	Reject(ctx context.Context, userID string, id int64) error
}

type service struct {
	repo      Repository
	announcer *xp.Announcer
	logger    *slog.Logger
}

// NewService creates a new group service
func NewService(repo Repository, announcer *xp.Announcer, logger *slog.Logger) Service {
	return &service{repo: repo, announcer: announcer, logger: logger}
}

func (s *service) Create(ctx context.Context, userID string, req CreateGroupRequest) (*Group, error) {
	g := &Group{
		Name:        strings.TrimSpace(req.Name),
		Subject:     strings.TrimSpace(req.Subject),
		Description: strings.TrimSpace(req.Description),
		CreatorID:   userID,
		Status:      StatusPending,
	}

	created, award, err := s.repo.Create(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.announcer.Announce(ctx, award)

	s.logger.Info("group created", "group_id", created.ID, "creator_id", userID)
	return created, nil
}

func (s *service) List(ctx context.Context, userID string) ([]Group, error) {
	staff, err := s.repo.IsStaff(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID, staff)
}

// Get hides unapproved groups from everyone but staff and the creator.
func (s *service) Get(ctx context.Context, userID string, id int64) (*Group, error) {
	g, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if g.Status == StatusApproved || g.CreatorID == userID {
		return g, nil
	}

	staff, err := s.repo.IsStaff(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !staff {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

func (s *service) Join(ctx context.Context, userID string, id int64) (int, error) {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	if g.Status != StatusApproved {
		return 0, ErrNotApproved
	}
	if g.IsMember {
		return 0, ErrAlreadyMember
	}

	award, err := s.repo.Join(ctx, id, userID)
	if err != nil {
		return 0, err
	}
	if award == nil {
		return 0, nil
	}
	s.announcer.Announce(ctx, award)

	return award.Amount, nil
}

func (s *service) Leave(ctx context.Context, userID string, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Leave(ctx, id, userID)
}

func (s *service) IsMember(ctx context.Context, groupID int64, userID string) (bool, error) {
	return s.repo.IsMember(ctx, groupID, userID)
}

func (s *service) requireStaff(ctx context.Context, userID string) error {
	staff, err := s.repo.IsStaff(ctx, userID)
	if err != nil {
		return err
	}
	if !staff {
		return ErrForbidden
	}
	return nil
}

func (s *service) AdminOverview(ctx context.Context, userID string) (*AdminOverview, error) {
	if err := s.requireStaff(ctx, userID); err != nil {
		return nil, err
	}

	all, err := s.repo.List(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	out := &AdminOverview{Pending: []Group{}, Approved: []Group{}, Rejected: []Group{}}
	for _, g := range all {
		switch g.Status {
		case StatusPending:
			out.Pending = append(out.Pending, g)
		case StatusApproved:
			out.Approved = append(out.Approved, g)
		case StatusRejected:
			out.Rejected = append(out.Rejected, g)
		}
	}

	total, active, err := s.repo.SessionStats(ctx)
	if err != nil {
		return nil, err
	}
	out.Stats = AdminStats{
		TotalGroups:    len(all),
		ApprovedGroups: len(out.Approved),
		RejectedGroups: len(out.Rejected),
		TotalSessions:  total,
		ActiveSessions: active,
	}
	return out, nil
}

func (s *service) Approve(ctx context.Context, userID string, id int64) error {
	return s.moderate(ctx, userID, id, StatusApproved)
}

func (s *service) Reject(ctx context.Context, userID string, id int64) error {
	return s.moderate(ctx, userID, id, StatusRejected)
}

func (s *service) moderate(ctx context.Context, userID string, id int64, status Status) error {
	if err := s.requireStaff(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.logger.Info("group moderated", "group_id", id, "status", status, "staff_id", userID)
	return nil
}
