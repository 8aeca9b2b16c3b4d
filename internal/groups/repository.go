package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studysphere/internal/database"
	"studysphere/internal/identity"
	"studysphere/internal/xp"
)

// Repository persists groups and memberships
type Repository interface {
	// Create stores the group, adds the creator as a member and credits XP in one transaction.
	Create(ctx context.Context, g *Group) (*Group, *xp.Award, error)
	Get(ctx context.Context, id int64, viewerID string) (*Group, error)
	// List returns approved groups plus the viewer's own. all lifts the filter.
	List(ctx context.Context, viewerID string, all bool) ([]Group, error)
	IsMember(ctx context.Context, groupID int64, userID string) (bool, error)
	// Join adds a membership and credits XP in one transaction. The award is nil
	// when the user already earned XP for this group on an earlier join.
	Join(ctx context.Context, groupID int64, userID string) (*xp.Award, error)
	Leave(ctx context.Context, groupID int64, userID string) error
	SetStatus(ctx context.Context, id int64, status Status) error
	IsStaff(ctx context.Context, userID string) (bool, error)
	SessionStats(ctx context.Context) (total, active int, err error)
}

type repository struct {
	db database.Service
}

// NewRepository creates a Postgres-backed group repository
func NewRepository(db database.Service) Repository {
	return &repository{db: db}
}

const groupSelect = `
	SELECT g.id, g.name, g.subject, g.description, g.creator_id, u.username, u.image, g.status,
	       g.created_at, g.updated_at,
	       (SELECT COUNT(*) FROM group_memberships m WHERE m.group_id = g.id),
	       EXISTS (SELECT 1 FROM group_memberships m WHERE m.group_id = g.id AND m.user_id::text = $1)
	FROM study_groups g
	JOIN users u ON u.id = g.creator_id`

func scanGroup(row interface{ Scan(...any) error }) (*Group, error) {
	var g Group
	var creatorImage, status string
	err := row.Scan(&g.ID, &g.Name, &g.Subject, &g.Description, &g.CreatorID, &g.CreatorName, &creatorImage,
		&status, &g.CreatedAt, &g.UpdatedAt, &g.MembersCount, &g.IsMember)
	if err != nil {
		return nil, err
	}
	g.Status = Status(status)
	g.CreatorImage = identity.Avatar(creatorImage, g.CreatorName)
	g.Members = []Member{}
	g.MemberImages = []string{}
	return &g, nil
}

func (r *repository) Create(ctx context.Context, g *Group) (*Group, *xp.Award, error) {
	var award *xp.Award
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		err := tx.QueryRowContext(ctx, `
			INSERT INTO study_groups (name, subject, description, creator_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			RETURNING id`,
			g.Name, g.Subject, g.Description, g.CreatorID, string(StatusPending), now,
		).Scan(&g.ID)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_memberships (user_id, group_id) VALUES ($1, $2)`, g.CreatorID, g.ID); err != nil {
			return fmt.Errorf("insert creator membership: %w", err)
		}

		award, err = xp.CreditTx(ctx, tx, g.CreatorID, xp.ReasonCreateGroup, fmt.Sprintf("group:%d", g.ID))
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	created, err := r.Get(ctx, g.ID, g.CreatorID)
	if err != nil {
		return nil, nil, err
	}
	return created, award, nil
}

func (r *repository) Get(ctx context.Context, id int64, viewerID string) (*Group, error) {
	g, err := scanGroup(r.db.QueryRow(ctx, groupSelect+` WHERE g.id = $2`, viewerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}

	groups := []Group{*g}
	if err := r.attachMembers(ctx, groups); err != nil {
		return nil, err
	}
	return &groups[0], nil
}

func (r *repository) List(ctx context.Context, viewerID string, all bool) ([]Group, error) {
	rows, err := r.db.Query(ctx, groupSelect+`
		WHERE $2 OR g.status = 'approved' OR g.creator_id::text = $1
		ORDER BY g.created_at DESC, g.id DESC`, viewerID, all)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := []Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repository) attachMembers(ctx context.Context, groups []Group) error {
	if len(groups) == 0 {
		return nil
	}

	ids := make([]int64, len(groups))
	index := make(map[int64]int, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
		index[g.ID] = i
	}

	rows, err := r.db.Query(ctx, `
		SELECT m.group_id, u.id, u.username, u.first_name, u.last_name, u.image
		FROM group_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ANY($1)
		ORDER BY m.joined_at ASC`, ids)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID int64
		var m Member
		if err := rows.Scan(&groupID, &m.ID, &m.Username, &m.FirstName, &m.LastName, &m.Image); err != nil {
			return err
		}
		m.Image = identity.Avatar(m.Image, m.Username)

		g := &groups[index[groupID]]
		g.Members = append(g.Members, m)
		if len(g.MemberImages) < 3 {
			g.MemberImages = append(g.MemberImages, m.Image)
		}
	}
	return rows.Err()
}

func (r *repository) IsMember(ctx context.Context, groupID int64, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_memberships WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&exists)
	return exists, err
}

func (r *repository) Join(ctx context.Context, groupID int64, userID string) (*xp.Award, error) {
	var award *xp.Award
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO group_memberships (user_id, group_id) VALUES ($1, $2)
			ON CONFLICT (user_id, group_id) DO NOTHING`, userID, groupID)
		if err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrAlreadyMember
		}

		award, err = xp.CreditTx(ctx, tx, userID, xp.ReasonJoinGroup, fmt.Sprintf("group:%d", groupID))
		if errors.Is(err, xp.ErrAlreadyCredited) {
			award = nil
			return nil
		}
		return err
	})
	return award, err
}

func (r *repository) Leave(ctx context.Context, groupID int64, userID string) error {
	res, err := r.db.Exec(ctx, `DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotMember
	}
	return nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status) error {
	res, err := r.db.Exec(ctx, `UPDATE study_groups SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update group status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *repository) IsStaff(ctx context.Context, userID string) (bool, error) {
	var staff bool
	err := r.db.QueryRow(ctx, `SELECT is_staff FROM users WHERE id = $1`, userID).Scan(&staff)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return staff, err
}

func (r *repository) SessionStats(ctx context.Context) (total, active int, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM study_sessions),
		       (SELECT COUNT(DISTINCT session_id) FROM session_rsvps)`).Scan(&total, &active)
	return total, active, err
}
