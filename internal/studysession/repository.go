package studysession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studysphere/internal/database"
	"studysphere/internal/xp"
)

// Repository persists sessions, RSVPs, resources and messages
type Repository interface {
	// Create stores the session and credits the host in one transaction.
	Create(ctx context.Context, s *Session) (*Record, *xp.Award, error)
	Get(ctx context.Context, id int64, viewerID string) (*Record, error)
	List(ctx context.Context, viewerID string) ([]Record, error)
	ListForGroup(ctx context.Context, groupID int64, viewerID string) ([]Record, error)
	// ListAttending returns sessions the user RSVP'd to that have not started before now.
	ListAttending(ctx context.Context, userID string, now time.Time, limit int) ([]Record, error)

	// RSVPState reports whether the user RSVP'd and whether attendance was confirmed.
	RSVPState(ctx context.Context, sessionID int64, userID string) (rsvpd, attended bool, err error)
	AddRSVP(ctx context.Context, sessionID int64, userID string) error
	// RemoveRSVP deletes an unconfirmed RSVP.
	RemoveRSVP(ctx context.Context, sessionID int64, userID string) error
	// MarkAttended flips an RSVP to attended and credits XP in one transaction. The flip
	// only happens once per RSVP; later calls return ErrAlreadyAttended.
	MarkAttended(ctx context.Context, sessionID int64, userID string) (*xp.Award, error)

	ListResources(ctx context.Context, sessionID int64) ([]Resource, error)
	GetResource(ctx context.Context, sessionID, resourceID int64) (*Resource, error)
	AddResource(ctx context.Context, r *Resource) (*Resource, error)
	DeleteResource(ctx context.Context, resourceID int64) error

	ListMessages(ctx context.Context, sessionID int64) ([]Message, error)
	AddMessage(ctx context.Context, m *Message) (*Message, error)

	Stats(ctx context.Context, userID string) (DashboardStats, error)
}

type repository struct {
	db database.Service
}

// NewRepository creates a Postgres-backed session repository
func NewRepository(db database.Service) Repository {
	return &repository{db: db}
}

const sessionSelect = `
	SELECT s.id, s.title, s.course_code, s.description, s.date, s.time, s.starts_at, s.location,
	       s.host_id, h.username, h.image, s.group_id, g.name, s.verification_code, s.created_at, s.updated_at,
	       s.group_id IS NOT NULL AND EXISTS (
	           SELECT 1 FROM group_memberships m WHERE m.group_id = s.group_id AND m.user_id::text = $1)
	FROM study_sessions s
	JOIN users h ON h.id = s.host_id
	LEFT JOIN study_groups g ON g.id = s.group_id`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var startsAt sql.NullTime
	var groupID sql.NullInt64
	var groupName sql.NullString

	err := row.Scan(&r.ID, &r.Title, &r.CourseCode, &r.Description, &r.Date, &r.Time, &startsAt, &r.Location,
		&r.HostID, &r.HostUsername, &r.HostImage, &groupID, &groupName, &r.VerificationCode,
		&r.CreatedAt, &r.UpdatedAt, &r.ViewerInGroup)
	if err != nil {
		return nil, err
	}

	if startsAt.Valid {
		t := startsAt.Time
		r.StartsAt = &t
	}
	if groupID.Valid {
		id := groupID.Int64
		r.GroupID = &id
	}
	if groupName.Valid {
		name := groupName.String
		r.GroupName = &name
	}
	r.Attendees = []Attendee{}
	return &r, nil
}

func (r *repository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachAttendees(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) attachAttendees(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]int64, len(records))
	index := make(map[int64]int, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		index[rec.ID] = i
	}

	rows, err := r.db.Query(ctx, `
		SELECT r.session_id, u.id, u.username, u.first_name, u.last_name, u.image, r.attended
		FROM session_rsvps r
		JOIN users u ON u.id = r.user_id
		WHERE r.session_id = ANY($1)
		ORDER BY r.created_at ASC`, ids)
	if err != nil {
		return fmt.Errorf("query attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID int64
		var a Attendee
		if err := rows.Scan(&sessionID, &a.UserID, &a.Username, &a.FirstName, &a.LastName, &a.Image, &a.Attended); err != nil {
			return err
		}
		rec := &records[index[sessionID]]
		rec.Attendees = append(rec.Attendees, a)
	}
	return rows.Err()
}

func (r *repository) Create(ctx context.Context, s *Session) (*Record, *xp.Award, error) {
	var award *xp.Award
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO study_sessions
			    (title, course_code, description, date, time, starts_at, location, host_id, group_id, verification_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			s.Title, s.CourseCode, s.Description, s.Date, s.Time, s.StartsAt, s.Location, s.HostID, s.GroupID,
			s.VerificationCode,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		award, err = xp.CreditTx(ctx, tx, s.HostID, xp.ReasonCreateSession, fmt.Sprintf("session:%d", s.ID))
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	rec, err := r.Get(ctx, s.ID, s.HostID)
	if err != nil {
		return nil, nil, err
	}
	return rec, award, nil
}

func (r *repository) Get(ctx context.Context, id int64, viewerID string) (*Record, error) {
	records, err := r.queryRecords(ctx, sessionSelect+` WHERE s.id = $2`, viewerID, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrSessionNotFound
	}
	return &records[0], nil
}

func (r *repository) List(ctx context.Context, viewerID string) ([]Record, error) {
	return r.queryRecords(ctx, sessionSelect+` ORDER BY s.created_at DESC, s.id DESC`, viewerID)
}

func (r *repository) ListForGroup(ctx context.Context, groupID int64, viewerID string) ([]Record, error) {
	return r.queryRecords(ctx, sessionSelect+`
		WHERE s.group_id = $2
		ORDER BY s.created_at DESC, s.id DESC`, viewerID, groupID)
}

func (r *repository) ListAttending(ctx context.Context, userID string, now time.Time, limit int) ([]Record, error) {
	return r.queryRecords(ctx, sessionSelect+`
		WHERE EXISTS (SELECT 1 FROM session_rsvps r WHERE r.session_id = s.id AND r.user_id::text = $1)
		  AND (s.starts_at IS NULL OR s.starts_at >= $2)
		ORDER BY s.starts_at ASC NULLS LAST, s.created_at DESC
		LIMIT $3`, userID, now, limit)
}

func (r *repository) RSVPState(ctx context.Context, sessionID int64, userID string) (bool, bool, error) {
	var attended bool
	err := r.db.QueryRow(ctx,
		`SELECT attended FROM session_rsvps WHERE session_id = $1 AND user_id = $2`, sessionID, userID).Scan(&attended)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("query rsvp: %w", err)
	}
	return true, attended, nil
}

func (r *repository) AddRSVP(ctx context.Context, sessionID int64, userID string) error {
	res, err := r.db.Exec(ctx, `
		INSERT INTO session_rsvps (user_id, session_id) VALUES ($1, $2)
		ON CONFLICT (user_id, session_id) DO NOTHING`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("insert rsvp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyRSVPd
	}
	return nil
}

func (r *repository) RemoveRSVP(ctx context.Context, sessionID int64, userID string) error {
	res, err := r.db.Exec(ctx, `
		DELETE FROM session_rsvps WHERE session_id = $1 AND user_id = $2 AND attended = FALSE`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete rsvp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotRSVPd
	}
	return nil
}

func (r *repository) MarkAttended(ctx context.Context, sessionID int64, userID string) (*xp.Award, error) {
	var award *xp.Award
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE session_rsvps SET attended = TRUE, attended_at = NOW()
			WHERE session_id = $1 AND user_id = $2 AND attended = FALSE`, sessionID, userID)
		if err != nil {
			return fmt.Errorf("mark attended: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrAlreadyAttended
		}

		award, err = xp.CreditTx(ctx, tx, userID, xp.ReasonAttendSession, fmt.Sprintf("session:%d", sessionID))
		return err
	})
	return award, err
}

const resourceSelect = `
	SELECT r.id, r.session_id, r.title, r.link, r.added_by, u.username, u.first_name, u.last_name, u.image, r.created_at
	FROM session_resources r
	JOIN users u ON u.id = r.added_by`

func scanResource(row interface{ Scan(...any) error }) (*Resource, error) {
	var res Resource
	err := row.Scan(&res.ID, &res.SessionID, &res.Title, &res.Link, &res.AddedByID, &res.Username,
		&res.FirstName, &res.LastName, &res.Image, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repository) ListResources(ctx context.Context, sessionID int64) ([]Resource, error) {
	rows, err := r.db.Query(ctx, resourceSelect+` WHERE r.session_id = $1 ORDER BY r.created_at ASC, r.id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	out := []Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *repository) GetResource(ctx context.Context, sessionID, resourceID int64) (*Resource, error) {
	res, err := scanResource(r.db.QueryRow(ctx, resourceSelect+` WHERE r.session_id = $1 AND r.id = $2`, sessionID, resourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	return res, err
}

func (r *repository) AddResource(ctx context.Context, res *Resource) (*Resource, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO session_resources (session_id, title, link, added_by) VALUES ($1, $2, $3, $4)
		RETURNING id`, res.SessionID, res.Title, res.Link, res.AddedByID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert resource: %w", err)
	}
	return r.GetResource(ctx, res.SessionID, id)
}

func (r *repository) DeleteResource(ctx context.Context, resourceID int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM session_resources WHERE id = $1`, resourceID)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResourceNotFound
	}
	return nil
}

const messageSelect = `
	SELECT m.id, m.session_id, m.sender_id, u.username, u.first_name, u.last_name, u.image, m.text, m.created_at
	FROM session_messages m
	JOIN users u ON u.id = m.sender_id`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SessionID, &m.SenderID, &m.Username, &m.FirstName, &m.LastName, &m.Image, &m.Text, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) ListMessages(ctx context.Context, sessionID int64) ([]Message, error) {
	rows, err := r.db.Query(ctx, messageSelect+` WHERE m.session_id = $1 ORDER BY m.created_at ASC, m.id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *repository) AddMessage(ctx context.Context, m *Message) (*Message, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO session_messages (session_id, sender_id, text) VALUES ($1, $2, $3) RETURNING id`,
		m.SessionID, m.SenderID, m.Text).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return scanMessage(r.db.QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
}

func (r *repository) Stats(ctx context.Context, userID string) (DashboardStats, error) {
	var st DashboardStats
	err := r.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM session_rsvps WHERE user_id = u.id),
		       (SELECT COUNT(*) FROM group_memberships WHERE user_id = u.id),
		       (SELECT COUNT(*) FROM study_sessions WHERE host_id = u.id),
		       u.xp, u.level
		FROM users u
		WHERE u.id = $1`, userID).Scan(&st.SessionsAttended, &st.GroupsJoined, &st.SessionsHosted, &st.XP, &st.Level)
	if err != nil {
		return st, fmt.Errorf("query dashboard stats: %w", err)
	}
	return st, nil
}
