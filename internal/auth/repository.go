package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studysphere/internal/database"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists user accounts
type Repository interface {
	Create(ctx context.Context, u *User, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByLogin matches a username or an email and also returns the password hash.
	GetByLogin(ctx context.Context, login string) (*User, string, error)
}

type repository struct {
	db database.Service
}

// NewRepository creates a Postgres-backed user repository
func NewRepository(db database.Service) Repository {
	return &repository{db: db}
}

const userColumns = `id, username, email, first_name, last_name, image, xp, level, is_staff, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, extra ...any) (*User, error) {
	var u User
	dest := []any{&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Image,
		&u.XP, &u.Level, &u.IsStaff, &u.CreatedAt, &u.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) Create(ctx context.Context, u *User, passwordHash string) (*User, error) {
	query := `
		INSERT INTO users (id, username, email, first_name, last_name, image, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query, u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.Image, passwordHash, u.CreatedAt)
	created, err := scanUser(row)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_username_key"):
			return nil, ErrUsernameExists
		case isUniqueViolation(err, "users_email_key"):
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *repository) GetByLogin(ctx context.Context, login string) (*User, string, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = $1 OR lower(email) = lower($1)`, login)

	var hash string
	u, err := scanUser(row, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	return u, hash, nil
}

// isUniqueViolation reports whether err is a Postgres unique violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
