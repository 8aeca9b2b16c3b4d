// Package auth implements account registration and password login for StudySphere.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when login or password do not match
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when user is not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameExists is returned when username is already taken
	ErrUsernameExists = errors.New("username already taken")
	// ErrEmailExists is returned when email is already registered
	ErrEmailExists = errors.New("email already registered")
)

// Service defines the authentication service interface
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, login, password string) (*User, error)
	GetUserByID(ctx context.Context, userID string) (*User, error)
}

type service struct {
	repo   Repository
	cost   int
	logger *slog.Logger
}

// NewService creates a new authentication service
func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{
		repo:   repo,
		cost:   bcrypt.DefaultCost,
		logger: logger,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	u := &User{
		ID:        uuid.New().String(),
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.Create(ctx, u, string(hash))
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", created.ID, "username", created.Username)
	return created, nil
}

func (s *service) Login(ctx context.Context, login, password string) (*User, error) {
	u, hash, err := s.repo.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}
