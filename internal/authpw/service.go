// Package authpw provides email/password authentication.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"teambeat/api/internal/auth"
	"teambeat/api/internal/store"
	"teambeat/api/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// UserStore is the storage surface the auth service needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
}

// Service handles registration, login and password resets. Reset
// tokens are stateless: signed with the user's current password hash,
// so changing the password invalidates anything outstanding.
type Service struct {
	store    UserStore
	resetTTL time.Duration
}

func NewService(userStore UserStore, resetTTL time.Duration) *Service {
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &Service{store: userStore, resetTTL: resetTTL}
}

// RegisterRequest contains sign-up parameters.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.DisplayName) == "" {
		return store.User{}, errors.New("email, password, and display name are required")
	}
	if len(req.Password) < 8 {
		return store.User{}, errors.New("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset issues a reset token for the account. An
// unknown email returns an empty token and no error so callers cannot
// probe which addresses exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (token string, user store.User, err error) {
	user, err = s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", store.User{}, nil
	}

	token = auth.NewResetToken(user.ID, user.PasswordHash, time.Now().Add(s.resetTTL))
	return token, user, nil
}

// ResetPassword validates the reset token and installs the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return errors.New("token and new password are required")
	}
	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	userID, err := auth.ResetTokenUserID(token)
	if err != nil {
		return auth.ErrInvalidToken
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return auth.ErrInvalidToken
	}
	if _, err := auth.ParseResetToken(token, user.PasswordHash, time.Now()); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
