// Package session provides storage backends for opaque session tokens.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a token is unknown, expired or revoked.
var ErrNotFound = errors.New("session not found")

// Record is the data stored for each session token.
type Record struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store persists session records keyed by token hash.
type Store interface {
	Save(ctx context.Context, tokenHash string, rec Record) error
	Lookup(ctx context.Context, tokenHash string) (Record, error)
	Revoke(ctx context.Context, tokenHash string) error
	Close() error
}
