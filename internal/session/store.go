package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

// Session represents an authenticated user session.
// It stores identity pointers only, not provider tokens.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`  // references users.id
	Provider  string    `json:"provider"` // strategy that authenticated the user
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // absolute expiry time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
