package session

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInactive = errors.New("session inactive")
)

// Session represents a user session
type Session struct {
	ID         string
	OrgID      string
	UserID     string
	UserName   string
	IPAddress  string
	UserAgent  string
	Active     bool
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Repository defines the interface for session persistence
type Repository interface {
	// Create creates a new session
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Touch updates session last seen time
	Touch(ctx context.Context, sessionID string, seenAt time.Time) error

	// Deactivate marks a single session inactive (logout)
	Deactivate(ctx context.Context, sessionID string) error

	// DeactivateExpired flips active to false for every session whose
	// expiry has passed, as one batch. Rows are never deleted and an
	// inactive session is never reactivated. Returns the number of
	// sessions flipped, which is zero when nothing newly expired.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
