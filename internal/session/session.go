// Package session implements per-service session storage: a shared
// SQLite-backed key-value store when available, with an automatic
// in-process fallback. Each service gets its own namespace so sessions
// never bleed between services.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is the per-service authentication state, keyed by an opaque id.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Expired reports whether the session's sliding expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store is the session storage contract. Implementations must be safe for
// concurrent use. Reads of missing or expired sessions return ErrNotFound.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Put(ctx context.Context, id string, sess Session) error
	Delete(ctx context.Context, id string) error
}
