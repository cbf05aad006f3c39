package game

import (
	"context"
	"time"
)

// SessionStore is the registry mapping a user ID to that user's
// Session. Implementations must make GetOrCreate, Get, Save and Remove
// appear atomic with respect to concurrent calls for the same user ID,
// and must not block calls for different user IDs on one another.
//
// The engine serializes all mutation per user on top of this, so a
// store only needs atomic individual operations, not transactions.
type SessionStore interface {
	// Ping tests the store connection.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error

	// GetOrCreate returns the user's session, creating one in
	// StageAwaitingStart if absent. Idempotent.
	GetOrCreate(ctx context.Context, userID string) (*Session, error)

	// Get returns the user's session, or nil if absent. A legitimately
	// absent session is not an error. The returned session is the
	// caller's own copy: mutations become visible only through Save.
	Get(ctx context.Context, userID string) (*Session, error)

	// Save persists the session under its user ID.
	Save(ctx context.Context, s *Session) error

	// Remove deletes the user's session. Removing an absent session is
	// a no-op.
	Remove(ctx context.Context, userID string) error

	// SweepIdle removes sessions whose last activity is older than the
	// given duration and reports how many were removed. Stores with
	// native expiry may implement this as a no-op.
	SweepIdle(ctx context.Context, olderThan time.Duration) (int, error)
}
