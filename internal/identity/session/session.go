// Package session persists sign-in sessions with a TTL.
package session

import (
	"context"
	"time"

	"cartsync/pkg/domain"
)

// Session is one sign-in: who, when, and until when.
type Session struct {
	ID         domain.SessionID  `json:"id"`
	IdentityID domain.IdentityID `json:"identity_id"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions. Implementations must treat expired sessions as
// absent on lookup.
type Store interface {
	Save(ctx context.Context, sess *Session) error
	FindByID(ctx context.Context, id domain.SessionID) (*Session, error)
	Delete(ctx context.Context, id domain.SessionID) error
}
