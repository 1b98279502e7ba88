// Package domain holds typed identifier primitives shared across modules.
// Wrapping raw strings and integers keeps call sites honest about which id
// they are passing.
package domain

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// IdentityID is the signed-in principal a cart is scoped to. It is opaque to
// this service; the identity provider decides its shape.
type IdentityID string

// String returns the raw identity id.
func (id IdentityID) String() string {
	return string(id)
}

// IsNil reports whether no identity is set.
func (id IdentityID) IsNil() bool {
	return id == ""
}

// ProductID identifies a catalog product. Zero is reserved for "absent".
type ProductID int64

// ParseProductID validates and returns a ProductID from its string form.
func ParseProductID(s string) (ProductID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid product id: %q", s)
	}
	return ProductID(n), nil
}

// String returns the decimal representation of the product id.
func (p ProductID) String() string {
	return strconv.FormatInt(int64(p), 10)
}

// IsNil reports whether the product id is absent.
func (p ProductID) IsNil() bool {
	return p == 0
}

// SessionID identifies one sign-in session.
type SessionID uuid.UUID

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID validates and returns a SessionID from its string form.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("invalid session id: %w", err)
	}
	return SessionID(u), nil
}

// String returns the canonical UUID form of the session id.
func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// MarshalText encodes the session id in canonical UUID form so it survives
// JSON boundaries as a string.
func (s SessionID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (s *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsNil reports whether the session id is the zero UUID.
func (s SessionID) IsNil() bool {
	return uuid.UUID(s) == uuid.Nil
}
