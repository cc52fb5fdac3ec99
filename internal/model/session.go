package model

import "time"

// Session represents an authenticated login session.
// The session token itself is never stored; only its Argon2id hash and a
// short prefix used for lookup.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TokenHash   string    `json:"-"` // Never serialize
	TokenPrefix string    `json:"token_prefix"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AuthContext holds authenticated request context.
// This is injected into the request context by the auth middleware.
type AuthContext struct {
	SessionID string
	UserID    string
	Email     string
}
