package model

import "time"

// MergeRequestTTL is how long a merge request stays actionable after
// creation. Past this the request is invisible and purged on next read.
const MergeRequestTTL = 15 * time.Minute

// MergeRequest is the persisted, time-bounded intent of the initiator to
// absorb the target identity. The token is the opaque client-facing
// handle; the code is the out-of-band secret mailed to the target's inbox
// and is never returned to the client.
type MergeRequest struct {
	ID             string     `json:"id"`
	InitiatorID    string     `json:"initiator_id"`
	InitiatorEmail string     `json:"initiator_email"`
	TargetID       string     `json:"target_id"`
	TargetEmail    string     `json:"target_email"`
	Token          string     `json:"token"`
	Code           string     `json:"-"` // Never serialize
	Verified       bool       `json:"verified"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// IsExpired reports whether the request has passed its expiry.
func (m *MergeRequest) IsExpired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}
