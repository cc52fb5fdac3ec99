package model

import "time"

// ExternalAccount links a user to an identity at an external OAuth provider.
// A user holds at most one account per provider.
type ExternalAccount struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"provider_account_id"`
	CreatedAt         time.Time `json:"created_at"`
}
