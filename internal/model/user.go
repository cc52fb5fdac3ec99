// Package model defines domain entities for the application.
package model

import "time"

// User represents a platform identity that can own resources.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnedResources is a point-in-time snapshot of everything a user owns.
// The merge executor consumes two of these (initiator and target) to
// compute its consolidation plan without touching the store.
type OwnedResources struct {
	Accounts     []ExternalAccount
	ProjectIDs   []string // projects where created_by = user
	Memberships  []Membership
	Subscription *Subscription // nil if the user has none
	MediaIDs     []string
}

// ProviderSet returns the set of provider IDs linked to these resources.
func (r *OwnedResources) ProviderSet() map[string]bool {
	set := make(map[string]bool, len(r.Accounts))
	for _, a := range r.Accounts {
		set[a.Provider] = true
	}
	return set
}

// Providers returns the linked provider IDs in stable (insertion) order.
func (r *OwnedResources) Providers() []string {
	seen := make(map[string]bool, len(r.Accounts))
	providers := make([]string, 0, len(r.Accounts))
	for _, a := range r.Accounts {
		if !seen[a.Provider] {
			seen[a.Provider] = true
			providers = append(providers, a.Provider)
		}
	}
	return providers
}

// MembershipProjectSet returns the set of project IDs the user holds a
// membership on.
func (r *OwnedResources) MembershipProjectSet() map[string]bool {
	set := make(map[string]bool, len(r.Memberships))
	for _, m := range r.Memberships {
		set[m.ProjectID] = true
	}
	return set
}
