package model

import "time"

// Subscription tier constants.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierTeam       = "team"
	TierEnterprise = "enterprise"
)

// tierRanks is the total order over tiers used to resolve which
// subscription survives a merge. Unknown tiers rank 0, below free.
var tierRanks = map[string]int{
	TierFree:       1,
	TierPro:        2,
	TierTeam:       3,
	TierEnterprise: 4,
}

// TierRank returns the rank of a tier. Higher is better; unknown is 0.
func TierRank(tier string) int {
	return tierRanks[tier]
}

// Subscription represents a user's billing plan. At most one exists per user.
type Subscription struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Tier             string    `json:"tier"`
	BillingReference string    `json:"billing_reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Rank returns the tier rank of this subscription.
func (s *Subscription) Rank() int {
	return TierRank(s.Tier)
}

// HasLiveBilling reports whether the subscription carries an active
// billing reference at the payment provider.
func (s *Subscription) HasLiveBilling() bool {
	return s.BillingReference != ""
}
