package merge

import (
	"github.com/corates/corates/internal/model"
	"github.com/corates/corates/internal/repository"
)

// Summary describes what a merge plan does, for audit logging and the
// completion response.
type Summary struct {
	AccountsMoved        []string // providers whose account moved to the initiator
	AccountsDiscarded    []string // providers dropped as duplicates
	ProjectsReassigned   int
	MembershipsMoved     int
	MembershipsDiscarded int
	SubscriptionAdopted  bool // target's subscription survived
	MediaReassigned      int
	MergedProviders      []string // initiator's provider list after the merge
}

// BuildPlan computes the ordered mutation batch that consolidates the
// target's resources into the initiator and removes the target identity.
// It is a pure function over the two ownership snapshots.
//
// Ordering is load-bearing: every op before the user delete is a
// set-difference move or a duplicate discard and can be re-applied against
// a partially merged state; the user delete destroys the state those ops
// read from and therefore always comes last.
func BuildPlan(req *model.MergeRequest, initiator, target *model.OwnedResources) ([]repository.MergeOp, *Summary) {
	ops := make([]repository.MergeOp, 0, 8)
	summary := &Summary{MergedProviders: initiator.Providers()}

	// External accounts: move providers the initiator lacks, discard the
	// rest (one account per provider).
	providers := initiator.ProviderSet()
	for _, account := range target.Accounts {
		if providers[account.Provider] {
			ops = append(ops, repository.DeleteExternalAccountOp(account.ID))
			summary.AccountsDiscarded = append(summary.AccountsDiscarded, account.Provider)
			continue
		}
		providers[account.Provider] = true
		ops = append(ops, repository.ReassignExternalAccountOp(account.ID, req.InitiatorID))
		summary.AccountsMoved = append(summary.AccountsMoved, account.Provider)
		summary.MergedProviders = append(summary.MergedProviders, account.Provider)
	}

	// Project ownership transfers wholesale.
	if len(target.ProjectIDs) > 0 {
		ops = append(ops, repository.ReassignProjectOwnerOp(req.TargetID, req.InitiatorID))
		summary.ProjectsReassigned = len(target.ProjectIDs)
	}

	// Memberships: discard where the initiator already sits on the
	// project, move the rest (one membership per project).
	memberProjects := initiator.MembershipProjectSet()
	for _, membership := range target.Memberships {
		if memberProjects[membership.ProjectID] {
			ops = append(ops, repository.DeleteMembershipOp(membership.ID))
			summary.MembershipsDiscarded++
			continue
		}
		memberProjects[membership.ProjectID] = true
		ops = append(ops, repository.ReassignMembershipOp(membership.ID, req.InitiatorID))
		summary.MembershipsMoved++
	}

	// Subscription: the target's plan survives only if it outranks the
	// initiator's AND carries a live billing reference; otherwise it is
	// discarded and the initiator keeps theirs.
	if sub := target.Subscription; sub != nil {
		currentRank := 0
		if initiator.Subscription != nil {
			currentRank = initiator.Subscription.Rank()
		}
		if sub.Rank() > currentRank && sub.HasLiveBilling() {
			if initiator.Subscription != nil {
				ops = append(ops, repository.DeleteSubscriptionOp(initiator.Subscription.ID))
			}
			ops = append(ops, repository.ReassignSubscriptionOp(sub.ID, req.InitiatorID))
			summary.SubscriptionAdopted = true
		} else {
			ops = append(ops, repository.DeleteSubscriptionOp(sub.ID))
		}
	}

	// Media is reassigned, never orphaned: uploads stay attributable
	// after the target identity is gone.
	if len(target.MediaIDs) > 0 {
		ops = append(ops, repository.ReassignMediaOwnerOp(req.TargetID, req.InitiatorID))
		summary.MediaReassigned = len(target.MediaIDs)
	}

	// Terminal, non-repeatable step: remove the target identity (sessions
	// and pending requests cascade), then the consumed merge request.
	ops = append(ops, repository.DeleteUserOp(req.TargetID))
	ops = append(ops, repository.DeleteMergeRequestOp(req.ID))

	return ops, summary
}
