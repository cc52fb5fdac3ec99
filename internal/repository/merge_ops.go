package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// MergeOp is a single mutation in a consolidation batch. Ops are built by
// the merge executor and applied in order by ApplyMergeOps. Every op is an
// independent statement; the set is designed so that the resource moves
// (everything before the identity delete) stay idempotent under retry.
type MergeOp struct {
	Desc string // short machine-readable description for audit logs
	SQL  string
	Args []any
}

// ReassignExternalAccountOp moves a provider account to a new owner.
func ReassignExternalAccountOp(accountID, newOwnerID string) MergeOp {
	return MergeOp{
		Desc: "reassign_external_account",
		SQL:  `UPDATE external_accounts SET user_id = $1 WHERE id = $2`,
		Args: []any{newOwnerID, accountID},
	}
}

// DeleteExternalAccountOp drops a duplicate provider account.
func DeleteExternalAccountOp(accountID string) MergeOp {
	return MergeOp{
		Desc: "delete_external_account",
		SQL:  `DELETE FROM external_accounts WHERE id = $1`,
		Args: []any{accountID},
	}
}

// ReassignProjectOwnerOp transfers created_by for every project owned by
// fromUserID in one statement.
func ReassignProjectOwnerOp(fromUserID, toUserID string) MergeOp {
	return MergeOp{
		Desc: "reassign_project_owner",
		SQL:  `UPDATE projects SET created_by = $1 WHERE created_by = $2`,
		Args: []any{toUserID, fromUserID},
	}
}

// ReassignMembershipOp moves a membership row to a new user.
func ReassignMembershipOp(membershipID, newUserID string) MergeOp {
	return MergeOp{
		Desc: "reassign_membership",
		SQL:  `UPDATE memberships SET user_id = $1 WHERE id = $2`,
		Args: []any{newUserID, membershipID},
	}
}

// DeleteMembershipOp drops a duplicate membership row.
func DeleteMembershipOp(membershipID string) MergeOp {
	return MergeOp{
		Desc: "delete_membership",
		SQL:  `DELETE FROM memberships WHERE id = $1`,
		Args: []any{membershipID},
	}
}

// ReassignSubscriptionOp moves a subscription to a new user.
func ReassignSubscriptionOp(subscriptionID, newUserID string) MergeOp {
	return MergeOp{
		Desc: "reassign_subscription",
		SQL:  `UPDATE subscriptions SET user_id = $1, updated_at = now() WHERE id = $2`,
		Args: []any{newUserID, subscriptionID},
	}
}

// DeleteSubscriptionOp discards a subscription.
func DeleteSubscriptionOp(subscriptionID string) MergeOp {
	return MergeOp{
		Desc: "delete_subscription",
		SQL:  `DELETE FROM subscriptions WHERE id = $1`,
		Args: []any{subscriptionID},
	}
}

// ReassignMediaOwnerOp transfers ownership of every media item owned by
// fromUserID in one statement.
func ReassignMediaOwnerOp(fromUserID, toUserID string) MergeOp {
	return MergeOp{
		Desc: "reassign_media_owner",
		SQL:  `UPDATE media SET owner_id = $1 WHERE owner_id = $2`,
		Args: []any{toUserID, fromUserID},
	}
}

// DeleteUserOp removes the user row. Sessions, external accounts and any
// pending merge requests cascade. This is the one non-repeatable step and
// must be ordered after every resource move.
func DeleteUserOp(userID string) MergeOp {
	return MergeOp{
		Desc: "delete_user",
		SQL:  `DELETE FROM users WHERE id = $1`,
		Args: []any{userID},
	}
}

// DeleteMergeRequestOp removes the consumed merge request.
func DeleteMergeRequestOp(requestID string) MergeOp {
	return MergeOp{
		Desc: "delete_merge_request",
		SQL:  `DELETE FROM merge_requests WHERE id = $1`,
		Args: []any{requestID},
	}
}

// ApplyMergeOps submits the ordered op list as a single pgx batch inside
// one transaction: the consolidation either applies as a whole or not at
// all. Should the store ever lose transactionality, the op ordering alone
// keeps a partially applied batch retryable.
func (r *Repository) ApplyMergeOps(ctx context.Context, ops []MergeOp) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, op := range ops {
		batch.Queue(op.SQL, op.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, op := range ops {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("merge op %s failed: %w", op.Desc, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close merge batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit merge batch: %w", err)
	}

	return nil
}
