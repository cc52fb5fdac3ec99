package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/corates/corates/internal/model"
)

// ListExternalAccountsByUser returns all provider accounts linked to a user,
// ordered by creation time.
func (r *Repository) ListExternalAccountsByUser(ctx context.Context, userID string) ([]model.ExternalAccount, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM external_accounts
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list external accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.ExternalAccount
	for rows.Next() {
		var a model.ExternalAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan external account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read external accounts: %w", err)
	}

	return accounts, nil
}

// CreateExternalAccount links a provider account to a user.
func (r *Repository) CreateExternalAccount(ctx context.Context, account *model.ExternalAccount) error {
	query := `
		INSERT INTO external_accounts (id, user_id, provider, provider_account_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create external account: %w", err)
	}

	return nil
}

// ListProjectIDsCreatedBy returns the IDs of projects the user owns via
// created_by.
func (r *Repository) ListProjectIDsCreatedBy(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM projects WHERE created_by = $1 ORDER BY created_at`, userID)
}

// ListMembershipsByUser returns all project memberships held by a user.
func (r *Repository) ListMembershipsByUser(ctx context.Context, userID string) ([]model.Membership, error) {
	query := `
		SELECT id, project_id, user_id, role, created_at
		FROM memberships
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []model.Membership
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memberships: %w", err)
	}

	return memberships, nil
}

// GetSubscriptionByUser returns the user's subscription, or nil if none.
func (r *Repository) GetSubscriptionByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	query := `
		SELECT id, user_id, tier, billing_reference, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`

	var s model.Subscription
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.Tier,
		&s.BillingReference,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &s, nil
}

// ListMediaIDsByOwner returns the IDs of media items owned by a user.
func (r *Repository) ListMediaIDsByOwner(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM media WHERE owner_id = $1 ORDER BY created_at`, userID)
}

// ListOwnedResources loads the full ownership snapshot for a user.
// The merge executor plans against two of these snapshots.
func (r *Repository) ListOwnedResources(ctx context.Context, userID string) (*model.OwnedResources, error) {
	accounts, err := r.ListExternalAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	projectIDs, err := r.ListProjectIDsCreatedBy(ctx, userID)
	if err != nil {
		return nil, err
	}

	memberships, err := r.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	subscription, err := r.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	mediaIDs, err := r.ListMediaIDsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.OwnedResources{
		Accounts:     accounts,
		ProjectIDs:   projectIDs,
		Memberships:  memberships,
		Subscription: subscription,
		MediaIDs:     mediaIDs,
	}, nil
}

// listIDs runs a single-column ID query.
func (r *Repository) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ids: %w", err)
	}

	return ids, nil
}
