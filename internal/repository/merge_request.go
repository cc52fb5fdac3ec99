package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/corates/corates/internal/model"
)

// Common errors for merge request operations.
var (
	ErrMergeRequestNotFound = errors.New("merge request not found")
	ErrMergeRequestExists   = errors.New("merge request already exists for initiator")
)

const mergeRequestColumns = `
	id, initiator_id, initiator_email, target_id, target_email,
	token, code, verified, verified_at, created_at, expires_at
`

// CreateMergeRequest persists a new merge request, replacing any prior
// request for the same initiator. The delete and insert run in one
// transaction, and the UNIQUE(initiator_id) constraint guarantees that of
// two concurrent creates only one survives.
func (r *Repository) CreateMergeRequest(ctx context.Context, req *model.MergeRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM merge_requests WHERE initiator_id = $1`, req.InitiatorID); err != nil {
		return fmt.Errorf("failed to delete prior merge request: %w", err)
	}

	insert := `
		INSERT INTO merge_requests (` + mergeRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, insert,
		req.ID,
		req.InitiatorID,
		req.InitiatorEmail,
		req.TargetID,
		req.TargetEmail,
		req.Token,
		req.Code,
		req.Verified,
		req.VerifiedAt,
		req.CreatedAt,
		req.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMergeRequestExists
		}
		return fmt.Errorf("failed to create merge request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit merge request: %w", err)
	}

	return nil
}

// GetMergeRequestByToken loads a merge request by its opaque token.
// An expired request is purged and reported as not found.
func (r *Repository) GetMergeRequestByToken(ctx context.Context, token string) (*model.MergeRequest, error) {
	return r.getMergeRequest(ctx, `WHERE token = $1`, token)
}

// GetMergeRequestByInitiator loads the initiator's pending merge request.
// An expired request is purged and reported as not found.
func (r *Repository) GetMergeRequestByInitiator(ctx context.Context, initiatorID string) (*model.MergeRequest, error) {
	return r.getMergeRequest(ctx, `WHERE initiator_id = $1`, initiatorID)
}

func (r *Repository) getMergeRequest(ctx context.Context, where string, arg any) (*model.MergeRequest, error) {
	query := `SELECT ` + mergeRequestColumns + ` FROM merge_requests ` + where

	var req model.MergeRequest
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&req.ID,
		&req.InitiatorID,
		&req.InitiatorEmail,
		&req.TargetID,
		&req.TargetEmail,
		&req.Token,
		&req.Code,
		&req.Verified,
		&req.VerifiedAt,
		&req.CreatedAt,
		&req.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMergeRequestNotFound
		}
		return nil, fmt.Errorf("failed to get merge request: %w", err)
	}

	// Lazy expiry: a request past its deadline is deleted on read.
	if req.IsExpired(time.Now().UTC()) {
		if err := r.DeleteMergeRequest(ctx, req.ID); err != nil {
			return nil, err
		}
		return nil, ErrMergeRequestNotFound
	}

	return &req, nil
}

// MarkMergeRequestVerified flips the verified flag exactly once.
func (r *Repository) MarkMergeRequestVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	query := `
		UPDATE merge_requests
		SET verified = TRUE, verified_at = $2
		WHERE id = $1 AND verified = FALSE
	`

	if _, err := r.pool.Exec(ctx, query, id, verifiedAt); err != nil {
		return fmt.Errorf("failed to mark merge request verified: %w", err)
	}

	return nil
}

// DeleteMergeRequest removes a merge request by ID. Deleting a request
// that no longer exists is a no-op.
func (r *Repository) DeleteMergeRequest(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM merge_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete merge request: %w", err)
	}
	return nil
}

// DeleteMergeRequestByToken removes the initiator's merge request matching
// the token. Returns the number of rows removed; zero is not an error so
// that cancelling an already-consumed request stays a no-op.
func (r *Repository) DeleteMergeRequestByToken(ctx context.Context, initiatorID, token string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM merge_requests WHERE initiator_id = $1 AND token = $2`,
		initiatorID, token,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete merge request by token: %w", err)
	}
	return tag.RowsAffected(), nil
}
