package merge

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corates/corates/internal/identity"
	"github.com/corates/corates/internal/mailer"
	"github.com/corates/corates/internal/metrics"
	"github.com/corates/corates/internal/model"
	"github.com/corates/corates/internal/repository"
)

// Service errors.
var (
	// ErrInvalidTarget covers the XOR violation on the target reference:
	// none or both of email and external ID supplied.
	ErrInvalidTarget = errors.New("exactly one of target email or external id required")
	// ErrSelfMerge is returned when the target resolves to the caller.
	ErrSelfMerge = errors.New("cannot merge an account with itself")
	// ErrTargetNotFound is returned when no identity matches the target.
	ErrTargetNotFound = errors.New("target identity not found")
	// ErrRateLimited is returned when a throttle denies the attempt.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidInput is the deliberately generic failure for Verify and
	// Complete: unknown token, expired request, wrong caller or wrong code
	// all look identical to the client.
	ErrInvalidInput = errors.New("invalid merge token or code")
	// ErrNotVerified is returned by Complete before a successful Verify.
	// Handlers must surface it no more specifically than ErrInvalidInput.
	ErrNotVerified = errors.New("merge request not verified")
	// ErrSendFailed is returned when the challenge mail was not accepted;
	// the merge request is rolled back so the caller can retry.
	ErrSendFailed = errors.New("failed to send verification code")
)

// Store is the persistence surface the merge workflow needs.
// *repository.Repository satisfies it.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateMergeRequest(ctx context.Context, req *model.MergeRequest) error
	GetMergeRequestByToken(ctx context.Context, token string) (*model.MergeRequest, error)
	MarkMergeRequestVerified(ctx context.Context, id string, verifiedAt time.Time) error
	DeleteMergeRequest(ctx context.Context, id string) error
	DeleteMergeRequestByToken(ctx context.Context, initiatorID, token string) (int64, error)
	ListOwnedResources(ctx context.Context, userID string) (*model.OwnedResources, error)
	ApplyMergeOps(ctx context.Context, ops []repository.MergeOp) error
}

// RateLimiter gates merge attempts. AllowVerify implementations must fail
// closed: it is the only bound on brute force over the code space.
type RateLimiter interface {
	AllowInitiate(ctx context.Context, callerID, normalizedTarget string) (bool, error)
	AllowVerify(ctx context.Context, token string) (bool, error)
}

// Service orchestrates the merge workflow.
type Service struct {
	store    Store
	resolver *identity.Resolver
	limiter  RateLimiter
	mail     mailer.Mailer
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewService creates a merge Service.
func NewService(store Store, resolver *identity.Resolver, limiter RateLimiter, mail mailer.Mailer, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		limiter:  limiter,
		mail:     mail,
		metrics:  recorder,
		logger:   logger.With("component", "merge"),
	}
}

// InitiateInput carries the target reference for a new merge request.
// Exactly one field must be set.
type InitiateInput struct {
	TargetEmail      string
	TargetExternalID string
}

// InitiateResult is returned to the caller. The challenge code is never
// part of it.
type InitiateResult struct {
	MergeToken  string
	TargetEmail string
	// TargetProviders previews the external accounts currently linked to
	// the target identity.
	TargetProviders []string
}

// VerifyResult reports a successful code check plus previews of both sides.
type VerifyResult struct {
	CurrentProviders []string // initiator's linked providers
	TargetProviders  []string
}

// CompleteResult reports the outcome of the consolidation.
type CompleteResult struct {
	MergedProviders []string
}

// Initiate starts a merge: resolves the target, replaces any prior pending
// request for the caller, and mails the challenge code to the target's
// inbox. A dispatch failure rolls the new request back.
func (s *Service) Initiate(ctx context.Context, callerID string, input InitiateInput) (*InitiateResult, error) {
	if (input.TargetEmail == "") == (input.TargetExternalID == "") {
		s.metrics.IncMergeInitiated("rejected")
		return nil, ErrInvalidTarget
	}

	caller, err := s.store.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}

	target, normalized, err := s.resolver.Resolve(ctx, identity.TargetRef{
		Email:      input.TargetEmail,
		ExternalID: input.TargetExternalID,
	})
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			s.metrics.IncMergeInitiated("rejected")
			return nil, ErrTargetNotFound
		}
		if errors.Is(err, identity.ErrMalformedIdentifier) {
			s.metrics.IncMergeInitiated("rejected")
			return nil, err
		}
		return nil, fmt.Errorf("resolve target: %w", err)
	}

	if target.ID == caller.ID {
		s.metrics.IncMergeInitiated("rejected")
		return nil, ErrSelfMerge
	}

	allowed, err := s.limiter.AllowInitiate(ctx, callerID, normalized)
	if err != nil {
		s.logger.Warn("initiate rate limit check failed", "error", err)
	}
	if !allowed {
		s.metrics.IncMergeInitiated("rate_limited")
		return nil, ErrRateLimited
	}

	token, err := NewMergeToken()
	if err != nil {
		return nil, err
	}
	code, err := NewChallengeCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req := &model.MergeRequest{
		ID:             generateULID(),
		InitiatorID:    caller.ID,
		InitiatorEmail: caller.Email,
		TargetID:       target.ID,
		TargetEmail:    target.Email,
		Token:          token,
		Code:           code,
		CreatedAt:      now,
		ExpiresAt:      now.Add(model.MergeRequestTTL),
	}

	if err := s.store.CreateMergeRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create merge request: %w", err)
	}

	targetRes, err := s.store.ListOwnedResources(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("load target resources: %w", err)
	}

	// The code goes to the target's inbox: proving the caller can read it
	// is the ownership proof. If the mail bounces at the gateway, the
	// pending request would block a retry, so it is rolled back.
	msg := mailer.Message{
		To:      target.Email,
		Subject: "Confirm merging your Corates accounts",
		Body: fmt.Sprintf(
			"%s wants to merge this account into theirs.\n\nVerification code: %s\n\nThe code expires in %d minutes. If you did not request this, ignore this message.",
			caller.Email, code, int(model.MergeRequestTTL.Minutes()),
		),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.metrics.IncMailSent("failed")
		s.metrics.IncMergeInitiated("send_failed")
		if delErr := s.store.DeleteMergeRequest(ctx, req.ID); delErr != nil {
			s.logger.Error("failed to roll back merge request after send failure",
				"request_id", req.ID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	s.metrics.IncMailSent("success")
	s.metrics.IncMergeInitiated("success")

	s.logger.Info("merge initiated",
		"initiator_id", caller.ID,
		"target_id", target.ID,
		"request_id", req.ID,
		"expires_at", req.ExpiresAt,
	)

	return &InitiateResult{
		MergeToken:      token,
		TargetEmail:     target.Email,
		TargetProviders: targetRes.Providers(),
	}, nil
}

// Verify checks the challenge code. All failure modes collapse into
// ErrInvalidInput so the response never reveals which check failed. A
// correct code on an already-verified request succeeds idempotently.
func (s *Service) Verify(ctx context.Context, callerID, token, code string) (*VerifyResult, error) {
	allowed, err := s.limiter.AllowVerify(ctx, token)
	if err != nil {
		// Fail closed: if the limiter cannot be consulted, the code space
		// must not be guessable.
		s.logger.Warn("verify rate limit check failed", "error", err)
		s.metrics.IncMergeVerified("rate_limited")
		return nil, ErrRateLimited
	}
	if !allowed {
		s.metrics.IncMergeVerified("rate_limited")
		return nil, ErrRateLimited
	}

	req, err := s.store.GetMergeRequestByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrMergeRequestNotFound) {
			s.metrics.IncMergeVerified("invalid")
			return nil, ErrInvalidInput
		}
		return nil, fmt.Errorf("load merge request: %w", err)
	}

	if req.InitiatorID != callerID {
		s.metrics.IncMergeVerified("invalid")
		return nil, ErrInvalidInput
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(req.Code)) != 1 {
		s.metrics.IncMergeVerified("invalid")
		return nil, ErrInvalidInput
	}

	if !req.Verified {
		if err := s.store.MarkMergeRequestVerified(ctx, req.ID, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
	}
	s.metrics.IncMergeVerified("success")

	initiatorRes, err := s.store.ListOwnedResources(ctx, req.InitiatorID)
	if err != nil {
		return nil, fmt.Errorf("load initiator resources: %w", err)
	}
	targetRes, err := s.store.ListOwnedResources(ctx, req.TargetID)
	if err != nil {
		return nil, fmt.Errorf("load target resources: %w", err)
	}

	s.logger.Info("merge verified",
		"initiator_id", req.InitiatorID,
		"target_id", req.TargetID,
		"request_id", req.ID,
	)

	return &VerifyResult{
		CurrentProviders: initiatorRes.Providers(),
		TargetProviders:  targetRes.Providers(),
	}, nil
}

// Complete executes the consolidation for a verified, unexpired request.
// On a store failure the request is retained so the caller can retry: the
// resource moves are idempotent and the identity delete is a
// delete-if-exists.
func (s *Service) Complete(ctx context.Context, callerID, token string) (*CompleteResult, error) {
	req, err := s.store.GetMergeRequestByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrMergeRequestNotFound) {
			s.metrics.IncMergeCompleted("rejected")
			return nil, ErrInvalidInput
		}
		return nil, fmt.Errorf("load merge request: %w", err)
	}

	if req.InitiatorID != callerID {
		s.metrics.IncMergeCompleted("rejected")
		return nil, ErrInvalidInput
	}
	if !req.Verified {
		s.metrics.IncMergeCompleted("rejected")
		return nil, ErrNotVerified
	}

	initiatorRes, err := s.store.ListOwnedResources(ctx, req.InitiatorID)
	if err != nil {
		return nil, fmt.Errorf("load initiator resources: %w", err)
	}
	targetRes, err := s.store.ListOwnedResources(ctx, req.TargetID)
	if err != nil {
		return nil, fmt.Errorf("load target resources: %w", err)
	}

	ops, summary := BuildPlan(req, initiatorRes, targetRes)

	start := time.Now()
	if err := s.store.ApplyMergeOps(ctx, ops); err != nil {
		s.metrics.IncMergeCompleted("failed")
		return nil, fmt.Errorf("apply merge batch: %w", err)
	}
	s.metrics.ObserveMergeDuration(time.Since(start))
	s.metrics.ObserveMergeOpsApplied(len(ops))
	s.metrics.IncMergeCompleted("success")

	s.logger.Info("merge completed",
		"initiator_id", req.InitiatorID,
		"target_id", req.TargetID,
		"request_id", req.ID,
		"accounts_moved", summary.AccountsMoved,
		"accounts_discarded", summary.AccountsDiscarded,
		"projects_reassigned", summary.ProjectsReassigned,
		"memberships_moved", summary.MembershipsMoved,
		"memberships_discarded", summary.MembershipsDiscarded,
		"subscription_adopted", summary.SubscriptionAdopted,
		"media_reassigned", summary.MediaReassigned,
	)

	return &CompleteResult{MergedProviders: summary.MergedProviders}, nil
}

// Cancel deletes the caller's pending request matching the token.
// Cancelling an unknown or already-consumed token succeeds as a no-op.
func (s *Service) Cancel(ctx context.Context, callerID, token string) error {
	deleted, err := s.store.DeleteMergeRequestByToken(ctx, callerID, token)
	if err != nil {
		return fmt.Errorf("cancel merge request: %w", err)
	}
	if deleted > 0 {
		s.metrics.IncMergeCancelled()
		s.logger.Info("merge cancelled", "initiator_id", callerID)
	}
	return nil
}
