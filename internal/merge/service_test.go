package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/corates/corates/internal/identity"
	"github.com/corates/corates/internal/mailer"
	"github.com/corates/corates/internal/model"
	"github.com/corates/corates/internal/repository"
)

type fakeDirectory struct {
	byEmail   map[string]*model.User
	byAccount map[string]*model.User // keyed "provider:account_id"
}

func (d *fakeDirectory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if user, ok := d.byEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (d *fakeDirectory) GetUserByExternalAccount(_ context.Context, provider, accountID string) (*model.User, error) {
	if user, ok := d.byAccount[provider+":"+accountID]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

type fakeStore struct {
	users     map[string]*model.User
	requests  map[string]*model.MergeRequest // keyed by token
	resources map[string]*model.OwnedResources

	createErr error
	applyErr  error

	applied   []repository.MergeOp
	markCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*model.User),
		requests:  make(map[string]*model.MergeRequest),
		resources: make(map[string]*model.OwnedResources),
	}
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeStore) CreateMergeRequest(_ context.Context, req *model.MergeRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	for token, existing := range s.requests {
		if existing.InitiatorID == req.InitiatorID {
			delete(s.requests, token)
		}
	}
	s.requests[req.Token] = req
	return nil
}

func (s *fakeStore) GetMergeRequestByToken(_ context.Context, token string) (*model.MergeRequest, error) {
	req, ok := s.requests[token]
	if !ok {
		return nil, repository.ErrMergeRequestNotFound
	}
	if req.IsExpired(time.Now()) {
		delete(s.requests, token)
		return nil, repository.ErrMergeRequestNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *fakeStore) MarkMergeRequestVerified(_ context.Context, id string, verifiedAt time.Time) error {
	s.markCalls++
	for _, req := range s.requests {
		if req.ID == id {
			req.Verified = true
			req.VerifiedAt = &verifiedAt
			return nil
		}
	}
	return repository.ErrMergeRequestNotFound
}

func (s *fakeStore) DeleteMergeRequest(_ context.Context, id string) error {
	for token, req := range s.requests {
		if req.ID == id {
			delete(s.requests, token)
			return nil
		}
	}
	return nil
}

func (s *fakeStore) DeleteMergeRequestByToken(_ context.Context, initiatorID, token string) (int64, error) {
	req, ok := s.requests[token]
	if !ok || req.InitiatorID != initiatorID {
		return 0, nil
	}
	delete(s.requests, token)
	return 1, nil
}

func (s *fakeStore) ListOwnedResources(_ context.Context, userID string) (*model.OwnedResources, error) {
	if res, ok := s.resources[userID]; ok {
		return res, nil
	}
	return &model.OwnedResources{}, nil
}

func (s *fakeStore) ApplyMergeOps(_ context.Context, ops []repository.MergeOp) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = ops
	// Emulate the terminal delete so later reads see the request consumed.
	for token, req := range s.requests {
		for _, op := range ops {
			if op.Desc == "delete_merge_request" && op.Args[0] == req.ID {
				delete(s.requests, token)
			}
		}
	}
	return nil
}

type fakeLimiter struct {
	initiateAllowed bool
	initiateErr     error
	verifyAllowed   bool
	verifyErr       error
}

func (l *fakeLimiter) AllowInitiate(_ context.Context, _, _ string) (bool, error) {
	return l.initiateAllowed, l.initiateErr
}

func (l *fakeLimiter) AllowVerify(_ context.Context, _ string) (bool, error) {
	return l.verifyAllowed, l.verifyErr
}

type fakeMailer struct {
	sent    []mailer.Message
	sendErr error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type serviceFixture struct {
	service *Service
	store   *fakeStore
	limiter *fakeLimiter
	mail    *fakeMailer
}

func newFixture() *serviceFixture {
	store := newFakeStore()
	store.users["u_init"] = &model.User{ID: "u_init", Email: "alice@example.com"}
	store.users["u_target"] = &model.User{ID: "u_target", Email: "old@example.com"}
	store.resources["u_init"] = &model.OwnedResources{
		Accounts: []model.ExternalAccount{{ID: "ea_i1", UserID: "u_init", Provider: "google"}},
	}
	store.resources["u_target"] = &model.OwnedResources{
		Accounts: []model.ExternalAccount{
			{ID: "ea_t1", UserID: "u_target", Provider: "google"},
			{ID: "ea_t2", UserID: "u_target", Provider: "github"},
		},
	}

	dir := &fakeDirectory{
		byEmail: map[string]*model.User{
			"alice@example.com": store.users["u_init"],
			"old@example.com":   store.users["u_target"],
		},
		byAccount: map[string]*model.User{
			"github:octocat": store.users["u_target"],
		},
	}

	limiter := &fakeLimiter{initiateAllowed: true, verifyAllowed: true}
	mail := &fakeMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &serviceFixture{
		service: NewService(store, identity.NewResolver(dir), limiter, mail, nil, logger),
		store:   store,
		limiter: limiter,
		mail:    mail,
	}
}

// initiate is a helper that runs a successful Initiate and returns the
// pending request.
func (f *serviceFixture) initiate(t *testing.T) *model.MergeRequest {
	t.Helper()
	result, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetEmail: "old@example.com"})
	if err != nil {
		t.Fatalf("Initiate returned error: %v", err)
	}
	req, ok := f.store.requests[result.MergeToken]
	if !ok {
		t.Fatal("merge request was not persisted")
	}
	return req
}

func TestInitiateTargetValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input InitiateInput
	}{
		{"neither_set", InitiateInput{}},
		{"both_set", InitiateInput{TargetEmail: "old@example.com", TargetExternalID: "github:octocat"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service.Initiate(context.Background(), "u_init", test.input)
			if !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("expected ErrInvalidTarget, got %v", err)
			}
		})
	}
}

func TestInitiateSelfMerge(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetEmail: "Alice@Example.com"})
	if !errors.Is(err, ErrSelfMerge) {
		t.Errorf("expected ErrSelfMerge, got %v", err)
	}
}

func TestInitiateTargetNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetEmail: "nobody@example.com"})
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestInitiateMalformedExternalID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetExternalID: "no-provider-separator"})
	if !errors.Is(err, identity.ErrMalformedIdentifier) {
		t.Errorf("expected ErrMalformedIdentifier, got %v", err)
	}
}

func TestInitiateRateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.limiter.initiateAllowed = false
	_, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetEmail: "old@example.com"})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if len(f.store.requests) != 0 {
		t.Error("no merge request should be created when rate limited")
	}
}

func TestInitiateSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	result, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetEmail: "old@example.com"})
	if err != nil {
		t.Fatalf("Initiate returned error: %v", err)
	}

	if !strings.HasPrefix(result.MergeToken, "mrg_") {
		t.Errorf("unexpected token %q", result.MergeToken)
	}
	if result.TargetEmail != "old@example.com" {
		t.Errorf("unexpected target email %q", result.TargetEmail)
	}
	if len(result.TargetProviders) != 2 {
		t.Errorf("expected 2 target providers in preview, got %v", result.TargetProviders)
	}

	req, ok := f.store.requests[result.MergeToken]
	if !ok {
		t.Fatal("merge request was not persisted")
	}
	if len(req.Code) != 6 {
		t.Errorf("expected 6-digit code, got %q", req.Code)
	}
	if req.Verified {
		t.Error("new request must start unverified")
	}
	if got := req.ExpiresAt.Sub(req.CreatedAt); got != model.MergeRequestTTL {
		t.Errorf("expected TTL %v, got %v", model.MergeRequestTTL, got)
	}

	if len(f.mail.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(f.mail.sent))
	}
	msg := f.mail.sent[0]
	if msg.To != "old@example.com" {
		t.Errorf("code must go to the target inbox, went to %q", msg.To)
	}
	if !strings.Contains(msg.Body, req.Code) {
		t.Error("mail body does not contain the challenge code")
	}
	if strings.Contains(msg.Body, result.MergeToken) {
		t.Error("mail body must not leak the merge token")
	}
}

func TestInitiateByExternalID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	// Separators and the #qualifier are stripped during normalization.
	result, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetExternalID: "GitHub:octo-cat#legacy"})
	if err != nil {
		t.Fatalf("Initiate returned error: %v", err)
	}
	if result.TargetEmail != "old@example.com" {
		t.Errorf("resolved wrong target: %q", result.TargetEmail)
	}
}

func TestInitiateSendFailureRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.mail.sendErr = errors.New("gateway down")

	_, err := f.service.Initiate(context.Background(), "u_init", InitiateInput{TargetEmail: "old@example.com"})
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
	if len(f.store.requests) != 0 {
		t.Error("merge request must be rolled back after a send failure")
	}
}

func TestInitiateReplacesPendingRequest(t *testing.T) {
	t.Parallel()

	f := newFixture()
	first := f.initiate(t)
	second := f.initiate(t)

	if first.Token == second.Token {
		t.Fatal("second initiate reused the first token")
	}
	if _, ok := f.store.requests[first.Token]; ok {
		t.Error("first request must be replaced by the second")
	}
}

func TestVerifySuccess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)

	result, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if !f.store.requests[req.Token].Verified {
		t.Error("request was not marked verified")
	}
	if len(result.CurrentProviders) != 1 || result.CurrentProviders[0] != "google" {
		t.Errorf("unexpected current providers %v", result.CurrentProviders)
	}
	if len(result.TargetProviders) != 2 {
		t.Errorf("unexpected target providers %v", result.TargetProviders)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)

	wrong := "000000"
	if wrong == req.Code {
		wrong = "000001"
	}
	_, err := f.service.Verify(context.Background(), "u_init", req.Token, wrong)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.store.requests[req.Token].Verified {
		t.Error("request must stay unverified after a wrong code")
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Verify(context.Background(), "u_init", "mrg_deadbeef", "123456")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestVerifyWrongCaller(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)

	_, err := f.service.Verify(context.Background(), "u_other", req.Token, req.Code)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("token owned by someone else must look invalid, got %v", err)
	}
}

func TestVerifyExpiredRequest(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)
	req.ExpiresAt = time.Now().Add(-time.Minute)

	_, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expired request must look invalid, got %v", err)
	}
}

func TestVerifyIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)

	if _, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code); err != nil {
		t.Fatalf("first Verify returned error: %v", err)
	}
	if _, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code); err != nil {
		t.Fatalf("re-Verify with the correct code must succeed, got %v", err)
	}
	if f.store.markCalls != 1 {
		t.Errorf("expected a single MarkMergeRequestVerified call, got %d", f.store.markCalls)
	}
}

func TestVerifyLimiterFailsClosed(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)
	f.limiter.verifyErr = errors.New("redis unreachable")

	_, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("limiter errors must fail closed, got %v", err)
	}
}

func TestVerifyRateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)
	f.limiter.verifyAllowed = false

	_, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestCompleteSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)
	if _, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	result, err := f.service.Complete(context.Background(), "u_init", req.Token)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	want := []string{"google", "github"}
	if len(result.MergedProviders) != len(want) {
		t.Fatalf("expected merged providers %v, got %v", want, result.MergedProviders)
	}
	for i, provider := range want {
		if result.MergedProviders[i] != provider {
			t.Fatalf("expected merged providers %v, got %v", want, result.MergedProviders)
		}
	}

	if len(f.store.applied) == 0 {
		t.Fatal("no ops were applied")
	}
	last := f.store.applied[len(f.store.applied)-1]
	if last.Desc != "delete_merge_request" {
		t.Errorf("last op must consume the merge request, got %q", last.Desc)
	}
	if _, ok := f.store.requests[req.Token]; ok {
		t.Error("merge request must be gone after completion")
	}
}

func TestCompleteWithoutVerify(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)

	_, err := f.service.Complete(context.Background(), "u_init", req.Token)
	if !errors.Is(err, ErrNotVerified) {
		t.Errorf("expected ErrNotVerified, got %v", err)
	}
	if len(f.store.applied) != 0 {
		t.Error("no ops may be applied before verification")
	}
}

func TestCompleteUnknownToken(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Complete(context.Background(), "u_init", "mrg_deadbeef")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCompleteWrongCaller(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)
	if _, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	_, err := f.service.Complete(context.Background(), "u_other", req.Token)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCompleteStoreFailureRetainsRequest(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)
	if _, err := f.service.Verify(context.Background(), "u_init", req.Token, req.Code); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	f.store.applyErr = errors.New("deadlock detected")
	if _, err := f.service.Complete(context.Background(), "u_init", req.Token); err == nil {
		t.Fatal("expected error from failed batch")
	}

	// The request survives so the caller can retry.
	f.store.applyErr = nil
	if _, err := f.service.Complete(context.Background(), "u_init", req.Token); err != nil {
		t.Fatalf("retry after store failure returned error: %v", err)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)

	if err := f.service.Cancel(context.Background(), "u_init", req.Token); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if _, ok := f.store.requests[req.Token]; ok {
		t.Error("request must be deleted on cancel")
	}

	// Cancelling again, or an unknown token, is a silent no-op.
	if err := f.service.Cancel(context.Background(), "u_init", req.Token); err != nil {
		t.Errorf("repeat Cancel returned error: %v", err)
	}
	if err := f.service.Cancel(context.Background(), "u_init", "mrg_deadbeef"); err != nil {
		t.Errorf("Cancel of unknown token returned error: %v", err)
	}
}

func TestCancelDoesNotTouchOthersRequests(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := f.initiate(t)

	if err := f.service.Cancel(context.Background(), "u_other", req.Token); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if _, ok := f.store.requests[req.Token]; !ok {
		t.Error("another caller's cancel must not delete the request")
	}
}
