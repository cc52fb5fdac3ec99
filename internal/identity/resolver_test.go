package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/corates/corates/internal/model"
	"github.com/corates/corates/internal/repository"
)

type fakeDirectory struct {
	byEmail   map[string]*model.User
	byAccount map[string]*model.User // keyed provider:accountID
}

func (f *fakeDirectory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeDirectory) GetUserByExternalAccount(_ context.Context, provider, accountID string) (*model.User, error) {
	if u, ok := f.byAccount[provider+":"+accountID]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func TestResolveByEmail(t *testing.T) {
	t.Parallel()

	alice := &model.User{ID: "u_alice", Email: "alice@example.com"}
	resolver := NewResolver(&fakeDirectory{
		byEmail: map[string]*model.User{"alice@example.com": alice},
	})

	user, normalized, err := resolver.Resolve(context.Background(), TargetRef{Email: "Alice@Example.COM "})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if user.ID != "u_alice" {
		t.Errorf("resolved wrong user: %+v", user)
	}
	if normalized != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", normalized)
	}
}

func TestResolveByExternalID(t *testing.T) {
	t.Parallel()

	bob := &model.User{ID: "u_bob", Email: "bob@example.com"}
	resolver := NewResolver(&fakeDirectory{
		byAccount: map[string]*model.User{"google:108234": bob},
	})

	user, normalized, err := resolver.Resolve(context.Background(), TargetRef{ExternalID: "Google:1082-34"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if user.ID != "u_bob" {
		t.Errorf("resolved wrong user: %+v", user)
	}
	if normalized != "google:108234" {
		t.Errorf("expected normalized external ID, got %q", normalized)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(&fakeDirectory{})

	_, normalized, err := resolver.Resolve(context.Background(), TargetRef{Email: "ghost@example.com"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if normalized != "ghost@example.com" {
		t.Errorf("normalized identifier should be returned even on miss, got %q", normalized)
	}
}

func TestResolveMalformed(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(&fakeDirectory{})

	tests := []struct {
		name string
		ref  TargetRef
	}{
		{"empty_ref", TargetRef{}},
		{"bad_email", TargetRef{Email: "not-an-email"}},
		{"bad_external", TargetRef{ExternalID: "no-separator"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, _, err := resolver.Resolve(context.Background(), test.ref); !errors.Is(err, ErrMalformedIdentifier) {
				t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
			}
		})
	}
}
