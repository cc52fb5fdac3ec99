package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/corates/corates/internal/model"
	"github.com/corates/corates/internal/repository"
)

// ErrNotFound indicates no identity matched the target reference.
var ErrNotFound = errors.New("identity not found")

// TargetRef names an identity by exactly one of its email or a
// provider-scoped external account ID ("provider:account_id").
type TargetRef struct {
	Email      string
	ExternalID string
}

// Directory is the user lookup surface the resolver needs.
type Directory interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByExternalAccount(ctx context.Context, provider, providerAccountID string) (*model.User, error)
}

// Resolver normalizes target references and resolves them to users.
type Resolver struct {
	dir Directory
}

// NewResolver creates a Resolver backed by the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve normalizes the reference and looks up the matching user.
// The second return value is the normalized identifier, suitable for
// rate-limit keying and self-merge comparison.
func (r *Resolver) Resolve(ctx context.Context, ref TargetRef) (*model.User, string, error) {
	switch {
	case ref.Email != "":
		email, err := NormalizeEmail(ref.Email)
		if err != nil {
			return nil, "", err
		}

		user, err := r.dir.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, email, ErrNotFound
			}
			return nil, email, fmt.Errorf("resolve by email: %w", err)
		}
		return user, email, nil

	case ref.ExternalID != "":
		provider, accountID, err := ParseExternalID(ref.ExternalID)
		if err != nil {
			return nil, "", err
		}
		normalized := provider + ":" + accountID

		user, err := r.dir.GetUserByExternalAccount(ctx, provider, accountID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, normalized, ErrNotFound
			}
			return nil, normalized, fmt.Errorf("resolve by external account: %w", err)
		}
		return user, normalized, nil

	default:
		return nil, "", ErrMalformedIdentifier
	}
}
