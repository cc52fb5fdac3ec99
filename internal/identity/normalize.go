// Package identity resolves merge targets from user-supplied identifiers.
package identity

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrMalformedIdentifier indicates the supplied identifier cannot be
	// normalized into an email or provider account reference.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// externalIDSeparators are stripped from provider account IDs so that
	// cosmetic variants ("1234-5678", "1234_5678", "1234.5678") resolve to
	// the same account.
	externalIDSeparators = strings.NewReplacer("-", "", "_", "", ".", "", " ", "")
)

// NormalizeEmail trims and case-folds an email address.
// Returns ErrMalformedIdentifier if the result is not a plausible address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailRegex.MatchString(email) {
		return "", ErrMalformedIdentifier
	}
	return email, nil
}

// ParseExternalID splits a "provider:account_id" reference and normalizes
// both halves: the provider is case-folded; the account ID is case-folded,
// has separator characters removed, and loses any trailing "#qualifier"
// some providers append.
func ParseExternalID(raw string) (provider, accountID string, err error) {
	trimmed := strings.TrimSpace(raw)
	provider, accountID, found := strings.Cut(trimmed, ":")
	if !found {
		return "", "", ErrMalformedIdentifier
	}

	provider = strings.ToLower(strings.TrimSpace(provider))

	// Drop a trailing qualifier, then strip separators.
	if i := strings.IndexByte(accountID, '#'); i >= 0 {
		accountID = accountID[:i]
	}
	accountID = externalIDSeparators.Replace(strings.ToLower(strings.TrimSpace(accountID)))

	if provider == "" || accountID == "" {
		return "", "", ErrMalformedIdentifier
	}

	return provider, accountID, nil
}
