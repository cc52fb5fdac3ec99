// Package merge implements the account consolidation workflow: a
// challenge-response proof that the caller controls the target identity's
// inbox, followed by a planned batch that folds the target's resources
// into the caller and deletes the target.
package merge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
)

// Merge token format: mrg_{secret}
// Example: mrg_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const tokenSecretBytes = 16

// codeSpace is the size of the challenge code space (6 decimal digits).
var codeSpace = big.NewInt(1_000_000)

// NewMergeToken generates the opaque client-facing handle for a merge
// request.
func NewMergeToken() (string, error) {
	secret := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate merge token: %w", err)
	}
	return "mrg_" + hex.EncodeToString(secret), nil
}

// NewChallengeCode generates the 6-digit secret delivered to the target's
// inbox. Leading zeros are preserved.
func NewChallengeCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate challenge code: %w", err)
	}
	return fmt.Sprintf("%06d", n), nil
}

// generateULID creates a new ULID string for entity IDs.
func generateULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
}
