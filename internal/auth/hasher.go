// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"errors"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost factor for newly minted hashes.
const DefaultBcryptCost = 12

// ErrEmptyPassword is returned when attempting to hash an empty secret.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides secret hashing and verification. It is used for
// both account passwords and session secrets.
type PasswordHasher interface {
	// Hash produces a digest of the secret.
	Hash(secret string) (string, error)

	// Verify checks the secret against a stored digest in constant time.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error
	// for a structurally invalid digest.
	Verify(secret, hash string) (bool, error)
}

// RehashPolicy decides whether a stored hash should be recomputed after a
// successful verification, e.g. to raise the cost factor.
type RehashPolicy interface {
	NeedsRehash(hash string) bool
}

// NormalizeLegacyHash maps historic bcrypt scheme identifiers onto the one
// this engine expects. The $2y$ and $2b$ identifiers describe the same
// algorithm and must compare as equivalent.
func NormalizeLegacyHash(hash string) string {
	if rest, ok := strings.CutPrefix(hash, "$2y$"); ok {
		return "$2b$" + rest
	}
	if rest, ok := strings.CutPrefix(hash, "$2x$"); ok {
		return "$2b$" + rest
	}
	return hash
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A cost outside bcrypt's valid
// range falls back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash produces a bcrypt digest of the secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(digest), nil
}

// Verify checks the secret against a stored digest. Legacy scheme prefixes
// are normalized before comparison.
func (h *BcryptHasher) Verify(secret, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(NormalizeLegacyHash(hash)), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}

// CostPolicy is a RehashPolicy that rehashes when the stored cost factor is
// below a minimum.
type CostPolicy struct {
	MinCost int
}

// NeedsRehash reports whether the hash's cost is below the minimum.
// Unparseable hashes report false; they fail verification elsewhere.
func (p CostPolicy) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(NormalizeLegacyHash(hash)))
	if err != nil {
		return false
	}
	return cost < p.MinCost
}
