// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package account defines the user account domain model.
package account

import (
	"context"
	"strings"
	"time"
)

// Standing thresholds. Lower standing means more trusted; standing at or
// above StandingUnavailable makes the name permanently unavailable.
const (
	StandingElevated    = -10
	StandingNormal      = 0
	StandingUnavailable = 100
)

// CredentialKind distinguishes how an account authenticates.
type CredentialKind int

const (
	// CredentialNone marks an account with no way to authenticate
	// (a name that was registered but never given a credential).
	CredentialNone CredentialKind = iota

	// CredentialLocal authenticates with a locally stored password hash.
	CredentialLocal

	// CredentialFederated authenticates through the external identity
	// provider; the account has no local password.
	CredentialFederated
)

// Credential is the tagged credential union for an account. Exactly one of
// PasswordHash or FederatedEmail is meaningful, selected by Kind. The legacy
// wire sentinels (null password hash, email with a trailing "@") are
// translated to and from this form by the persistence adapter only.
type Credential struct {
	Kind           CredentialKind
	PasswordHash   string
	FederatedEmail string
}

// Account is a persistent user account row.
type Account struct {
	// UserID is the canonical key, a pure function of Username (see ToID).
	UserID   string
	Username string

	Credential Credential

	// Email is the contact address, if one was provided. Independent of
	// Credential.FederatedEmail.
	Email *string

	// Standing is the signed ban/trust level.
	Standing int

	RegisteredAt time.Time
	LastLoginAt  time.Time
	LastLoginIP  string
}

// Rename changes the display name and recomputes the canonical id.
func (a *Account) Rename(newName string) {
	a.Username = newName
	a.UserID = ToID(newName)
}

// ToID reduces a display name to its canonical id: lowercase with every
// non-alphanumeric rune dropped. Two names with the same id are the same
// account.
func ToID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// ValidUserID reports whether an id is well-formed: non-empty and containing
// at least one letter. All-digit ids cannot be claimed.
func ValidUserID(id string) bool {
	for _, r := range id {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}

// Repository manages account persistence. Implementations live under
// internal/store; this engine only consumes the interface.
type Repository interface {
	// Create stores a new account.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by canonical id.
	// Returns ErrNotFound if no such account exists.
	GetByID(ctx context.Context, userid string) (*Account, error)

	// Update updates an existing account row, keyed by UserID.
	Update(ctx context.Context, acct *Account) error

	// UpdateCredential replaces only the credential for an account.
	UpdateCredential(ctx context.Context, userid string, cred Credential) error

	// StampLogin records the time and client IP of a login.
	StampLogin(ctx context.Context, userid, ip string, at time.Time) error
}
