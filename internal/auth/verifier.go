// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/arenalabs/gatehouse/internal/account"
	"github.com/arenalabs/gatehouse/internal/observability"
)

// FederatedVerifier validates externally issued identity tokens. The
// implementation is an out-of-process collaborator: it checks the token
// signature against the issuer's current public keys and that the audience
// matches this deployment's registered client id.
type FederatedVerifier interface {
	// VerifyIDToken returns the verified email address carried by the
	// token, or an error if the token does not check out.
	VerifyIDToken(ctx context.Context, rawToken string) (email string, err error)
}

// Verifier checks presented credentials against the account store, with
// throttle bookkeeping on every failed attempt.
type Verifier struct {
	accounts  account.Repository
	throttle  *Throttle
	hasher    PasswordHasher
	rehash    RehashPolicy
	federated FederatedVerifier
	logger    *slog.Logger
}

// NewVerifier creates a Verifier. rehash and federated may be nil; a nil
// federated verifier fails every federated login.
func NewVerifier(accounts account.Repository, throttle *Throttle, hasher PasswordHasher, rehash RehashPolicy, federated FederatedVerifier, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		accounts:  accounts,
		throttle:  throttle,
		hasher:    hasher,
		rehash:    rehash,
		federated: federated,
		logger:    logger,
	}
}

// Verify checks a presented secret for the given canonical id. The secret
// is a password for local accounts and a federated identity token for
// federated accounts. Returns false for every ordinary verification
// failure; errors carry infrastructure faults only.
//
// Throttle bookkeeping is never skipped: a hard-locked IP still has the
// attempt counted before the short-circuit.
func (v *Verifier) Verify(ctx context.Context, userid, secret, ip string) (bool, error) {
	locked, err := v.throttle.LockedOut(ctx, ip)
	if err != nil {
		return false, err
	}
	if locked {
		observability.RecordLoginFailure("throttled")
		if err := v.throttle.RecordFailure(ctx, ip, userid); err != nil {
			return false, err
		}
		return false, nil
	}

	acct, err := v.accounts.GetByID(ctx, userid)
	if errors.Is(err, account.ErrNotFound) {
		return v.fail(ctx, ip, userid, "unknown account")
	}
	if err != nil {
		return false, err
	}

	switch acct.Credential.Kind {
	case account.CredentialFederated:
		return v.verifyFederated(ctx, acct, secret, ip)
	case account.CredentialLocal:
		return v.verifyLocal(ctx, acct, secret, ip)
	default:
		return v.fail(ctx, ip, userid, "no credential on account")
	}
}

func (v *Verifier) verifyFederated(ctx context.Context, acct *account.Account, token, ip string) (bool, error) {
	if v.federated == nil {
		return v.fail(ctx, ip, acct.UserID, "no federated verifier configured")
	}

	email, err := v.federated.VerifyIDToken(ctx, token)
	if err != nil {
		// Verifier-specific detail never reaches the caller.
		v.logger.Debug("federated token rejected", "userid", acct.UserID, "error", err)
		return v.fail(ctx, ip, acct.UserID, "federated token rejected")
	}
	if !strings.EqualFold(email, acct.Credential.FederatedEmail) {
		return v.fail(ctx, ip, acct.UserID, "federated email mismatch")
	}
	return true, nil
}

func (v *Verifier) verifyLocal(ctx context.Context, acct *account.Account, password, ip string) (bool, error) {
	ok, err := v.hasher.Verify(password, acct.Credential.PasswordHash)
	if err != nil {
		// A hash that does not parse is indistinguishable from a wrong
		// password as far as the caller is concerned.
		v.logger.Warn("stored password hash unusable", "userid", acct.UserID, "error", err)
		return v.fail(ctx, ip, acct.UserID, "unusable hash")
	}
	if !ok {
		return v.fail(ctx, ip, acct.UserID, "password mismatch")
	}

	if v.rehash != nil && v.rehash.NeedsRehash(acct.Credential.PasswordHash) {
		if newHash, hashErr := v.hasher.Hash(password); hashErr == nil {
			cred := acct.Credential
			cred.PasswordHash = newHash
			// Best effort: the login stands even if the rehash doesn't.
			if upErr := v.accounts.UpdateCredential(ctx, acct.UserID, cred); upErr != nil {
				v.logger.Warn("password rehash not persisted", "userid", acct.UserID, "error", upErr)
			}
		}
	}

	return true, nil
}

func (v *Verifier) fail(ctx context.Context, ip, userid, reason string) (bool, error) {
	observability.RecordLoginFailure(reason)
	if err := v.throttle.RecordFailure(ctx, ip, userid); err != nil {
		return false, err
	}
	return false, nil
}
