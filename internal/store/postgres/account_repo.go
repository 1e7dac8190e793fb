// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/arenalabs/gatehouse/internal/account"
)

// federatedSentinel is the legacy marker: an email column value ending in
// "@" is not a literal address but the federated identity email.
const federatedSentinel = "@"

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	passwordHash, email := credentialColumns(acct)

	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (userid, username, password_hash, email, standing, registered_at, last_login_at, last_login_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		acct.UserID,
		acct.Username,
		passwordHash,
		email,
		acct.Standing,
		acct.RegisteredAt,
		nullableTime(acct.LastLoginAt),
		acct.LastLoginIP,
	)
	if isUniqueViolation(err) {
		return oops.Code("ACCOUNT_EXISTS").
			With("userid", acct.UserID).
			Wrap(account.ErrExists)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("userid", acct.UserID).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by canonical id.
func (r *AccountRepository) GetByID(ctx context.Context, userid string) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT userid, username, password_hash, email, standing, registered_at, last_login_at, last_login_ip
		FROM accounts
		WHERE userid = $1
	`, userid)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("userid", userid).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("userid", userid).
			Wrap(err)
	}
	return acct, nil
}

// Update updates an existing account row, keyed by UserID.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	passwordHash, email := credentialColumns(acct)

	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET username = $2, password_hash = $3, email = $4, standing = $5,
		    registered_at = $6, last_login_at = $7, last_login_ip = $8
		WHERE userid = $1
	`,
		acct.UserID,
		acct.Username,
		passwordHash,
		email,
		acct.Standing,
		acct.RegisteredAt,
		nullableTime(acct.LastLoginAt),
		acct.LastLoginIP,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("userid", acct.UserID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("userid", acct.UserID).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdateCredential replaces only the credential for an account.
func (r *AccountRepository) UpdateCredential(ctx context.Context, userid string, cred account.Credential) error {
	passwordHash, federatedEmail := rawCredential(cred)

	var tag pgconn.CommandTag
	var err error
	if cred.Kind == account.CredentialFederated {
		tag, err = r.db.Exec(ctx,
			`UPDATE accounts SET password_hash = $2, email = $3 WHERE userid = $1`,
			userid, passwordHash, federatedEmail)
	} else {
		tag, err = r.db.Exec(ctx,
			`UPDATE accounts SET password_hash = $2 WHERE userid = $1`,
			userid, passwordHash)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREDENTIAL_UPDATE_FAILED").
			With("userid", userid).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("userid", userid).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// StampLogin records the time and client IP of a login.
func (r *AccountRepository) StampLogin(ctx context.Context, userid, ip string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE accounts SET last_login_at = $2, last_login_ip = $3 WHERE userid = $1`,
		userid, at, ip)
	if err != nil {
		return oops.Code("ACCOUNT_STAMP_FAILED").
			With("userid", userid).
			Wrap(err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acct         account.Account
		passwordHash *string
		email        *string
		lastLoginAt  *time.Time
	)
	err := row.Scan(
		&acct.UserID,
		&acct.Username,
		&passwordHash,
		&email,
		&acct.Standing,
		&acct.RegisteredAt,
		&lastLoginAt,
		&acct.LastLoginIP,
	)
	if err != nil {
		return nil, err
	}

	if lastLoginAt != nil {
		acct.LastLoginAt = *lastLoginAt
	}

	// Sentinel translation into the credential union.
	switch {
	case email != nil && strings.HasSuffix(*email, federatedSentinel):
		acct.Credential = account.Credential{
			Kind:           account.CredentialFederated,
			FederatedEmail: strings.TrimSuffix(*email, federatedSentinel),
		}
	case passwordHash != nil:
		acct.Credential = account.Credential{
			Kind:         account.CredentialLocal,
			PasswordHash: *passwordHash,
		}
		acct.Email = email
	default:
		acct.Credential = account.Credential{Kind: account.CredentialNone}
		acct.Email = email
	}

	return &acct, nil
}

// credentialColumns maps an account back onto the legacy column shapes.
// A federated credential occupies the email column with the sentinel form.
func credentialColumns(acct *account.Account) (passwordHash, email *string) {
	passwordHash, email = rawCredential(acct.Credential)
	if acct.Credential.Kind != account.CredentialFederated {
		email = acct.Email
	}
	return passwordHash, email
}

func rawCredential(cred account.Credential) (passwordHash, email *string) {
	switch cred.Kind {
	case account.CredentialLocal:
		h := cred.PasswordHash
		passwordHash = &h
	case account.CredentialFederated:
		e := cred.FederatedEmail + federatedSentinel
		email = &e
	}
	return passwordHash, email
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ account.Repository = (*AccountRepository)(nil)
