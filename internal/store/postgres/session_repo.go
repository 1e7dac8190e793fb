// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/arenalabs/gatehouse/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session row.
func (r *SessionRepository) Create(ctx context.Context, sess *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, secret_hash, owner_userid, created_at, expires_at, ip)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		sess.ID.String(),
		sess.SecretHash,
		sess.OwnerUserID,
		sess.CreatedAt,
		sess.ExpiresAt,
		sess.IP,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("owner", sess.OwnerUserID).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its id.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, secret_hash, owner_userid, created_at, expires_at, ip
		FROM sessions
		WHERE id = $1
	`, id.String())

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return sess, nil
}

// Delete removes a session row.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByOwner removes every session for an account.
func (r *SessionRepository) DeleteByOwner(ctx context.Context, ownerUserID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE owner_userid = $1`, ownerUserID)
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_OWNER_FAILED").
			With("owner", ownerUserID).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired rows and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		sess  auth.Session
		idStr string
	)
	err := row.Scan(
		&idStr,
		&sess.SecretHash,
		&sess.OwnerUserID,
		&sess.CreatedAt,
		&sess.ExpiresAt,
		&sess.IP,
	)
	if err != nil {
		return nil, err
	}

	sess.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	return &sess, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
