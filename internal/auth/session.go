// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session configuration. The cookie's own Max-Age only keeps it present in
// the browser; SessionLifetime on the row is the real timeout.
const (
	SessionSecretBytes = 16
	SessionLifetime    = 14 * 24 * time.Hour
)

// Session is a persistent row backing one logged-in browser session. The
// raw secret lives only in the cookie; the row stores its digest.
type Session struct {
	ID          ulid.ULID
	SecretHash  string
	OwnerUserID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	IP          string
}

// NewSession creates a validated Session row.
func NewSession(ownerUserID, secretHash, ip string, now time.Time) (*Session, error) {
	if ownerUserID == "" {
		return nil, oops.Code("SESSION_INVALID_OWNER").Errorf("owner userid cannot be empty")
	}
	if secretHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("secret hash cannot be empty")
	}
	return &Session{
		ID:          ulid.Make(),
		SecretHash:  secretHash,
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(SessionLifetime),
		IP:          ip,
	}, nil
}

// ExpiredAt reports whether the session is past its expiry at the given
// time.
func (s *Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSecret creates the random per-session secret handed to the
// client. Only its digest is ever stored.
func GenerateSecret() (string, error) {
	buf := make([]byte, SessionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("SESSION_SECRET_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session row.
	Create(ctx context.Context, sess *Session) error

	// GetByID retrieves a session by its id. Returns ErrNotFound if no
	// such row exists.
	GetByID(ctx context.Context, id ulid.ULID) (*Session, error)

	// Delete removes a session row.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByOwner removes every session for an account. Used for bulk
	// invalidation on password change.
	DeleteByOwner(ctx context.Context, ownerUserID string) error

	// DeleteExpired removes all expired rows and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
