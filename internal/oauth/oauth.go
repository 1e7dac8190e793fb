// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package oauth implements the lightweight third-party delegation flow:
// opaque tokens bound to an (owner, client) pair, redeemable for signed
// assertions.
package oauth

import (
	"context"
	"errors"
	"time"
)

// TokenLifetime is how long an issued token stays redeemable. Expiry is
// checked on use, not swept.
const TokenLifetime = 14 * 24 * time.Hour

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownClient is the 404-equivalent for an unregistered client id or
// origin.
var ErrUnknownClient = errors.New("unknown oauth client")

// ErrOriginMismatch is returned when the calling origin does not match the
// client's registered origin.
var ErrOriginMismatch = errors.New("origin does not match client registration")

// Client is a third-party application registered out-of-band. Immutable
// after creation.
type Client struct {
	ID          string
	OwnerUserID string
	Title       string
	OriginURL   string
}

// Token is a delegated-access grant. At most one live token per
// (owner, client) pair is meaningful.
type Token struct {
	ID          string
	OwnerUserID string
	ClientID    string
	IssuedAt    time.Time
}

// ExpiredAt reports whether the token is past its lifetime at t.
func (t *Token) ExpiredAt(at time.Time) bool {
	return at.Sub(t.IssuedAt) > TokenLifetime
}

// ClientRepository manages client registrations.
type ClientRepository interface {
	// GetByID retrieves a client. Returns ErrNotFound if unknown.
	GetByID(ctx context.Context, id string) (*Client, error)

	// GetByOrigin retrieves the client registered for an origin URL.
	GetByOrigin(ctx context.Context, origin string) (*Client, error)
}

// TokenRepository manages token persistence.
type TokenRepository interface {
	// Create stores a new token row.
	Create(ctx context.Context, tok *Token) error

	// Get retrieves a token by id. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*Token, error)

	// GetByOwnerClient retrieves the token for an (owner, client) pair.
	GetByOwnerClient(ctx context.Context, ownerUserID, clientID string) (*Token, error)

	// Delete removes a token row by id.
	Delete(ctx context.Context, id string) error

	// DeleteByOwnerClient removes any token for an (owner, client) pair.
	DeleteByOwnerClient(ctx context.Context, ownerUserID, clientID string) error
}
