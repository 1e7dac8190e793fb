// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/arenalabs/gatehouse/internal/oauth"
)

// OAuthClientRepository implements oauth.ClientRepository using PostgreSQL.
type OAuthClientRepository struct {
	db DB
}

// NewOAuthClientRepository creates an OAuthClientRepository.
func NewOAuthClientRepository(db DB) *OAuthClientRepository {
	return &OAuthClientRepository{db: db}
}

// GetByID retrieves a client registration.
func (r *OAuthClientRepository) GetByID(ctx context.Context, id string) (*oauth.Client, error) {
	return r.getClient(ctx, `
		SELECT id, owner_userid, title, origin_url
		FROM oauth_clients
		WHERE id = $1
	`, id)
}

// GetByOrigin retrieves the client registered for an origin URL.
func (r *OAuthClientRepository) GetByOrigin(ctx context.Context, origin string) (*oauth.Client, error) {
	return r.getClient(ctx, `
		SELECT id, owner_userid, title, origin_url
		FROM oauth_clients
		WHERE origin_url = $1
	`, origin)
}

func (r *OAuthClientRepository) getClient(ctx context.Context, query, arg string) (*oauth.Client, error) {
	var client oauth.Client
	err := r.db.QueryRow(ctx, query, arg).
		Scan(&client.ID, &client.OwnerUserID, &client.Title, &client.OriginURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OAUTH_CLIENT_NOT_FOUND").
			With("key", arg).
			Wrap(oauth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OAUTH_CLIENT_GET_FAILED").
			With("key", arg).
			Wrap(err)
	}
	return &client, nil
}

// OAuthTokenRepository implements oauth.TokenRepository using PostgreSQL.
type OAuthTokenRepository struct {
	db DB
}

// NewOAuthTokenRepository creates an OAuthTokenRepository.
func NewOAuthTokenRepository(db DB) *OAuthTokenRepository {
	return &OAuthTokenRepository{db: db}
}

// Create stores a new token row.
func (r *OAuthTokenRepository) Create(ctx context.Context, tok *oauth.Token) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO oauth_tokens (id, owner_userid, client_id, issued_at)
		VALUES ($1, $2, $3, $4)
	`, tok.ID, tok.OwnerUserID, tok.ClientID, tok.IssuedAt)
	if err != nil {
		return oops.Code("OAUTH_TOKEN_CREATE_FAILED").
			With("owner", tok.OwnerUserID).
			With("client_id", tok.ClientID).
			Wrap(err)
	}
	return nil
}

// Get retrieves a token by id.
func (r *OAuthTokenRepository) Get(ctx context.Context, id string) (*oauth.Token, error) {
	var tok oauth.Token
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_userid, client_id, issued_at
		FROM oauth_tokens
		WHERE id = $1
	`, id).Scan(&tok.ID, &tok.OwnerUserID, &tok.ClientID, &tok.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OAUTH_TOKEN_NOT_FOUND").Wrap(oauth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OAUTH_TOKEN_GET_FAILED").Wrap(err)
	}
	return &tok, nil
}

// GetByOwnerClient retrieves the newest token for an (owner, client) pair.
func (r *OAuthTokenRepository) GetByOwnerClient(ctx context.Context, ownerUserID, clientID string) (*oauth.Token, error) {
	var tok oauth.Token
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_userid, client_id, issued_at
		FROM oauth_tokens
		WHERE owner_userid = $1 AND client_id = $2
		ORDER BY issued_at DESC
		LIMIT 1
	`, ownerUserID, clientID).Scan(&tok.ID, &tok.OwnerUserID, &tok.ClientID, &tok.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OAUTH_TOKEN_NOT_FOUND").
			With("owner", ownerUserID).
			With("client_id", clientID).
			Wrap(oauth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OAUTH_TOKEN_GET_FAILED").
			With("owner", ownerUserID).
			With("client_id", clientID).
			Wrap(err)
	}
	return &tok, nil
}

// Delete removes a token row by id.
func (r *OAuthTokenRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_tokens WHERE id = $1`, id)
	if err != nil {
		return oops.Code("OAUTH_TOKEN_DELETE_FAILED").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("OAUTH_TOKEN_NOT_FOUND").Wrap(oauth.ErrNotFound)
	}
	return nil
}

// DeleteByOwnerClient removes any token for an (owner, client) pair.
func (r *OAuthTokenRepository) DeleteByOwnerClient(ctx context.Context, ownerUserID, clientID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM oauth_tokens WHERE owner_userid = $1 AND client_id = $2`,
		ownerUserID, clientID)
	if err != nil {
		return oops.Code("OAUTH_TOKEN_DELETE_FAILED").
			With("owner", ownerUserID).
			With("client_id", clientID).
			Wrap(err)
	}
	return nil
}

var (
	_ oauth.ClientRepository = (*OAuthClientRepository)(nil)
	_ oauth.TokenRepository  = (*OAuthTokenRepository)(nil)
)
