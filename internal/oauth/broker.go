// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package oauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arenalabs/gatehouse/internal/account"
	"github.com/arenalabs/gatehouse/internal/assertion"
	"github.com/arenalabs/gatehouse/internal/auth"
)

// Broker issues, refreshes, redeems, and revokes delegated-access tokens.
type Broker struct {
	clients    ClientRepository
	tokens     TokenRepository
	accounts   account.Repository
	assertions *assertion.Protocol
	logger     *slog.Logger
	now        func() time.Time
}

// NewBroker creates a Broker.
func NewBroker(clients ClientRepository, tokens TokenRepository, accounts account.Repository, assertions *assertion.Protocol, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		clients:    clients,
		tokens:     tokens,
		accounts:   accounts,
		assertions: assertions,
		logger:     logger,
		now:        time.Now,
	}
}

// Authorize grants the authenticated owner a token for the client. A live
// unexpired token for the pair is returned as-is; an expired one is
// deleted and replaced. Returns ErrUnknownClient for an unregistered
// client id and ErrOriginMismatch when origin differs from the client's
// registration.
func (b *Broker) Authorize(ctx context.Context, clientID, ownerUserID, origin string) (*Token, error) {
	client, err := b.clients.GetByID(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnknownClient
	}
	if err != nil {
		return nil, err
	}
	if origin != client.OriginURL {
		return nil, ErrOriginMismatch
	}

	tok, err := b.tokens.GetByOwnerClient(ctx, ownerUserID, clientID)
	if err == nil {
		if !tok.ExpiredAt(b.now()) {
			return tok, nil
		}
		if delErr := b.tokens.Delete(ctx, tok.ID); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			return nil, delErr
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return b.mint(ctx, ownerUserID, clientID)
}

// Refresh rotates a token. A token that does not resolve fails closed with
// ok=false rather than an error, so callers cannot probe for existence.
func (b *Broker) Refresh(ctx context.Context, clientID, oldTokenID string) (*Token, bool, error) {
	old, err := b.tokens.Get(ctx, oldTokenID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if old.ClientID != clientID {
		return nil, false, nil
	}

	fresh, err := b.mint(ctx, old.OwnerUserID, clientID)
	if err != nil {
		return nil, false, err
	}
	if err := b.tokens.Delete(ctx, old.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	return fresh, true, nil
}

// AssertionForToken redeems a token for a signed assertion, binding the
// caller's identity to the token owner and using the engine's own active
// key id. Unresolvable or expired tokens get a protocol-level rejection,
// never an error.
func (b *Broker) AssertionForToken(ctx context.Context, clientID, tokenID, challenge, ip string) (string, error) {
	tok, err := b.tokens.Get(ctx, tokenID)
	if errors.Is(err, ErrNotFound) {
		return ";;Invalid or expired token.", nil
	}
	if err != nil {
		return "", err
	}
	if tok.ClientID != clientID || tok.ExpiredAt(b.now()) {
		return ";;Invalid or expired token.", nil
	}

	acct, err := b.accounts.GetByID(ctx, tok.OwnerUserID)
	if errors.Is(err, account.ErrNotFound) {
		return ";;Invalid or expired token.", nil
	}
	if err != nil {
		return "", err
	}

	return b.assertions.Make(ctx, assertion.Request{
		Name:      acct.Username,
		KeyID:     b.assertions.ActiveKeyID(),
		Challenge: challenge,
		User: auth.Identity{
			UserID:   acct.UserID,
			Username: acct.Username,
			LoggedIn: true,
			Account:  acct,
		},
		IP: ip,
	})
}

// Revoke deletes any token the owner holds for the client registered at
// origin. Returns ErrUnknownClient when no client is registered there.
func (b *Broker) Revoke(ctx context.Context, ownerUserID, origin string) error {
	client, err := b.clients.GetByOrigin(ctx, origin)
	if errors.Is(err, ErrNotFound) {
		return ErrUnknownClient
	}
	if err != nil {
		return err
	}
	return b.tokens.DeleteByOwnerClient(ctx, ownerUserID, client.ID)
}

func (b *Broker) mint(ctx context.Context, ownerUserID, clientID string) (*Token, error) {
	tok := &Token{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		ClientID:    clientID,
		IssuedAt:    b.now(),
	}
	if err := b.tokens.Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}
