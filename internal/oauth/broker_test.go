// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenalabs/gatehouse/internal/account"
	"github.com/arenalabs/gatehouse/internal/assertion"
)

// clientsFake is a fixed client registry.
type clientsFake struct {
	byID map[string]*Client
}

func (c *clientsFake) GetByID(_ context.Context, id string) (*Client, error) {
	if cl, ok := c.byID[id]; ok {
		return cl, nil
	}
	return nil, ErrNotFound
}

func (c *clientsFake) GetByOrigin(_ context.Context, origin string) (*Client, error) {
	for _, cl := range c.byID {
		if cl.OriginURL == origin {
			return cl, nil
		}
	}
	return nil, ErrNotFound
}

// tokensFake is an in-memory TokenRepository.
type tokensFake struct {
	mu   sync.Mutex
	rows map[string]*Token
}

func newTokensFake() *tokensFake {
	return &tokensFake{rows: make(map[string]*Token)}
}

func (r *tokensFake) Create(_ context.Context, tok *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tok
	r.rows[tok.ID] = &cp
	return nil
}

func (r *tokensFake) Get(_ context.Context, id string) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (r *tokensFake) GetByOwnerClient(_ context.Context, ownerUserID, clientID string) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *Token
	for _, tok := range r.rows {
		if tok.OwnerUserID != ownerUserID || tok.ClientID != clientID {
			continue
		}
		if newest == nil || tok.IssuedAt.After(newest.IssuedAt) {
			newest = tok
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (r *tokensFake) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *tokensFake) DeleteByOwnerClient(_ context.Context, ownerUserID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, tok := range r.rows {
		if tok.OwnerUserID == ownerUserID && tok.ClientID == clientID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *tokensFake) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// accountsFake is a fixed account registry.
type accountsFake struct {
	byID map[string]*account.Account
}

func (a *accountsFake) Create(context.Context, *account.Account) error { return nil }

func (a *accountsFake) GetByID(_ context.Context, userid string) (*account.Account, error) {
	if acct, ok := a.byID[userid]; ok {
		return acct, nil
	}
	return nil, account.ErrNotFound
}

func (a *accountsFake) Update(context.Context, *account.Account) error { return nil }

func (a *accountsFake) UpdateCredential(context.Context, string, account.Credential) error {
	return nil
}

func (a *accountsFake) StampLogin(context.Context, string, string, time.Time) error { return nil }

type brokerFixture struct {
	broker   *Broker
	tokens   *tokensFake
	accounts *accountsFake
}

func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := assertion.NewSigner(key, 3)
	require.NoError(t, err)

	policy, err := account.NewNamePolicy("guest", 18, nil, nil)
	require.NoError(t, err)

	accounts := &accountsFake{byID: map[string]*account.Account{
		"alice": {
			UserID:       "alice",
			Username:     "Alice",
			RegisteredAt: time.Now().Add(-30 * 24 * time.Hour),
		},
	}}

	protocol, err := assertion.New(assertion.Config{
		Signer:     signer,
		Accounts:   accounts,
		Policy:     policy,
		ServerHost: "play.example.com",
	})
	require.NoError(t, err)

	clients := &clientsFake{byID: map[string]*Client{
		"client-1": {
			ID:          "client-1",
			OwnerUserID: "vendor",
			Title:       "Team Tools",
			OriginURL:   "https://tools.example.com",
		},
	}}

	tokens := newTokensFake()
	return &brokerFixture{
		broker:   NewBroker(clients, tokens, accounts, protocol, nil),
		tokens:   tokens,
		accounts: accounts,
	}
}

func TestBroker_Authorize(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	tok, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", tok.OwnerUserID)
	assert.Equal(t, "client-1", tok.ClientID)
	assert.NotEmpty(t, tok.ID)

	// A second authorize returns the live token instead of minting.
	again, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)
	assert.Equal(t, tok.ID, again.ID)
	assert.Equal(t, 1, f.tokens.count())
}

func TestBroker_AuthorizeRejections(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	_, err := f.broker.Authorize(ctx, "nope", "alice", "https://tools.example.com")
	assert.ErrorIs(t, err, ErrUnknownClient)

	_, err = f.broker.Authorize(ctx, "client-1", "alice", "https://elsewhere.example.com")
	assert.ErrorIs(t, err, ErrOriginMismatch)
}

func TestBroker_AuthorizeReplacesExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	tok, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)

	// Jump past the token lifetime.
	f.broker.now = func() time.Time { return tok.IssuedAt.Add(TokenLifetime + time.Hour) }

	fresh, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)
	assert.NotEqual(t, tok.ID, fresh.ID)
	assert.Equal(t, 1, f.tokens.count(), "expired token deleted, not accumulated")
}

func TestBroker_Refresh(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	tok, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)

	fresh, ok, err := f.broker.Refresh(ctx, "client-1", tok.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, tok.ID, fresh.ID)
	assert.Equal(t, "alice", fresh.OwnerUserID)

	// The old token no longer resolves.
	_, ok, err = f.broker.Refresh(ctx, "client-1", tok.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBroker_RefreshFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	// Unknown token: no error, just not ok.
	_, ok, err := f.broker.Refresh(ctx, "client-1", "no-such-token")
	require.NoError(t, err)
	assert.False(t, ok)

	// Token owned by another client.
	tok, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)
	_, ok, err = f.broker.Refresh(ctx, "other-client", tok.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBroker_AssertionForToken(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	tok, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)

	out, err := f.broker.AssertionForToken(ctx, "client-1", tok.ID, "abc123", "10.0.0.1")
	require.NoError(t, err)

	require.False(t, strings.HasPrefix(out, ";"), "expected a signed assertion, got %q", out)
	assert.True(t, strings.HasPrefix(out, "abc123,alice,"), "got %q", out)
	assert.Contains(t, out, ",play.example.com;")
}

func TestBroker_AssertionForTokenRejections(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	tok, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)

	t.Run("unknown token", func(t *testing.T) {
		out, err := f.broker.AssertionForToken(ctx, "client-1", "nope", "abc123", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, ";;Invalid or expired token.", out)
	})

	t.Run("client mismatch", func(t *testing.T) {
		out, err := f.broker.AssertionForToken(ctx, "other-client", tok.ID, "abc123", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, ";;Invalid or expired token.", out)
	})

	t.Run("expired token", func(t *testing.T) {
		f.broker.now = func() time.Time { return tok.IssuedAt.Add(TokenLifetime + time.Hour) }
		defer func() { f.broker.now = time.Now }()

		out, err := f.broker.AssertionForToken(ctx, "client-1", tok.ID, "abc123", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, ";;Invalid or expired token.", out)
	})

	t.Run("owner account gone", func(t *testing.T) {
		delete(f.accounts.byID, "alice")
		defer func() {
			f.accounts.byID["alice"] = &account.Account{
				UserID:       "alice",
				Username:     "Alice",
				RegisteredAt: time.Now().Add(-30 * 24 * time.Hour),
			}
		}()

		out, err := f.broker.AssertionForToken(ctx, "client-1", tok.ID, "abc123", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, ";;Invalid or expired token.", out)
	})
}

func TestBroker_Revoke(t *testing.T) {
	ctx := context.Background()
	f := newBrokerFixture(t)

	_, err := f.broker.Authorize(ctx, "client-1", "alice", "https://tools.example.com")
	require.NoError(t, err)
	require.Equal(t, 1, f.tokens.count())

	require.NoError(t, f.broker.Revoke(ctx, "alice", "https://tools.example.com"))
	assert.Equal(t, 0, f.tokens.count())

	assert.ErrorIs(t, f.broker.Revoke(ctx, "alice", "https://unknown.example.com"), ErrUnknownClient)
}
