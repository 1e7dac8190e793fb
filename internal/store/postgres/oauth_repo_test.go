// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenalabs/gatehouse/internal/oauth"
)

var (
	clientColumns = []string{"id", "owner_userid", "title", "origin_url"}
	tokenColumns  = []string{"id", "owner_userid", "client_id", "issued_at"}
)

func TestOAuthClientRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(clientColumns).
		AddRow("client-1", "vendor", "Team Tools", "https://tools.example.com")
	mock.ExpectQuery(`FROM oauth_clients\s+WHERE id =`).
		WithArgs("client-1").
		WillReturnRows(rows)

	repo := NewOAuthClientRepository(mock)
	client, err := repo.GetByID(context.Background(), "client-1")
	require.NoError(t, err)

	assert.Equal(t, "client-1", client.ID)
	assert.Equal(t, "https://tools.example.com", client.OriginURL)
}

func TestOAuthClientRepository_GetByOrigin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(clientColumns).
		AddRow("client-1", "vendor", "Team Tools", "https://tools.example.com")
	mock.ExpectQuery(`FROM oauth_clients\s+WHERE origin_url =`).
		WithArgs("https://tools.example.com").
		WillReturnRows(rows)

	repo := NewOAuthClientRepository(mock)
	client, err := repo.GetByOrigin(context.Background(), "https://tools.example.com")
	require.NoError(t, err)
	assert.Equal(t, "client-1", client.ID)
}

func TestOAuthClientRepository_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM oauth_clients\s+WHERE id =`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(clientColumns))

	repo := NewOAuthClientRepository(mock)
	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, oauth.ErrNotFound)
}

func TestOAuthTokenRepository_CreateAndGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO oauth_tokens`).
		WithArgs("tok-1", "alice", "client-1", issued).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewOAuthTokenRepository(mock)
	err = repo.Create(context.Background(), &oauth.Token{
		ID:          "tok-1",
		OwnerUserID: "alice",
		ClientID:    "client-1",
		IssuedAt:    issued,
	})
	require.NoError(t, err)

	rows := pgxmock.NewRows(tokenColumns).AddRow("tok-1", "alice", "client-1", issued)
	mock.ExpectQuery(`FROM oauth_tokens\s+WHERE id =`).
		WithArgs("tok-1").
		WillReturnRows(rows)

	tok, err := repo.Get(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", tok.OwnerUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthTokenRepository_GetByOwnerClient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(tokenColumns).AddRow("tok-2", "alice", "client-1", issued)
	mock.ExpectQuery(`WHERE owner_userid = \$1 AND client_id = \$2`).
		WithArgs("alice", "client-1").
		WillReturnRows(rows)

	repo := NewOAuthTokenRepository(mock)
	tok, err := repo.GetByOwnerClient(context.Background(), "alice", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.ID)
}

func TestOAuthTokenRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOAuthTokenRepository(mock)

	mock.ExpectExec(`DELETE FROM oauth_tokens WHERE id =`).
		WithArgs("tok-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), "tok-1"))

	mock.ExpectExec(`DELETE FROM oauth_tokens WHERE id =`).
		WithArgs("tok-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "tok-1"), oauth.ErrNotFound)
}

func TestOAuthTokenRepository_DeleteByOwnerClient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM oauth_tokens WHERE owner_userid =`).
		WithArgs("alice", "client-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repo := NewOAuthTokenRepository(mock)
	require.NoError(t, repo.DeleteByOwnerClient(context.Background(), "alice", "client-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
