// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenInfoVerifier(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		audience  string
		wantEmail string
		wantErr   bool
	}{
		{
			name:      "valid token",
			status:    http.StatusOK,
			body:      `{"email":"alice@example.com","email_verified":"true","aud":"client-1"}`,
			audience:  "client-1",
			wantEmail: "alice@example.com",
		},
		{
			name:     "wrong audience",
			status:   http.StatusOK,
			body:     `{"email":"alice@example.com","email_verified":"true","aud":"someone-else"}`,
			audience: "client-1",
			wantErr:  true,
		},
		{
			name:      "audience check disabled",
			status:    http.StatusOK,
			body:      `{"email":"alice@example.com","email_verified":"true","aud":"whoever"}`,
			audience:  "",
			wantEmail: "alice@example.com",
		},
		{
			name:     "unverified email",
			status:   http.StatusOK,
			body:     `{"email":"alice@example.com","email_verified":"false","aud":"client-1"}`,
			audience: "client-1",
			wantErr:  true,
		},
		{
			name:     "missing email",
			status:   http.StatusOK,
			body:     `{"email_verified":"true","aud":"client-1"}`,
			audience: "client-1",
			wantErr:  true,
		},
		{
			name:     "provider rejects token",
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid_token"}`,
			audience: "client-1",
			wantErr:  true,
		},
		{
			name:     "provider answers garbage",
			status:   http.StatusOK,
			body:     `not json`,
			audience: "client-1",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NotEmpty(t, r.URL.Query().Get("id_token"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v := NewTokenInfoVerifier(srv.URL, tt.audience)
			email, err := v.VerifyIDToken(context.Background(), "raw-token")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, email)
		})
	}
}
