// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// TokenInfoVerifier validates federated identity tokens against a
// provider's tokeninfo endpoint. The endpoint receives the token as the
// id_token query parameter and answers with a JSON document carrying the
// verified email and the audience the token was minted for.
type TokenInfoVerifier struct {
	endpoint string
	audience string
	client   *http.Client
}

// NewTokenInfoVerifier creates a verifier for the given tokeninfo
// endpoint. Tokens whose audience differs from audience are rejected.
func NewTokenInfoVerifier(endpoint, audience string) *TokenInfoVerifier {
	return &TokenInfoVerifier{
		endpoint: endpoint,
		audience: audience,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenInfo struct {
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Audience      string `json:"aud"`
}

// VerifyIDToken implements FederatedVerifier.
func (v *TokenInfoVerifier) VerifyIDToken(ctx context.Context, token string) (string, error) {
	u := v.endpoint + "?id_token=" + url.QueryEscape(token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", oops.Code("FEDERATED_REQUEST_FAILED").Wrap(err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", oops.Code("FEDERATED_REQUEST_FAILED").Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", oops.Code("FEDERATED_TOKEN_REJECTED").
			With("status", resp.StatusCode).
			Errorf("tokeninfo endpoint rejected token")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", oops.Code("FEDERATED_REQUEST_FAILED").Wrap(err)
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", oops.Code("FEDERATED_RESPONSE_INVALID").Wrap(err)
	}

	if v.audience != "" && info.Audience != v.audience {
		return "", oops.Code("FEDERATED_TOKEN_REJECTED").
			With("aud", info.Audience).
			Errorf("token minted for another audience")
	}
	if info.Email == "" || info.EmailVerified != "true" {
		return "", oops.Code("FEDERATED_TOKEN_REJECTED").Errorf("token carries no verified email")
	}

	return info.Email, nil
}
