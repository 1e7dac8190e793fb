// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Cookie wire format. The value is urlencode("<displayName>,<sessionId>,<secret>").
const (
	CookieName = "sid"

	// CookieMaxAge keeps the cookie present for about a year; the session
	// row's ExpiresAt is the real timeout.
	CookieMaxAge = 31363200
)

// EncodeSessionCookie builds the session cookie for a fresh login.
func EncodeSessionCookie(domain, displayName string, id ulid.ULID, secret string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    url.QueryEscape(displayName + "," + id.String() + "," + secret),
		MaxAge:   CookieMaxAge,
		Domain:   domain,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// ClearedSessionCookie builds the Max-Age=0 cookie that removes a session
// from the browser. The legacy wire shape keeps the secret slot, so an
// empty display name and id are encoded as ",,<secret>".
func ClearedSessionCookie(domain, secret string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    url.QueryEscape(",," + secret),
		MaxAge:   -1,
		Domain:   domain,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// ParseSessionCookie splits a cookie value into its three parts. A value
// that does not decode, has the wrong shape, or carries a malformed session
// id is a structural failure; callers degrade to Guest.
func ParseSessionCookie(value string) (displayName string, id ulid.ULID, secret string, err error) {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return "", ulid.ULID{}, "", oops.Code("COOKIE_MALFORMED").Wrap(err)
	}

	parts := strings.SplitN(decoded, ",", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", ulid.ULID{}, "", oops.Code("COOKIE_MALFORMED").Errorf("cookie must have three parts")
	}

	id, err = ulid.Parse(parts[1])
	if err != nil {
		return "", ulid.ULID{}, "", oops.Code("COOKIE_MALFORMED").With("session_id", parts[1]).Wrap(err)
	}

	return parts[0], id, parts[2], nil
}
