// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arenalabs/gatehouse/internal/account"
	"github.com/arenalabs/gatehouse/internal/observability"
)

// ErrNameTaken is the user-facing registration rejection for a name whose
// canonical id is already registered.
var ErrNameTaken = errors.New("name is already registered")

// Identity is the caller's resolved identity for one request. The zero
// value is Guest.
type Identity struct {
	UserID   string
	Username string

	// LoggedIn is true only when the identity is backed by a valid
	// session row. A display-name adoption carries a UserID but is not
	// logged in.
	LoggedIn bool

	Account *account.Account
	Session *Session
}

// Guest reports whether the identity is anonymous.
func (id Identity) Guest() bool { return id.UserID == "" }

// AuthenticatedAs reports whether the identity is logged in as the given
// canonical id.
func (id Identity) AuthenticatedAs(userid string) bool {
	return id.LoggedIn && id.UserID == userid
}

// SessionManager orchestrates the session lifecycle: login, logout, cookie
// resolution, registration, and password change.
type SessionManager struct {
	accounts     account.Repository
	sessions     SessionRepository
	verifier     *Verifier
	hasher       PasswordHasher
	policy       *account.NamePolicy
	cookieDomain string
	logger       *slog.Logger
	now          func() time.Time
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(accounts account.Repository, sessions SessionRepository, verifier *Verifier, hasher PasswordHasher, policy *account.NamePolicy, cookieDomain string, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		accounts:     accounts,
		sessions:     sessions,
		verifier:     verifier,
		hasher:       hasher,
		policy:       policy,
		cookieDomain: cookieDomain,
		logger:       logger,
		now:          time.Now,
	}
}

// Login authenticates a display name and establishes a new session. Any
// session already bound to the connection is destroyed first. A name with
// no registered account is adopted without a credential check: the caller
// gets an identity for the nickname but no session row.
//
// Returns ErrWrongPassword when verification fails; other errors are
// infrastructure faults.
func (m *SessionManager) Login(ctx context.Context, w http.ResponseWriter, cur *Session, name, secret, ip string) (Identity, error) {
	if cur != nil {
		if err := m.sessions.Delete(ctx, cur.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return Identity{}, err
		}
	}

	userid := account.ToID(name)
	if userid == "" {
		return Identity{}, nil
	}

	acct, err := m.accounts.GetByID(ctx, userid)
	if errors.Is(err, account.ErrNotFound) {
		// Unregistered names may be "logged in to" freely.
		return Identity{UserID: userid, Username: name}, nil
	}
	if err != nil {
		return Identity{}, err
	}

	ok, err := m.verifier.Verify(ctx, userid, secret, ip)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, ErrWrongPassword
	}

	return m.establish(ctx, w, acct, name, ip)
}

// Logout destroys the bound session row and, when destroyCookie is set,
// clears the cookie.
func (m *SessionManager) Logout(ctx context.Context, w http.ResponseWriter, sess *Session, destroyCookie bool) error {
	if sess != nil {
		if err := m.sessions.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	if destroyCookie {
		http.SetCookie(w, ClearedSessionCookie(m.cookieDomain, ""))
	}
	return nil
}

// ResolveFromCookie resolves the caller's identity from the session cookie
// value. Every validation failure clears the cookie and degrades to Guest;
// only storage faults surface as errors. Expired rows are deleted as a side
// effect of being observed.
func (m *SessionManager) ResolveFromCookie(ctx context.Context, w http.ResponseWriter, value string) (Identity, error) {
	if value == "" {
		return Identity{}, nil
	}

	displayName, id, secret, err := ParseSessionCookie(value)
	if err != nil {
		http.SetCookie(w, ClearedSessionCookie(m.cookieDomain, ""))
		return Identity{}, nil
	}

	reject := func() Identity {
		http.SetCookie(w, ClearedSessionCookie(m.cookieDomain, secret))
		return Identity{}
	}

	sess, err := m.sessions.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return reject(), nil
	}
	if err != nil {
		return Identity{}, err
	}

	if sess.ExpiredAt(m.now()) {
		if delErr := m.sessions.Delete(ctx, sess.ID); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			m.logger.Warn("expired session not deleted", "session_id", sess.ID.String(), "error", delErr)
		}
		return reject(), nil
	}

	ok, err := m.hasher.Verify(secret, sess.SecretHash)
	if err != nil || !ok {
		return reject(), nil
	}

	// The cookie's display name must still belong to the session owner;
	// this blocks a stolen secret from being replayed under another name.
	if account.ToID(displayName) != sess.OwnerUserID {
		return reject(), nil
	}

	acct, err := m.accounts.GetByID(ctx, sess.OwnerUserID)
	if errors.Is(err, account.ErrNotFound) {
		return reject(), nil
	}
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		UserID:   sess.OwnerUserID,
		Username: displayName,
		LoggedIn: true,
		Account:  acct,
		Session:  sess,
	}, nil
}

// Register creates a new local account and logs it in. Name-policy
// rejections surface as *account.PolicyError; a taken name as ErrNameTaken.
func (m *SessionManager) Register(ctx context.Context, w http.ResponseWriter, name, password, ip string) (Identity, error) {
	if err := m.policy.Check(name); err != nil {
		return Identity{}, err
	}

	userid := account.ToID(name)
	if _, err := m.accounts.GetByID(ctx, userid); err == nil {
		return Identity{}, ErrNameTaken
	} else if !errors.Is(err, account.ErrNotFound) {
		return Identity{}, err
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return Identity{}, err
	}

	acct := &account.Account{
		UserID:   userid,
		Username: name,
		Credential: account.Credential{
			Kind:         account.CredentialLocal,
			PasswordHash: hash,
		},
		RegisteredAt: m.now(),
	}
	if err := m.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, account.ErrExists) {
			return Identity{}, ErrNameTaken
		}
		return Identity{}, err
	}

	return m.establish(ctx, w, acct, name, ip)
}

// ChangePassword replaces the account's password and invalidates every
// session for it. When relogin is set (the account changed its own
// password), a fresh session is established immediately after. The two
// steps are best-effort sequential: a crash in between leaves the account
// logged out, which is the safe direction.
func (m *SessionManager) ChangePassword(ctx context.Context, w http.ResponseWriter, userid, newPassword, ip string, relogin bool) (Identity, error) {
	acct, err := m.accounts.GetByID(ctx, userid)
	if err != nil {
		return Identity{}, err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return Identity{}, err
	}

	cred := account.Credential{Kind: account.CredentialLocal, PasswordHash: hash}
	if err := m.accounts.UpdateCredential(ctx, userid, cred); err != nil {
		return Identity{}, err
	}
	acct.Credential = cred

	if err := m.sessions.DeleteByOwner(ctx, userid); err != nil {
		return Identity{}, err
	}

	if !relogin {
		http.SetCookie(w, ClearedSessionCookie(m.cookieDomain, ""))
		return Identity{}, nil
	}
	return m.establish(ctx, w, acct, acct.Username, ip)
}

// establish mints a secret, persists the session row, stamps the login,
// and sets the cookie.
func (m *SessionManager) establish(ctx context.Context, w http.ResponseWriter, acct *account.Account, displayName, ip string) (Identity, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return Identity{}, err
	}
	secretHash, err := m.hasher.Hash(secret)
	if err != nil {
		return Identity{}, err
	}

	sess, err := NewSession(acct.UserID, secretHash, ip, m.now())
	if err != nil {
		return Identity{}, err
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return Identity{}, err
	}

	if err := m.accounts.StampLogin(ctx, acct.UserID, ip, m.now()); err != nil {
		m.logger.Warn("login stamp not persisted", "userid", acct.UserID, "error", err)
	}

	http.SetCookie(w, EncodeSessionCookie(m.cookieDomain, displayName, sess.ID, secret))
	observability.RecordLogin()

	return Identity{
		UserID:   acct.UserID,
		Username: displayName,
		LoggedIn: true,
		Account:  acct,
		Session:  sess,
	}, nil
}
