// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/arenalabs/gatehouse/internal/account"
)

// memAccounts is an in-memory account.Repository for tests.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
	stamps   map[string]time.Time
}

func newMemAccounts(accts ...*account.Account) *memAccounts {
	m := &memAccounts{
		accounts: make(map[string]*account.Account),
		stamps:   make(map[string]time.Time),
	}
	for _, a := range accts {
		cp := *a
		m.accounts[a.UserID] = &cp
	}
	return m
}

func (m *memAccounts) Create(_ context.Context, acct *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.UserID]; ok {
		return account.ErrExists
	}
	cp := *acct
	m.accounts[acct.UserID] = &cp
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, userid string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[userid]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *memAccounts) Update(_ context.Context, acct *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.UserID]; !ok {
		return account.ErrNotFound
	}
	cp := *acct
	m.accounts[acct.UserID] = &cp
	return nil
}

func (m *memAccounts) UpdateCredential(_ context.Context, userid string, cred account.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[userid]
	if !ok {
		return account.ErrNotFound
	}
	acct.Credential = cred
	return nil
}

func (m *memAccounts) StampLogin(_ context.Context, userid, ip string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[userid]
	if !ok {
		return account.ErrNotFound
	}
	acct.LastLoginIP = ip
	acct.LastLoginAt = at
	m.stamps[userid] = at
	return nil
}

// memSessions is an in-memory SessionRepository for tests.
type memSessions struct {
	mu   sync.Mutex
	rows map[ulid.ULID]*Session
}

func newMemSessions() *memSessions {
	return &memSessions{rows: make(map[ulid.ULID]*Session)}
}

func (m *memSessions) Create(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.rows[sess.ID] = &cp
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id ulid.ULID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *memSessions) Delete(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memSessions) DeleteByOwner(_ context.Context, ownerUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.rows {
		if sess.OwnerUserID == ownerUserID {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for id, sess := range m.rows {
		if sess.ExpiredAt(now) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memThrottle is an in-memory ThrottleRepository for tests.
type memThrottle struct {
	mu   sync.Mutex
	rows map[string]*ThrottleRecord
}

func newMemThrottle() *memThrottle {
	return &memThrottle{rows: make(map[string]*ThrottleRecord)}
}

func (m *memThrottle) Get(_ context.Context, ip string) (*ThrottleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[ip]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memThrottle) Upsert(_ context.Context, rec *ThrottleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rows[rec.IP] = &cp
	return nil
}

func (m *memThrottle) failures(ip string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[ip]
	if !ok {
		return 0
	}
	return rec.FailureCount
}

// fakeFederated is a canned FederatedVerifier.
type fakeFederated struct {
	email string
	err   error
}

func (f *fakeFederated) VerifyIDToken(_ context.Context, _ string) (string, error) {
	return f.email, f.err
}
