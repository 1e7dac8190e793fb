// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// Throttle limits. An IP that records more than ThrottleLimit failures
// inside one window is locked out until the window decays.
const (
	ThrottleLimit  = 500
	ThrottleWindow = 24 * time.Hour
)

// ThrottleRecord is a persistent per-IP failure counter.
type ThrottleRecord struct {
	IP           string
	FailureCount int
	WindowStart  time.Time
	LastUserID   string
}

// ThrottleRepository manages throttle record persistence.
type ThrottleRepository interface {
	// Get retrieves the record for an IP. Returns ErrNotFound if the IP
	// has never failed a login.
	Get(ctx context.Context, ip string) (*ThrottleRecord, error)

	// Upsert creates or replaces the record for rec.IP.
	Upsert(ctx context.Context, rec *ThrottleRecord) error
}

// Throttle counts login failures per IP. The counter only decays through
// the 24h window; a successful login does not reset it. Lost updates under
// concurrent failures are tolerated - an undercount is acceptable, a
// blocked legitimate login is not.
type Throttle struct {
	repo ThrottleRepository
	now  func() time.Time
}

// NewThrottle creates a Throttle.
func NewThrottle(repo ThrottleRepository) *Throttle {
	return &Throttle{repo: repo, now: time.Now}
}

// LockedOut reports whether the IP has exhausted its failure budget in the
// current window. A window that has fully decayed resets the counter as a
// side effect.
func (t *Throttle) LockedOut(ctx context.Context, ip string) (bool, error) {
	rec, err := t.repo.Get(ctx, ip)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("THROTTLE_GET_FAILED").With("ip", ip).Wrap(err)
	}

	if t.now().Sub(rec.WindowStart) > ThrottleWindow {
		rec.FailureCount = 0
		rec.WindowStart = t.now()
		if err := t.repo.Upsert(ctx, rec); err != nil {
			return false, oops.Code("THROTTLE_RESET_FAILED").With("ip", ip).Wrap(err)
		}
		return false, nil
	}

	return rec.FailureCount > ThrottleLimit, nil
}

// RecordFailure increments the failure counter for an IP, creating the
// record on first failure. userid is remembered as the last target so that
// operators can inspect what a throttled IP was probing.
func (t *Throttle) RecordFailure(ctx context.Context, ip, userid string) error {
	rec, err := t.repo.Get(ctx, ip)
	if errors.Is(err, ErrNotFound) {
		rec = &ThrottleRecord{IP: ip, WindowStart: t.now()}
	} else if err != nil {
		return oops.Code("THROTTLE_GET_FAILED").With("ip", ip).Wrap(err)
	}

	if t.now().Sub(rec.WindowStart) > ThrottleWindow {
		rec.FailureCount = 0
		rec.WindowStart = t.now()
	}

	rec.FailureCount++
	rec.LastUserID = userid
	if err := t.repo.Upsert(ctx, rec); err != nil {
		return oops.Code("THROTTLE_RECORD_FAILED").With("ip", ip).Wrap(err)
	}
	return nil
}
