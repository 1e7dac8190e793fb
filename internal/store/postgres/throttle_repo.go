// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/arenalabs/gatehouse/internal/auth"
)

// ThrottleRepository implements auth.ThrottleRepository using PostgreSQL.
type ThrottleRepository struct {
	db DB
}

// NewThrottleRepository creates a ThrottleRepository.
func NewThrottleRepository(db DB) *ThrottleRepository {
	return &ThrottleRepository{db: db}
}

// Get retrieves the throttle record for an IP.
func (r *ThrottleRepository) Get(ctx context.Context, ip string) (*auth.ThrottleRecord, error) {
	var rec auth.ThrottleRecord
	err := r.db.QueryRow(ctx, `
		SELECT ip, failure_count, window_start, last_userid
		FROM login_throttle
		WHERE ip = $1
	`, ip).Scan(&rec.IP, &rec.FailureCount, &rec.WindowStart, &rec.LastUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("THROTTLE_NOT_FOUND").
			With("ip", ip).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("THROTTLE_GET_FAILED").
			With("ip", ip).
			Wrap(err)
	}
	return &rec, nil
}

// Upsert creates or replaces the record for rec.IP. Concurrent failures
// from the same IP may lose an increment; that is acceptable here.
func (r *ThrottleRepository) Upsert(ctx context.Context, rec *auth.ThrottleRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_throttle (ip, failure_count, window_start, last_userid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ip) DO UPDATE
		SET failure_count = $2, window_start = $3, last_userid = $4
	`, rec.IP, rec.FailureCount, rec.WindowStart, rec.LastUserID)
	if err != nil {
		return oops.Code("THROTTLE_UPSERT_FAILED").
			With("ip", rec.IP).
			Wrap(err)
	}
	return nil
}

var _ auth.ThrottleRepository = (*ThrottleRepository)(nil)
