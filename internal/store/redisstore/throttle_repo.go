// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package redisstore keeps the login-throttle counters in Redis for
// deployments that would rather not put per-IP churn through PostgreSQL.
package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/arenalabs/gatehouse/internal/auth"
)

const throttleKeyPrefix = "gatehouse:throttle:"

// keyTTL keeps abandoned records from accumulating. It is deliberately
// longer than the throttle window so a record never vanishes mid-window.
const keyTTL = 3 * auth.ThrottleWindow

// ThrottleRepository implements auth.ThrottleRepository on Redis hashes.
type ThrottleRepository struct {
	client *redis.Client
}

// NewThrottleRepository creates a ThrottleRepository.
func NewThrottleRepository(client *redis.Client) *ThrottleRepository {
	return &ThrottleRepository{client: client}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", addr).Wrap(err)
	}
	return client, nil
}

// Get retrieves the throttle record for an IP.
func (r *ThrottleRepository) Get(ctx context.Context, ip string) (*auth.ThrottleRecord, error) {
	fields, err := r.client.HGetAll(ctx, throttleKeyPrefix+ip).Result()
	if err != nil {
		return nil, oops.Code("THROTTLE_GET_FAILED").With("ip", ip).Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("THROTTLE_NOT_FOUND").With("ip", ip).Wrap(auth.ErrNotFound)
	}

	rec := &auth.ThrottleRecord{IP: ip, LastUserID: fields["last_userid"]}

	count, err := parseInt(fields["failure_count"])
	if err != nil {
		return nil, oops.Code("THROTTLE_CORRUPT_RECORD").With("ip", ip).Wrap(err)
	}
	rec.FailureCount = count

	windowStart, err := parseUnix(fields["window_start"])
	if err != nil {
		return nil, oops.Code("THROTTLE_CORRUPT_RECORD").With("ip", ip).Wrap(err)
	}
	rec.WindowStart = windowStart

	return rec, nil
}

// Upsert creates or replaces the record for rec.IP.
func (r *ThrottleRepository) Upsert(ctx context.Context, rec *auth.ThrottleRecord) error {
	key := throttleKeyPrefix + rec.IP

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"failure_count": rec.FailureCount,
		"window_start":  rec.WindowStart.Unix(),
		"last_userid":   rec.LastUserID,
	})
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("THROTTLE_UPSERT_FAILED").With("ip", rec.IP).Wrap(err)
	}
	return nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, errors.New("missing field")
	}
	return strconv.Atoi(s)
}

func parseUnix(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing field")
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0), nil
}

var _ auth.ThrottleRepository = (*ThrottleRepository)(nil)
