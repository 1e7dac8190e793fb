// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package trust

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/arenalabs/gatehouse/internal/observability"
)

// Relay feed defaults. The provider publishes one CIDR per line; entries
// after a comma (provider metadata) are ignored.
const (
	DefaultRelayFeedSchedule = "@every 6h"
	relayFeedTimeout         = 30 * time.Second
	relayFetchAttempts       = 3
)

// RelayFeed periodically fetches the private-relay IP ranges and swaps
// them into a ProxySet. Refresh failures are logged and ignored; the
// previous ranges stay in effect.
type RelayFeed struct {
	url      string
	client   *http.Client
	proxies  *ProxySet
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewRelayFeed creates a RelayFeed. schedule is a cron spec; empty means
// DefaultRelayFeedSchedule.
func NewRelayFeed(url string, proxies *ProxySet, schedule string, logger *slog.Logger) *RelayFeed {
	if schedule == "" {
		schedule = DefaultRelayFeedSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayFeed{
		url:      url,
		client:   &http.Client{Timeout: relayFeedTimeout},
		proxies:  proxies,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start fetches once immediately and then on the configured schedule.
func (f *RelayFeed) Start(ctx context.Context) error {
	f.refresh(ctx)

	_, err := f.cron.AddFunc(f.schedule, func() { f.refresh(context.Background()) })
	if err != nil {
		return oops.Code("RELAY_FEED_BAD_SCHEDULE").With("schedule", f.schedule).Wrap(err)
	}
	f.cron.Start()
	return nil
}

// Stop stops the refresh schedule and waits for a running job to finish.
func (f *RelayFeed) Stop() {
	<-f.cron.Stop().Done()
}

// refresh fetches the feed and swaps the ranges in. Best effort.
func (f *RelayFeed) refresh(ctx context.Context) {
	var ranges []netip.Prefix

	backoff := retry.WithMaxRetries(relayFetchAttempts-1, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := f.fetch(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		ranges = fetched
		return nil
	})
	if err != nil {
		observability.RecordRelayFeedRefresh("error")
		f.logger.Warn("relay feed refresh failed", "url", f.url, "error", err)
		return
	}

	f.proxies.SetRelayRanges(ranges)
	observability.RecordRelayFeedRefresh("ok")
	f.logger.Info("relay feed refreshed", "ranges", len(ranges))
}

func (f *RelayFeed) fetch(ctx context.Context) ([]netip.Prefix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, oops.Code("RELAY_FEED_BAD_URL").With("url", f.url).Wrap(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, oops.Code("RELAY_FEED_FETCH_FAILED").With("url", f.url).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, oops.Code("RELAY_FEED_FETCH_FAILED").
			With("url", f.url).
			With("status", resp.StatusCode).
			Errorf("unexpected status %d", resp.StatusCode)
	}

	var ranges []netip.Prefix
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = line[:i]
		}
		pfx, err := parsePrefix(line)
		if err != nil {
			// One bad line does not spoil the feed.
			continue
		}
		ranges = append(ranges, pfx)
	}
	if err := scanner.Err(); err != nil {
		return nil, oops.Code("RELAY_FEED_READ_FAILED").With("url", f.url).Wrap(err)
	}
	return ranges, nil
}
