// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package trust

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRelayFeed_RefreshParsesRanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`# private relay egress ranges
172.16.0.0/12,us-east
100.64.0.0/10

not-a-cidr
192.0.2.99
`))
	}))
	defer srv.Close()

	proxies, err := NewProxySet(nil)
	require.NoError(t, err)

	feed := NewRelayFeed(srv.URL, proxies, "", nil)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Stop()

	assert.True(t, proxies.Trusted(netip.MustParseAddr("172.16.1.1")), "CIDR with trailing region column")
	assert.True(t, proxies.Trusted(netip.MustParseAddr("100.64.0.5")))
	assert.True(t, proxies.Trusted(netip.MustParseAddr("192.0.2.99")), "bare address line")
	assert.False(t, proxies.Trusted(netip.MustParseAddr("8.8.8.8")))
}

func TestRelayFeed_FailedRefreshKeepsPreviousRanges(t *testing.T) {
	failing := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("172.16.0.0/12\n"))
	}))
	defer srv.Close()

	proxies, err := NewProxySet(nil)
	require.NoError(t, err)
	proxies.SetRelayRanges([]netip.Prefix{netip.MustParsePrefix("100.64.0.0/10")})

	feed := NewRelayFeed(srv.URL, proxies, "", nil)

	// All attempts fail; the previous ranges must survive.
	feed.refresh(context.Background())
	assert.True(t, proxies.Trusted(netip.MustParseAddr("100.64.0.5")))
	assert.False(t, proxies.Trusted(netip.MustParseAddr("172.16.1.1")))

	failing = false
	feed.refresh(context.Background())
	assert.True(t, proxies.Trusted(netip.MustParseAddr("172.16.1.1")))
	assert.False(t, proxies.Trusted(netip.MustParseAddr("100.64.0.5")), "swap replaces the old set")
}

func TestRelayFeed_BadSchedule(t *testing.T) {
	proxies, err := NewProxySet(nil)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("10.0.0.0/8\n"))
	}))
	defer srv.Close()

	feed := NewRelayFeed(srv.URL, proxies, "not a schedule", nil)
	assert.Error(t, feed.Start(context.Background()))
}
