// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package trust resolves what the engine may believe about an inbound
// request: the true client IP behind the proxy chain, and the CORS
// challenge prefix for its origin.
package trust

import (
	"net/netip"
	"sync/atomic"

	"github.com/samber/oops"
)

// ProxySet holds the trusted-proxy ranges: a static CIDR list from config
// plus the private-relay ranges refreshed from the external feed.
type ProxySet struct {
	static []netip.Prefix
	relay  atomic.Pointer[[]netip.Prefix]
}

// NewProxySet parses the configured trusted-proxy CIDRs. A bare address is
// accepted as a /32 (or /128) prefix.
func NewProxySet(cidrs []string) (*ProxySet, error) {
	p := &ProxySet{}
	for _, raw := range cidrs {
		pfx, err := parsePrefix(raw)
		if err != nil {
			return nil, oops.Code("TRUST_BAD_CIDR").With("cidr", raw).Wrap(err)
		}
		p.static = append(p.static, pfx)
	}
	return p, nil
}

// SetRelayRanges atomically swaps in a fresh set of private-relay ranges.
func (p *ProxySet) SetRelayRanges(ranges []netip.Prefix) {
	p.relay.Store(&ranges)
}

// Trusted reports whether the address belongs to a trusted proxy or a
// private-relay range.
func (p *ProxySet) Trusted(addr netip.Addr) bool {
	for _, pfx := range p.static {
		if pfx.Contains(addr) {
			return true
		}
	}
	if relay := p.relay.Load(); relay != nil {
		for _, pfx := range *relay {
			if pfx.Contains(addr) {
				return true
			}
		}
	}
	return false
}

func parsePrefix(raw string) (netip.Prefix, error) {
	if pfx, err := netip.ParsePrefix(raw); err == nil {
		return pfx, nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
