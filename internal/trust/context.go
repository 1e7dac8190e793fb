// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package trust

import (
	"net/http"
	"net/netip"
	"strings"
)

// Context is the per-request trust state. Both the client IP and the
// challenge prefix are computed at most once per request and memoized, so
// repeated calls are idempotent and CORS headers are emitted exactly once.
// A Context is confined to one request goroutine and needs no locking.
type Context struct {
	socketIP netip.Addr
	header   http.Header
	proxies  *ProxySet
	origins  *OriginTable

	clientIP   netip.Addr
	ipResolved bool

	prefix       string
	prefixLocked bool
}

// NewContext creates the trust context for one request. socketIP is the
// peer address of the accepted connection.
func NewContext(socketIP netip.Addr, header http.Header, proxies *ProxySet, origins *OriginTable) *Context {
	return &Context{
		socketIP: socketIP,
		header:   header,
		proxies:  proxies,
		origins:  origins,
	}
}

// ClientIP resolves the true client address. The X-Forwarded-For chain is
// walked from the most recently added hop backwards; the first hop that is
// not a trusted proxy is the client. If every hop is trusted, the socket
// address is the client.
func (c *Context) ClientIP() netip.Addr {
	if c.ipResolved {
		return c.clientIP
	}
	c.clientIP = c.resolveClientIP()
	c.ipResolved = true
	return c.clientIP
}

func (c *Context) resolveClientIP() netip.Addr {
	chain := forwardedChain(c.header)
	for i := len(chain) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(chain[i])
		if err != nil {
			// An unparseable hop cannot be trusted; treat it as the
			// boundary and stop at the previous trusted hop.
			break
		}
		if !c.proxies.Trusted(hop) {
			return hop
		}
	}
	return c.socketIP
}

// ChallengePrefix evaluates the CORS origin policy and returns the
// challenge prefix for this request; empty when the request is not
// cross-origin or its origin has no grant. On the first call with a
// granted origin, the CORS response headers are written to w; later calls
// return the cached prefix without touching headers again.
func (c *Context) ChallengePrefix(w http.ResponseWriter) string {
	if c.prefixLocked {
		return c.prefix
	}
	c.prefixLocked = true

	origin := c.header.Get("Origin")
	if origin == "" {
		return c.prefix
	}

	prefix, ok := c.origins.Lookup(origin)
	if !ok {
		return c.prefix
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	c.prefix = prefix
	return c.prefix
}

func forwardedChain(header http.Header) []string {
	var chain []string
	for _, value := range header.Values("X-Forwarded-For") {
		for hop := range strings.SplitSeq(value, ",") {
			hop = strings.TrimSpace(hop)
			if hop != "" {
				chain = append(chain, hop)
			}
		}
	}
	return chain
}
