// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package trust

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// OriginRule maps an origin pattern to the challenge prefix granted to
// requests from matching origins.
type OriginRule struct {
	Pattern string
	Prefix  string
}

// OriginTable is the ordered CORS rule list. Later entries override
// earlier ones: the LAST matching rule wins. Reordering config entries is
// a deployment-visible behavior change, so the precedence is fixed here.
type OriginTable struct {
	rules []compiledRule
}

type compiledRule struct {
	match  glob.Glob
	prefix string
}

// NewOriginTable compiles an ordered rule list.
func NewOriginTable(rules []OriginRule) (*OriginTable, error) {
	t := &OriginTable{}
	for _, r := range rules {
		g, err := glob.Compile(r.Pattern)
		if err != nil {
			return nil, oops.Code("TRUST_BAD_ORIGIN_PATTERN").With("pattern", r.Pattern).Wrap(err)
		}
		t.rules = append(t.rules, compiledRule{match: g, prefix: r.Prefix})
	}
	return t, nil
}

// Lookup returns the challenge prefix for an origin, scanning the full
// list so that the last match wins. ok is false when no rule matches and
// the origin gets no CORS grant.
func (t *OriginTable) Lookup(origin string) (prefix string, ok bool) {
	for _, r := range t.rules {
		if r.match.Match(origin) {
			prefix = r.prefix
			ok = true
		}
	}
	return prefix, ok
}
