// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package account

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Name policy defaults. The reserved prefix keeps server-assigned guest
// names out of the registered namespace.
const (
	DefaultMaxNameLength  = 18
	DefaultReservedPrefix = "guest"
)

// PolicyError is a protocol-visible name rejection. The Message is shown to
// the user verbatim; callers that speak the assertion grammar prefix it with
// ";;".
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

// NamePolicy validates display names against deployment rules.
type NamePolicy struct {
	reservedPrefix string
	maxLength      int
	bannedWords    []string
	bannedPatterns []glob.Glob
}

// NewNamePolicy creates a NamePolicy. bannedWords are matched as substrings
// of the canonical id; patterns are glob expressions matched against the
// whole id.
func NewNamePolicy(reservedPrefix string, maxLength int, bannedWords, patterns []string) (*NamePolicy, error) {
	if reservedPrefix == "" {
		reservedPrefix = DefaultReservedPrefix
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxNameLength
	}

	p := &NamePolicy{
		reservedPrefix: reservedPrefix,
		maxLength:      maxLength,
	}
	for _, w := range bannedWords {
		p.bannedWords = append(p.bannedWords, ToID(w))
	}
	for _, raw := range patterns {
		g, err := glob.Compile(raw)
		if err != nil {
			return nil, oops.Code("POLICY_BAD_PATTERN").
				With("pattern", raw).
				Wrap(err)
		}
		p.bannedPatterns = append(p.bannedPatterns, g)
	}
	return p, nil
}

// Check validates a display name. Returns a *PolicyError for names the
// policy rejects; any other error is infrastructure.
func (p *NamePolicy) Check(name string) error {
	id := ToID(name)
	if id == "" {
		return &PolicyError{Message: "Your username must contain at least one letter or number."}
	}
	if strings.HasPrefix(id, p.reservedPrefix) {
		return &PolicyError{Message: fmt.Sprintf("Usernames may not start with %q.", p.reservedPrefix)}
	}
	if len(id) > p.maxLength {
		return &PolicyError{Message: fmt.Sprintf("Your username must be at most %d characters long.", p.maxLength)}
	}
	for _, w := range p.bannedWords {
		if w != "" && strings.Contains(id, w) {
			return &PolicyError{Message: "Your username contains a banned word."}
		}
	}
	for _, g := range p.bannedPatterns {
		if g.Match(id) {
			return &PolicyError{Message: "Your username is not allowed."}
		}
	}
	return nil
}
