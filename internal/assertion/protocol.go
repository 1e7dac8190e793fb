// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package assertion builds and signs the identity proofs that game servers
// verify against this engine's public key.
//
// Failure signaling is part of the wire grammar, not the error channel: a
// bare ";" means the caller must authenticate first, and ";;<message>"
// carries a human-readable rejection. External servers parse the leading
// semicolons, so ordinary negative outcomes never surface as Go errors;
// errors carry infrastructure faults only.
package assertion

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/arenalabs/gatehouse/internal/account"
	"github.com/arenalabs/gatehouse/internal/auth"
	"github.com/arenalabs/gatehouse/internal/observability"
)

// NeedsAuth is the reply for a registered name the caller has not
// authenticated as.
const NeedsAuth = ";"

// loginStampInterval limits how often an assertion refreshes the account's
// last-login stamp.
const loginStampInterval = 24 * time.Hour

// confirmAge is how old a registration must be before the deferred
// ladder-activity promotion is considered.
const confirmAge = 7 * 24 * time.Hour

// Ladder is the external rating-ladder collaborator, consulted only for
// the deferred standing promotion.
type Ladder interface {
	PlayedRecently(ctx context.Context, userid string) (bool, error)
}

// UsertypeHook may replace the computed usertype entirely. Deployment
// policy escape hatch.
type UsertypeHook interface {
	OverrideUsertype(ctx context.Context, acct *account.Account, ip string) (usertype string, ok bool)
}

// ForceList pins a usertype for specific users or IPs (e.g. IP-based
// auto-restriction). It takes precedence over UsertypeHook.
type ForceList interface {
	ForcedUsertype(ctx context.Context, userid, ip string) (usertype string, ok bool)
}

// DataHook may rewrite the assertion payload before signing.
type DataHook interface {
	RewriteAssertionData(data string) string
}

// Request carries one assertion request.
type Request struct {
	// Name is the display name the assertion is for.
	Name string

	// KeyID and Challenge as passed separately by the client. A legacy
	// delimited Challenge overrides both.
	KeyID     int
	Challenge string

	// ChallengePrefix from CORS resolution; empty when not cross-origin.
	ChallengePrefix string

	// User is the acting identity (possibly Guest).
	User auth.Identity

	// IP is the resolved client IP.
	IP string
}

// Config wires a Protocol. Ladder, Hook, Force, and Data may be nil.
type Config struct {
	Signer        *Signer
	Accounts      account.Repository
	Policy        *account.NamePolicy
	Ladder        Ladder
	Hook          UsertypeHook
	Force         ForceList
	Data          DataHook
	RetiredKeyIDs []int
	ServerHost    string
	Logger        *slog.Logger
}

// Protocol produces signed assertions.
type Protocol struct {
	signer     *Signer
	accounts   account.Repository
	policy     *account.NamePolicy
	ladder     Ladder
	hook       UsertypeHook
	force      ForceList
	data       DataHook
	retired    map[int]struct{}
	serverHost string
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Protocol.
func New(cfg Config) (*Protocol, error) {
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Accounts == nil {
		return nil, errors.New("account repository is required")
	}
	if cfg.Policy == nil {
		return nil, errors.New("name policy is required")
	}
	if cfg.ServerHost == "" {
		return nil, errors.New("server host is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retired := make(map[int]struct{}, len(cfg.RetiredKeyIDs))
	for _, id := range cfg.RetiredKeyIDs {
		retired[id] = struct{}{}
	}

	return &Protocol{
		signer:     cfg.Signer,
		accounts:   cfg.Accounts,
		policy:     cfg.Policy,
		ladder:     cfg.Ladder,
		hook:       cfg.Hook,
		force:      cfg.Force,
		data:       cfg.Data,
		retired:    retired,
		serverHost: cfg.ServerHost,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ActiveKeyID returns the key id of the currently active signing keypair.
func (p *Protocol) ActiveKeyID() int { return p.signer.KeyID() }

// Make produces the assertion string for a request. The returned string is
// either a signed "<data>;<hexSignature>", the bare NeedsAuth reply, or a
// ";;<message>" rejection. Errors carry infrastructure faults only.
func (p *Protocol) Make(ctx context.Context, req Request) (string, error) {
	userid := account.ToID(req.Name)

	if err := p.policy.Check(req.Name); err != nil {
		var perr *account.PolicyError
		if errors.As(err, &perr) {
			return p.reject(perr.Message), nil
		}
		return "", err
	}

	keyID, challenge, _ := splitChallenge(req.KeyID, req.Challenge)

	var usertype string
	if req.User.AuthenticatedAs(userid) {
		ut, msg, err := p.usertypeFor(ctx, req.User.Account, req.IP)
		if err != nil {
			return "", err
		}
		if msg != "" {
			return p.reject(msg), nil
		}
		usertype = ut
		p.stampLogin(ctx, req.User.Account, req.IP)
	} else {
		if !account.ValidUserID(userid) {
			return p.reject("Usernames must contain at least one letter."), nil
		}
		_, err := p.accounts.GetByID(ctx, userid)
		if err == nil {
			// Registered names cannot be claimed through this path.
			observability.RecordAssertion("needs_auth")
			return NeedsAuth, nil
		}
		if !errors.Is(err, account.ErrNotFound) {
			return "", err
		}
		usertype = UsertypeUnregistered
		if challenge == "" {
			return p.reject("Malformed challenge."), nil
		}
	}

	switch {
	case keyID < 1:
		return p.reject("Malformed challenge key ID."), nil
	case p.isRetired(keyID):
		return p.reject("This server is using a challenge key that is no longer supported."), nil
	case keyID != p.signer.KeyID():
		return p.reject("Invalid challenge key ID."), nil
	}

	ts := strconv.FormatInt(p.now().Unix(), 10)
	tail := userid + "," + usertype + "," + ts + "," + p.serverHost

	var data string
	if challenge == "" {
		// Already-logged-in variant: no challenge to echo.
		data = req.ChallengePrefix + tail
	} else {
		data = req.ChallengePrefix + challenge + "," + tail
	}
	if p.data != nil {
		data = p.data.RewriteAssertionData(data)
	}

	sig, err := p.signer.Sign(data)
	if err != nil {
		return "", err
	}

	observability.RecordAssertion("signed")
	return data + ";" + sig, nil
}

func (p *Protocol) reject(msg string) string {
	observability.RecordAssertion("rejected")
	return ";;" + msg
}

func (p *Protocol) isRetired(keyID int) bool {
	_, ok := p.retired[keyID]
	return ok
}

// usertypeFor derives the usertype for an authenticated account. The
// force-list wins over the hook, which wins over the computed tier; a
// permanently unavailable standing short-circuits everything with msg set.
func (p *Protocol) usertypeFor(ctx context.Context, acct *account.Account, ip string) (usertype, msg string, err error) {
	if acct.Standing >= account.StandingUnavailable {
		return "", "Your username is no longer available.", nil
	}

	usertype = p.computeUsertype(ctx, acct)
	if p.hook != nil {
		if ut, ok := p.hook.OverrideUsertype(ctx, acct, ip); ok {
			usertype = ut
		}
	}
	if p.force != nil {
		if ut, ok := p.force.ForcedUsertype(ctx, acct.UserID, ip); ok {
			usertype = ut
		}
	}
	return usertype, "", nil
}

func (p *Protocol) computeUsertype(ctx context.Context, acct *account.Account) string {
	switch {
	case acct.Standing <= account.StandingElevated:
		return UsertypeElevated
	case acct.Standing >= 40:
		return UsertypeRegistered
	case acct.Standing >= 30:
		return UsertypeRestricted
	case acct.Standing >= 20:
		return UsertypeLimited
	case acct.Standing == account.StandingNormal && p.now().Sub(acct.RegisteredAt) > confirmAge:
		return p.confirmedUsertype(ctx, acct)
	default:
		return UsertypeRegistered
	}
}

// confirmedUsertype runs the deferred promotion check against the external
// ladder. Ladder trouble downgrades to the plain registered tier.
func (p *Protocol) confirmedUsertype(ctx context.Context, acct *account.Account) string {
	if p.ladder == nil {
		return UsertypeRegistered
	}
	played, err := p.ladder.PlayedRecently(ctx, acct.UserID)
	if err != nil {
		p.logger.Warn("ladder activity check failed", "userid", acct.UserID, "error", err)
		return UsertypeRegistered
	}
	if played {
		return UsertypeConfirmed
	}
	return UsertypeRegistered
}

// stampLogin refreshes the account's last-login bookkeeping at most once
// per loginStampInterval. Best effort.
func (p *Protocol) stampLogin(ctx context.Context, acct *account.Account, ip string) {
	now := p.now()
	if !acct.LastLoginAt.IsZero() && now.Sub(acct.LastLoginAt) < loginStampInterval {
		return
	}
	if err := p.accounts.StampLogin(ctx, acct.UserID, ip, now); err != nil {
		p.logger.Warn("login stamp not persisted", "userid", acct.UserID, "error", err)
	}
}
