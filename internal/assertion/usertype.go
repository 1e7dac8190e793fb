// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package assertion

// Usertype codes carried inside an assertion. Game servers map these to
// permission tiers; the values are fixed by the wire protocol.
const (
	// UsertypeUnregistered is a name with no account behind it.
	UsertypeUnregistered = "1"

	// UsertypeRegistered is a registered account in normal standing.
	UsertypeRegistered = "2"

	// UsertypeElevated is an account with elevated trust (standing at or
	// below -10).
	UsertypeElevated = "3"

	// UsertypeConfirmed is a registered account promoted after the
	// deferred ladder-activity check.
	UsertypeConfirmed = "4"

	// UsertypeRestricted covers standing 30-39.
	UsertypeRestricted = "5"

	// UsertypeLimited covers standing 20-29.
	UsertypeLimited = "6"
)
