// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package assertion

import (
	"strconv"
	"strings"
)

// challengeSeparators are the legacy delimiter encodings a client may use
// for a combined "<keyId><sep><challenge><sep><optionalToken>" value, in
// the order they are probed.
var challengeSeparators = []string{";", "%7C", "|"}

// splitChallenge extracts the key id and challenge. When the challenge
// string carries one of the legacy delimited forms, its embedded fields
// override the separately passed arguments. An unparseable embedded key id
// becomes 0, which the key checks reject as malformed.
func splitChallenge(keyID int, challenge string) (int, string, string) {
	for _, sep := range challengeSeparators {
		if !strings.Contains(challenge, sep) {
			continue
		}
		parts := strings.SplitN(challenge, sep, 3)

		id, err := strconv.Atoi(parts[0])
		if err != nil {
			id = 0
		}
		chal := ""
		if len(parts) > 1 {
			chal = parts[1]
		}
		token := ""
		if len(parts) > 2 {
			token = parts[2]
		}
		return id, chal, token
	}
	return keyID, challenge, ""
}
