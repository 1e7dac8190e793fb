// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package assertion

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // fixed wire protocol; verifiers expect RSA-SHA1
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"

	"github.com/samber/oops"
)

// Signer signs assertion payloads with the engine's private key. Game
// servers verify the signature independently with the published public key;
// the digest and padding are fixed by that wire protocol.
type Signer struct {
	key   *rsa.PrivateKey
	keyID int
}

// NewSigner creates a Signer for the given keypair version.
func NewSigner(key *rsa.PrivateKey, keyID int) (*Signer, error) {
	if key == nil {
		return nil, oops.Code("SIGNER_NO_KEY").Errorf("private key is required")
	}
	if keyID < 1 {
		return nil, oops.Code("SIGNER_BAD_KEY_ID").With("key_id", keyID).Errorf("key id must be positive")
	}
	return &Signer{key: key, keyID: keyID}, nil
}

// KeyID returns the version of the keypair this signer holds.
func (s *Signer) KeyID() int { return s.keyID }

// Sign returns the hex signature of data.
func (s *Signer) Sign(data string) (string, error) {
	digest := sha1.Sum([]byte(data)) //nolint:gosec // see package note on the wire protocol
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, digest[:])
	if err != nil {
		return "", oops.Code("SIGN_FAILED").With("key_id", s.keyID).Wrap(err)
	}
	return hex.EncodeToString(sig), nil
}

// ParsePrivateKey decodes a PEM-encoded RSA private key in either PKCS#1 or
// PKCS#8 form.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, oops.Code("KEY_PARSE_FAILED").Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("KEY_PARSE_FAILED").Wrap(err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, oops.Code("KEY_PARSE_FAILED").Errorf("not an RSA private key")
	}
	return key, nil
}
