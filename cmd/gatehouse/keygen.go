// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

const keygenBits = 2048

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new assertion signing keypair",
		Long: `Generate a new RSA keypair for signing identity assertions. The
private key is written in PEM form; the public key is printed so it
can be distributed to verifying servers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd, outPath)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "gatehouse-signing.pem", "private key output path")

	return cmd
}

func runKeygen(cmd *cobra.Command, outPath string) error {
	key, err := rsa.GenerateKey(rand.Reader, keygenBits)
	if err != nil {
		return oops.Code("KEYGEN_FAILED").Wrap(err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(outPath, privPEM, 0o600); err != nil {
		return oops.Code("KEYGEN_FAILED").With("path", outPath).Wrap(err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return oops.Code("KEYGEN_FAILED").Wrap(err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	cmd.Printf("Private key written to %s\n", outPath)
	cmd.Println(string(pubPEM))
	return nil
}
