// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aptpublish/cmd/aptpublish/cli"
	"github.com/bureau-foundation/aptpublish/lib/release"
	"github.com/bureau-foundation/aptpublish/lib/signing"
)

func verifyCommand(out streams) *cli.Command {
	var (
		keyringDir       string
		ageIdentity      string
		requireSignature bool
	)
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a published suite against its Release file",
		Description: `Check that every file listed in <suite-dir>/Release exists with the
recorded size and MD5, SHA1 and SHA256 digests. With --keyring,
Release.gpg is also checked against the keys in that directory.

verify reads only the suite directory and the keyring; it needs no
configuration and works on a mirror as well as on the published tree.`,
		Usage: "aptpublish verify [flags] <suite-dir>",
		Examples: []cli.Example{
			{
				Description: "Check a suite and its signature",
				Command:     "aptpublish verify --keyring /srv/aptpublish/keyring /srv/aptpublish/archive/ubuntutest/dists/breezy-autotest",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.StringVar(&keyringDir, "keyring", "", "directory of *.asc public keys to verify Release.gpg with")
			flagSet.StringVar(&ageIdentity, "age-identity", "", "age identity file for sealed keys in the keyring")
			flagSet.BoolVar(&requireSignature, "require-signature", false, "fail when the suite is not signed")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("verify: exactly one suite directory is required")
			}
			var verifier signing.Verifier
			if keyringDir != "" {
				keyring, err := signing.LoadKeyring(keyringDir, ageIdentity, nil)
				if err != nil {
					return err
				}
				verifier = keyring
			}
			verification, err := release.Verify(ctx, args[0], verifier)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if requireSignature && verification.Signer == "" {
				return fmt.Errorf("%s: Release is not signed by a known key", args[0])
			}
			signer := verification.Signer
			if signer == "" {
				signer = "unsigned"
			}
			fmt.Fprintf(out.stdout, "%s: %d files ok, %s\n", verification.Suite, verification.Files, signer)
			return nil
		},
	}
}
