// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the aptpublish command tree. Every command
// loads the same configuration, opens the same catalog and resolves
// archives the same way; environment.go holds that shared part.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/aptpublish/cmd/aptpublish/cli"
	"github.com/bureau-foundation/aptpublish/lib/version"
)

// streams are the writers commands report to.
type streams struct {
	stdout io.Writer
	stderr io.Writer
}

// Root returns the complete command tree writing to the process's
// standard streams.
func Root() *cli.Command {
	return newRoot(streams{stdout: os.Stdout, stderr: os.Stderr})
}

func newRoot(out streams) *cli.Command {
	return &cli.Command{
		Name: "aptpublish",
		Description: `aptpublish: publish Debian-style package archives.

Places pending publications into the pool, writes Packages and Sources
indexes and signed Release files, and maintains archive directories.`,
		Output: out.stderr,
		Subcommands: []*cli.Command{
			publishCommand(out),
			setupCommand(out),
			deathRowCommand(out),
			aliasesCommand(out),
			deleteArchiveCommand(out),
			verifyCommand(out),
			catalogCommand(out),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string) error {
					fmt.Fprintf(out.stdout, "aptpublish %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
