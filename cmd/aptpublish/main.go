// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// aptpublish publishes Debian-style package archives: it places
// pending publications into the pool, writes indexes and signed
// Release files, and maintains archive directories.
//
// Usage:
//
//	aptpublish <command> [flags]
//
// Run "aptpublish --help" for the command list.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/aptpublish/cmd/aptpublish/commands"
)

func main() {
	if err := run(); err != nil {
		// A publish run that collected errors has logged them already
		// and only needs its exit code.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
