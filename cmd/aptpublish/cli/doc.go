// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for aptpublish.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. Commands are assembled into a tree by the commands package
// and dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing and help output with examples.
//
// Unknown subcommands and flags get a suggestion when a known name is
// within edit distance 3.
//
// [NewLogger] builds the slog logger every command writes to, and
// [ExitError] lets a command exit non-zero after printing its own
// report.
package cli
