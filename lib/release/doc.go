// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package release writes the files that tie a suite's indexes
// together: the per-directory Release stubs next to each Sources and
// Packages index, the i18n/Index listing of compressed translations,
// the suite's top-level Release with its MD5Sum, SHA1 and SHA256
// blocks, and its detached signature Release.gpg.
//
// Every file is replaced atomically. After a suite is written the
// modification times of everything the Release lists, together with
// Release and Release.gpg, are set to the newest among them so that
// mirrors can derive consistent caching headers.
//
// [Verify] is the inverse: it re-reads a suite directory, recomputes
// every listed digest and checks the signature.
package release
