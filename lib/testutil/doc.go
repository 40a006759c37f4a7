// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for aptpublish
// packages.
//
// [ReadFile], [WriteFile], [RequireMissing], [RequireMode] and
// [Mtime] wrap the filesystem checks that nearly every archive test
// performs against a t.TempDir() tree.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no aptpublish-internal dependencies.
package testutil
