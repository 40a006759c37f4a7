// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records the suites of an archive whose indexes are
// stale, so that an interrupted publisher run can finish them on the
// next run.
//
// Phase A moves publications to "published" before any index is
// written. A run killed between the phases would leave those suites
// with outdated indexes and nothing in the catalog to say so. The
// journal closes that gap: the publisher records every dirty suite
// before it starts writing indexes and clears each one after its
// Release is on disk. The file lives at
// <meta-root>/publisher-journal.cbor and is removed once empty.
package journal
