// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog is the publisher's view of the publication records:
// which source and binary packages belong in which suite, and where
// each is in its lifecycle. The publisher reads pending and removable
// publications through [Catalog] and writes back only lifecycle
// transitions (published, deletion requested, removed) and the
// persisted state of archives it deletes.
//
// Two implementations share the interface. [Memory] keeps everything
// in maps and is what tests and fakes use. [Store] keeps publications
// in SQLite: the columns the publisher filters on are real columns,
// and the immutable package metadata (fields, files, digests) is a
// deterministic CBOR blob decoded on read.
//
// [Import] loads a YAML document of publications into either.
package catalog
