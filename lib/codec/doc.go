// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by everything
// aptpublish persists in binary form: the run journal in each
// archive's meta root and the immutable package metadata blobs in the
// SQLite catalog.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so equal
// values always produce equal bytes. Types that implement
// encoding.TextMarshaler (pockets, statuses, binary formats) are
// written as their text names, which keeps stored data readable with
// any CBOR diagnostic tool and stable if the Go constants are
// renumbered.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types stored only in CBOR carry `cbor` struct tags.
package codec
