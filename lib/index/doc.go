// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package index builds the Sources, Packages and Translation-en
// documents of a suite and writes them through [File], which produces
// the uncompressed document and every configured compressed encoding
// in one pass and replaces the previous generation atomically.
//
// Stanza formatting follows the Debian control-file conventions apt
// expects: ordered fields, first occurrence of a field name wins
// (case-insensitively), empty values are omitted, and continuation
// lines always begin with a space. The file-list fields (Files,
// Checksums-Sha1, Checksums-Sha256) start on the line after their
// name.
//
// Ordering is deterministic: by package name, then descending Debian
// version, then descending publication ID. Two runs over the same
// publications produce byte-identical indexes.
package index
