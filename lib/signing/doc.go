// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signing produces and checks the armored detached OpenPGP
// signatures published as Release.gpg.
//
// The publisher depends only on the [Signer] and [Verifier] interfaces.
// [Keyring] implements both from a directory of armored secret keys.
// Keys may be stored in the clear (*.asc) or sealed with age
// (*.asc.age); sealed keys are opened with an age identity file when
// the keyring is loaded and kept only in memory afterwards.
//
// A key handle names a key by its 40-hex-digit fingerprint or its
// 16-hex-digit long key ID, case-insensitively, with or without a
// leading "0x" and embedded spaces.
package signing
