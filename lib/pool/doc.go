// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool manages an archive's pool/ tree: the package files
// referenced by Sources and Packages indexes, laid out as
//
//	pool/<component>/<prefix>/<source>/<filename>
//
// where prefix is the first letter of the source name, or "lib"
// plus the fourth letter for names starting with "lib".
//
// Every distinct content is stored once in a content-addressed object
// directory next to the archive, named by its keyed BLAKE3 hash. Pool
// paths are hardlinks to these objects, so the same bytes published
// under several components (or re-published after a component
// override) share one inode and can never diverge.
//
// AddFile is idempotent: adding identical content to an occupied path
// is a no-op, while adding different content fails with a
// *ConflictError and leaves the pool untouched. RemoveFile is
// idempotent as well and garbage-collects objects whose last pool
// link disappears.
//
// The Store assumes a single writer per archive.
package pool
