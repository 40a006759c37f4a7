// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite database behind the publication
// catalog with a fixed set of pragmas and an ordered list of schema
// migrations.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection and [Pool.Put] it back, or use [Pool.Read] and
// [Pool.Write], which do that around a function and, for writes, wrap
// it in an IMMEDIATE transaction so that concurrent writers queue on
// busy_timeout instead of failing with SQLITE_BUSY mid-transaction.
//
// Every connection gets:
//
//   - journal_mode=WAL, so readers (aptpublish verify, a second
//     publisher looking at another archive) never block the writer.
//   - synchronous=NORMAL: committed state survives a process crash.
//   - busy_timeout=5000.
//   - foreign_keys=ON.
//   - temp_store=MEMORY.
//
// Migrations are SQL scripts applied in order when the database's
// user_version is lower than their position. They run once, on Open,
// in a single transaction.
package sqlitepool
