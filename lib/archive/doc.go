// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive defines the value types the publisher works with:
// archives and their purposes, distributions and series, pockets and
// suites, source and binary publications, and the on-disk layout of
// an archive.
//
// Behavior that differs by archive purpose (primary, partner, PPA,
// copy) is expressed through a single policy table in purpose.go
// rather than conditionals spread across the publisher. Every other
// package asks the Archive for its pockets, components, subcomponents,
// Origin and Label instead of switching on the purpose itself.
//
// Nothing here touches the filesystem. Paths computes locations, and
// the pool, index, release and lifecycle packages act on them.
package archive
