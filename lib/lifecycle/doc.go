// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle creates, deletes and maintains the on-disk trees
// of archives outside the publishing phases: directory setup and
// access control for private archives, PPA deletion, and the
// development series alias symlinks under dists/.
package lifecycle
