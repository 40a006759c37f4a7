// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package publisher runs the publishing pipeline of one archive.
//
// A run moves through fixed phases:
//
//   - A: place the files of pending publications in the pool and mark
//     them published, collecting the suites that changed (the dirty
//     set).
//   - A2: add suites with publications awaiting removal to the dirty
//     set.
//   - B: hand each dirty suite to an optional Dominator.
//   - C: regenerate Sources, Packages and Translation-en for every
//     dirty suite.
//   - D: write the Release file of every suite phase C touched, sign
//     it and synchronise timestamps.
//
// Each phase can be repeated safely. Between phases A and C the dirty
// set is recorded in the run journal (package journal), so a run
// interrupted after A still regenerates those suites next time even
// though the catalog already reports their publications as published.
//
// Failures of a single publication or suite are collected in the
// Report and never stop independent work. Careful mode reprocesses
// everything instead of only what changed and is used to repair an
// archive.
//
// ProcessDeathRow is separate from the phases: it removes pool files
// of publications whose scheduled deletion date has passed.
package publisher
