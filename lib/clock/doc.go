// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Anything that stamps a time into the archive (the Release Date
// field, datepublished and dateremoved on publications, the journal's
// update time) takes a Clock instead of calling time.Now directly:
//
//	publisher.New(publisher.Config{Clock: clock.Real(), ...})
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	c.Advance(24 * time.Hour)
package clock
