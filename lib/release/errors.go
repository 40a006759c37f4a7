// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import "fmt"

// SigningError reports that a suite's Release was written but could
// not be signed. It is a warning: the unsigned Release stays published
// and any stale Release.gpg has been removed.
type SigningError struct {
	Suite     string
	KeyHandle string
	Err       error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing Release of %s with %s: %v", e.Suite, e.KeyHandle, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }
