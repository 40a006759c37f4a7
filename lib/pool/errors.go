// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"errors"
	"fmt"
)

// ErrConflict matches every *ConflictError via errors.Is.
var ErrConflict = errors.New("pool conflict")

// ConflictError reports that a pool path is already occupied by
// different content. The pool is left untouched.
type ConflictError struct {
	Path     string
	Existing ContentHash
	Incoming ContentHash
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists with different content (existing %s, incoming %s)",
		e.Path, e.Existing, e.Incoming)
}

// Is makes errors.Is(err, ErrConflict) true.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ChecksumError reports that content did not match the size or
// digests recorded for it.
type ChecksumError struct {
	Filename string
	Field    string
	Want     string
	Got      string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: recorded %s, content has %s", e.Filename, e.Field, e.Want, e.Got)
}
