// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"fmt"

	"github.com/bureau-foundation/aptpublish/lib/archive"
)

// SuiteStateError reports an attempt to change a suite the archive's
// policy freezes, such as the RELEASE pocket of a current series in a
// primary archive.
type SuiteStateError struct {
	Suite  string
	Reason string
}

func (e *SuiteStateError) Error() string {
	return fmt.Sprintf("cannot modify suite %s: %s", e.Suite, e.Reason)
}

// PublicationError is the failure of one publication. The publication
// keeps its previous status and is retried by the next run.
type PublicationError struct {
	Kind    archive.Kind
	ID      int64
	Name    string
	Version string
	Suite   string
	Err     error
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("%v publication %d (%s %s) in %s: %v", e.Kind, e.ID, e.Name, e.Version, e.Suite, e.Err)
}

func (e *PublicationError) Unwrap() error { return e.Err }

func sourceError(pub *archive.SourcePublication, err error) *PublicationError {
	return &PublicationError{
		Kind:    archive.SourceKind,
		ID:      pub.ID,
		Name:    pub.Name,
		Version: pub.Version,
		Suite:   pub.Suite().Name(),
		Err:     err,
	}
}

func binaryError(pub *archive.BinaryPublication, err error) *PublicationError {
	return &PublicationError{
		Kind:    archive.BinaryKind,
		ID:      pub.ID,
		Name:    pub.Name,
		Version: pub.Version,
		Suite:   pub.Suite().Name(),
		Err:     err,
	}
}
