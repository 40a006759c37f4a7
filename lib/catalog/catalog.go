// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
)

// ErrNotFound is returned when a publication or archive ID is unknown.
var ErrNotFound = errors.New("not found")

// Catalog is the publication source and sink of the publisher.
type Catalog interface {
	Sources(ctx context.Context, query Query) ([]archive.SourcePublication, error)
	Binaries(ctx context.Context, query Query) ([]archive.BinaryPublication, error)

	// SetPublished marks a publication published. DatePublished is set
	// only the first time.
	SetPublished(ctx context.Context, kind archive.Kind, id int64, at time.Time) error

	// RequestDeletion moves live publications to Deleted and records
	// who removed them and why.
	RequestDeletion(ctx context.Context, kind archive.Kind, ids []int64, removedBy, comment string, at time.Time) error

	// StampRemoved records that the publications' files are gone.
	StampRemoved(ctx context.Context, kind archive.Kind, ids []int64, at time.Time) error

	ArchiveState(ctx context.Context, archiveID int64) (ArchiveState, bool, error)
	SaveArchiveState(ctx context.Context, state ArchiveState) error

	// ArchiveNameTaken reports whether any persisted archive state
	// uses (distribution, owner, name).
	ArchiveNameTaken(ctx context.Context, distribution, owner, name string) (bool, error)
}

// Loader accepts new publications. Both implementations satisfy it.
type Loader interface {
	AddSource(ctx context.Context, pub *archive.SourcePublication) error
	AddBinary(ctx context.Context, pub *archive.BinaryPublication) error
}

// ArchiveState is the part of an archive that changes at runtime and
// overrides the configuration: deleting a PPA renames it and turns
// publishing off.
type ArchiveState struct {
	ArchiveID    int64          `yaml:"archive_id"`
	Distribution string         `yaml:"distribution"`
	Owner        string         `yaml:"owner"`
	Name         string         `yaml:"name"`
	Status       archive.Status `yaml:"status"`
	Publish      bool           `yaml:"publish"`
}

// Query selects publications. Zero-valued fields do not filter.
type Query struct {
	ArchiveID int64
	Series    string
	Pocket    archive.Pocket
	Component string

	// Architecture filters binaries by the binary-<arch> tree they
	// belong to. Ignored for sources.
	Architecture string

	Statuses []archive.PublicationStatus

	// NotRemoved excludes publications with DateRemoved set.
	NotRemoved bool

	// ScheduledBefore, when set, keeps only publications whose
	// ScheduledDeletionDate is set and not after it.
	ScheduledBefore time.Time
}

// SuiteQuery returns a query for one suite of an archive.
func SuiteQuery(archiveID int64, suite archive.SuiteKey, statuses ...archive.PublicationStatus) Query {
	return Query{ArchiveID: archiveID, Series: suite.Series, Pocket: suite.Pocket, Statuses: statuses}
}

func (q Query) matches(pub *archive.Publication) bool {
	if q.ArchiveID != 0 && pub.ArchiveID != q.ArchiveID {
		return false
	}
	if q.Series != "" && pub.Series != q.Series {
		return false
	}
	if q.Pocket != 0 && pub.Pocket != q.Pocket {
		return false
	}
	if q.Component != "" && pub.Component != q.Component {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, pub.Status) {
		return false
	}
	if q.NotRemoved && pub.Removed() {
		return false
	}
	if !q.ScheduledBefore.IsZero() {
		if pub.ScheduledDeletionDate.IsZero() || pub.ScheduledDeletionDate.After(q.ScheduledBefore) {
			return false
		}
	}
	return true
}
