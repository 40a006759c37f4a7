// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
)

// DeathRowReport is the outcome of ProcessDeathRow.
type DeathRowReport struct {
	// Condemned counts publications past their scheduled deletion.
	Condemned int
	// Removed counts pool files removed; Kept counts files left in
	// place because another publication still uses them.
	Removed int
	Kept    int
	// Stamped counts publications whose DateRemoved was set.
	Stamped int
	Errors  []error
}

type poolFile struct {
	component, source, filename string
}

// condemned is one publication whose files are about to go.
type condemned struct {
	kind  archive.Kind
	id    int64
	files []poolFile
}

func sourceFiles(pub *archive.SourcePublication) []poolFile {
	files := make([]poolFile, 0, len(pub.Files))
	for _, file := range pub.Files {
		files = append(files, poolFile{pub.Component, pub.Name, file.Filename})
	}
	return files
}

func binaryFiles(pub *archive.BinaryPublication) []poolFile {
	return []poolFile{{pub.Component, poolSourceName(pub), pub.File.Filename}}
}

// ProcessDeathRow removes the pool files of superseded, deleted and
// obsolete publications whose scheduled deletion date is not after
// now, and stamps their DateRemoved. A file still used by any other
// publication that is not itself due for removal stays in the pool.
func (p *Publisher) ProcessDeathRow(ctx context.Context, now time.Time) (DeathRowReport, error) {
	var report DeathRowReport
	query := catalog.Query{ArchiveID: p.archive.ID, NotRemoved: true}
	sources, err := p.catalog.Sources(ctx, query)
	if err != nil {
		return report, fmt.Errorf("listing sources: %w", err)
	}
	binaries, err := p.catalog.Binaries(ctx, query)
	if err != nil {
		return report, fmt.Errorf("listing binaries: %w", err)
	}

	due := func(pub *archive.Publication) bool {
		return pub.Status.Removing() && !pub.ScheduledDeletionDate.IsZero() && !pub.ScheduledDeletionDate.After(now)
	}
	inUse := make(map[poolFile]bool)
	var condemnedPubs []condemned
	for i := range sources {
		pub := &sources[i]
		if due(&pub.Publication) {
			condemnedPubs = append(condemnedPubs, condemned{archive.SourceKind, pub.ID, sourceFiles(pub)})
			continue
		}
		for _, file := range sourceFiles(pub) {
			inUse[file] = true
		}
	}
	for i := range binaries {
		pub := &binaries[i]
		if due(&pub.Publication) {
			condemnedPubs = append(condemnedPubs, condemned{archive.BinaryKind, pub.ID, binaryFiles(pub)})
			continue
		}
		for _, file := range binaryFiles(pub) {
			inUse[file] = true
		}
	}
	report.Condemned = len(condemnedPubs)
	if report.Condemned == 0 {
		p.logger.Debug("death row is empty")
		return report, nil
	}

	stamp := map[archive.Kind][]int64{}
	handled := make(map[poolFile]bool)
	for _, pub := range condemnedPubs {
		failed := false
		for _, file := range pub.files {
			if inUse[file] {
				report.Kept++
				continue
			}
			if handled[file] {
				continue
			}
			removed, err := p.pool.RemoveFile(file.component, file.source, file.filename)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("%v publication %d: %w", pub.kind, pub.id, err))
				failed = true
				continue
			}
			handled[file] = true
			if removed {
				report.Removed++
			}
		}
		if !failed {
			stamp[pub.kind] = append(stamp[pub.kind], pub.id)
		}
	}

	for _, kind := range []archive.Kind{archive.SourceKind, archive.BinaryKind} {
		ids := stamp[kind]
		if len(ids) == 0 {
			continue
		}
		if err := p.catalog.StampRemoved(ctx, kind, ids, now); err != nil {
			return report, fmt.Errorf("stamping removed %v publications: %w", kind, err)
		}
		report.Stamped += len(ids)
	}
	p.logger.Info("death row processed",
		"condemned", report.Condemned, "removed", report.Removed,
		"kept", report.Kept, "errors", len(report.Errors))
	return report, nil
}
