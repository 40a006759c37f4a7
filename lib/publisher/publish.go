// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
	"github.com/bureau-foundation/aptpublish/lib/pool"
)

// PublishPending is phase A. It places the files of every pending
// publication (and in careful mode every published one) in the pool,
// marks the publication published and its suite dirty.
func (p *Publisher) PublishPending(ctx context.Context, careful bool) error {
	statuses := []archive.PublicationStatus{archive.Pending}
	if careful {
		statuses = append(statuses, archive.Published)
	}

	for _, ref := range p.suites(p.archive.ConsiderSeries()) {
		query := catalog.SuiteQuery(p.archive.ID, ref.key, statuses...)
		sources, err := p.catalog.Sources(ctx, query)
		if err != nil {
			return fmt.Errorf("listing sources of %s: %w", ref.name(), err)
		}
		binaries, err := p.catalog.Binaries(ctx, query)
		if err != nil {
			return fmt.Errorf("listing binaries of %s: %w", ref.name(), err)
		}
		if len(sources) == 0 && len(binaries) == 0 {
			continue
		}

		if !careful && p.archive.CannotModifySuite(ref.series, ref.pocket) {
			p.rejectFrozen(ref, sources, binaries)
			continue
		}

		for i := range sources {
			p.publishSource(ctx, ref, &sources[i])
		}
		for i := range binaries {
			p.publishBinary(ctx, ref, &binaries[i])
		}
	}
	return nil
}

// rejectFrozen reports every publication aimed at a frozen suite
// without touching the pool.
func (p *Publisher) rejectFrozen(ref suiteRef, sources []archive.SourcePublication, binaries []archive.BinaryPublication) {
	stateErr := &SuiteStateError{Suite: ref.name(), Reason: "RELEASE pocket of a stable series"}
	for i := range sources {
		p.fail(sourceError(&sources[i], stateErr))
	}
	for i := range binaries {
		p.fail(binaryError(&binaries[i], stateErr))
	}
}

func (p *Publisher) fail(err *PublicationError) {
	p.logger.Error("publication failed",
		"kind", err.Kind.String(), "id", err.ID, "package", err.Name,
		"version", err.Version, "suite", err.Suite, "error", err.Err)
	p.report.Errors = append(p.report.Errors, err)
}

func expectOf(file archive.PackageFile) pool.Expect {
	return pool.Expect{Size: file.Size, MD5: file.MD5, SHA1: file.SHA1, SHA256: file.SHA256}
}

func (p *Publisher) publishSource(ctx context.Context, ref suiteRef, pub *archive.SourcePublication) {
	for _, file := range pub.Files {
		entry, err := p.pool.AddFile(pub.Component, pub.Name, file.Filename, file, expectOf(file))
		if err != nil {
			p.fail(sourceError(pub, err))
			return
		}
		p.logger.Debug("pool file placed", "path", entry.Path, "result", entry.Result.String())
	}
	p.accept(ctx, ref, archive.SourceKind, &pub.Publication, func(err error) *PublicationError {
		return sourceError(pub, err)
	})
}

func (p *Publisher) publishBinary(ctx context.Context, ref suiteRef, pub *archive.BinaryPublication) {
	if pub.Format == archive.DDEB && !p.archive.PublishDebugSymbols {
		p.logger.Debug("debug symbols not published for this archive", "package", pub.Name, "version", pub.Version)
	} else {
		entry, err := p.pool.AddFile(pub.Component, poolSourceName(pub), pub.File.Filename, pub.File, expectOf(pub.File))
		if err != nil {
			p.fail(binaryError(pub, err))
			return
		}
		p.logger.Debug("pool file placed", "path", entry.Path, "result", entry.Result.String())
	}
	p.accept(ctx, ref, archive.BinaryKind, &pub.Publication, func(err error) *PublicationError {
		return binaryError(pub, err)
	})
}

// accept records a placed publication as published and dirties its
// suite.
func (p *Publisher) accept(ctx context.Context, ref suiteRef, kind archive.Kind, pub *archive.Publication, wrap func(error) *PublicationError) {
	if pub.Status != archive.Published {
		if err := p.catalog.SetPublished(ctx, kind, pub.ID, p.clock.Now()); err != nil {
			p.fail(wrap(fmt.Errorf("marking published: %w", err)))
			return
		}
		p.report.Published++
	}
	p.markDirty(ref.key)
}

// poolSourceName is the pool directory a binary's file lives under.
func poolSourceName(pub *archive.BinaryPublication) string {
	if pub.SourceName != "" {
		return pub.SourceName
	}
	return pub.Name
}

// MarkDeletionsDirty is phase A2. Suites with superseded or deleted
// publications whose files are still on disk become dirty so that
// later tooling sees them. Frozen suites are left alone: a removal
// alone must not rebuild a stable RELEASE pocket.
func (p *Publisher) MarkDeletionsDirty(ctx context.Context) error {
	for _, ref := range p.suites(p.archive.Distribution.Series) {
		if p.dirty[ref.key] || p.archive.CannotModifySuite(ref.series, ref.pocket) {
			continue
		}
		query := catalog.SuiteQuery(p.archive.ID, ref.key, archive.Superseded, archive.Deleted)
		query.NotRemoved = true
		sources, err := p.catalog.Sources(ctx, query)
		if err != nil {
			return fmt.Errorf("listing removals in %s: %w", ref.name(), err)
		}
		if len(sources) > 0 {
			p.markDirty(ref.key)
			continue
		}
		binaries, err := p.catalog.Binaries(ctx, query)
		if err != nil {
			return fmt.Errorf("listing removals in %s: %w", ref.name(), err)
		}
		if len(binaries) > 0 {
			p.markDirty(ref.key)
		}
	}
	return nil
}

// Dominate is phase B. Without a Dominator it does nothing.
func (p *Publisher) Dominate(ctx context.Context, careful bool) error {
	if p.dominator == nil {
		return nil
	}
	for _, ref := range p.suites(p.archive.Distribution.Series) {
		if !careful && !p.dirty[ref.key] {
			continue
		}
		if err := p.dominator.Dominate(ctx, p.archive, ref.key); err != nil {
			p.logger.Error("domination failed", "suite", ref.name(), "error", err)
			p.report.Errors = append(p.report.Errors, fmt.Errorf("dominating %s: %w", ref.name(), err))
		}
	}
	return nil
}
