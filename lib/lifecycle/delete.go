// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
)

// ErrNotPPA is returned by DeleteArchive for archives other than PPAs.
var ErrNotPPA = errors.New("only PPAs can be deleted")

// Janitor is recorded as the remover of publications deleted with
// their archive.
const Janitor = "janitor"

// DeletionComment is the removal comment of publications deleted with
// their archive.
const DeletionComment = "Removed when deleting archive"

// deletedSuffix is appended to the name of a deleted PPA so that the
// original name can be reused.
const deletedSuffix = "-deletedppa"

// DeleteArchive removes a PPA from disk and retires it in the
// catalog: its live publications are deleted, every publication is
// stamped removed (the files are gone already), and the archive is
// renamed to the first free "<name>-deletedppa[N]" with publishing
// turned off. a is updated in place.
//
// Deleting an already deleted archive only removes leftover
// directories and succeeds.
func DeleteArchive(ctx context.Context, a *archive.Archive, cat catalog.Catalog, now time.Time, logger *slog.Logger) error {
	if !a.IsPPA() {
		return fmt.Errorf("%s: %w", a.Reference(), ErrNotPPA)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("archive", a.Reference())

	if a.Status == archive.ArchiveDeleted {
		removeTrees(a, logger)
		return nil
	}

	a.Status = archive.ArchiveDeleting
	if err := cat.SaveArchiveState(ctx, stateOf(a)); err != nil {
		return fmt.Errorf("marking %s deleting: %w", a.Reference(), err)
	}

	live := catalog.Query{ArchiveID: a.ID, Statuses: []archive.PublicationStatus{archive.Pending, archive.Published}}
	sourceIDs, binaryIDs, err := publicationIDs(ctx, cat, live)
	if err != nil {
		return err
	}
	if err := cat.RequestDeletion(ctx, archive.SourceKind, sourceIDs, Janitor, DeletionComment, now); err != nil {
		return fmt.Errorf("deleting sources: %w", err)
	}
	if err := cat.RequestDeletion(ctx, archive.BinaryKind, binaryIDs, Janitor, DeletionComment, now); err != nil {
		return fmt.Errorf("deleting binaries: %w", err)
	}

	sourceIDs, binaryIDs, err = publicationIDs(ctx, cat, catalog.Query{ArchiveID: a.ID, NotRemoved: true})
	if err != nil {
		return err
	}
	if err := cat.StampRemoved(ctx, archive.SourceKind, sourceIDs, now); err != nil {
		return fmt.Errorf("stamping sources removed: %w", err)
	}
	if err := cat.StampRemoved(ctx, archive.BinaryKind, binaryIDs, now); err != nil {
		return fmt.Errorf("stamping binaries removed: %w", err)
	}

	removeTrees(a, logger)

	name, err := freeDeletedName(ctx, a, cat)
	if err != nil {
		return err
	}
	logger.Info("archive deleted", "renamed_to", name,
		"sources", len(sourceIDs), "binaries", len(binaryIDs))
	a.Status = archive.ArchiveDeleted
	a.Publish = false
	a.Name = name
	if err := cat.SaveArchiveState(ctx, stateOf(a)); err != nil {
		return fmt.Errorf("saving deleted state of %s: %w", a.Reference(), err)
	}
	return nil
}

func stateOf(a *archive.Archive) catalog.ArchiveState {
	return catalog.ArchiveState{
		ArchiveID:    a.ID,
		Distribution: a.Distribution.Name,
		Owner:        a.Owner,
		Name:         a.Name,
		Status:       a.Status,
		Publish:      a.Publish,
	}
}

func publicationIDs(ctx context.Context, cat catalog.Catalog, query catalog.Query) (sources, binaries []int64, err error) {
	sourcePubs, err := cat.Sources(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("listing sources: %w", err)
	}
	binaryPubs, err := cat.Binaries(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("listing binaries: %w", err)
	}
	for _, pub := range sourcePubs {
		sources = append(sources, pub.ID)
	}
	for _, pub := range binaryPubs {
		binaries = append(binaries, pub.ID)
	}
	return sources, binaries, nil
}

// removeTrees removes the housing and meta roots. Failures are logged:
// the catalog update must go ahead regardless.
func removeTrees(a *archive.Archive, logger *slog.Logger) {
	for _, dir := range []string{a.Paths.HousingRoot, a.Paths.MetaRoot} {
		if dir == "" {
			continue
		}
		if _, err := os.Lstat(dir); errors.Is(err, os.ErrNotExist) {
			continue
		}
		logger.Debug("removing archive directory", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("removing archive directory failed", "dir", dir, "error", err)
		}
	}
}

func freeDeletedName(ctx context.Context, a *archive.Archive, cat catalog.Catalog) (string, error) {
	base := a.Name + deletedSuffix
	for n := 0; ; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s%d", base, n)
		}
		taken, err := cat.ArchiveNameTaken(ctx, a.Distribution.Name, a.Owner, candidate)
		if err != nil {
			return "", fmt.Errorf("checking archive name %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
}
