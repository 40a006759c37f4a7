// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/atomicfile"
	"github.com/bureau-foundation/aptpublish/lib/codec"
)

// FileName is the journal's name inside the archive meta root.
const FileName = "publisher-journal.cbor"

// state is the on-disk form.
type state struct {
	ArchiveID int64              `cbor:"archive_id"`
	RunID     string             `cbor:"run_id"`
	Stale     []archive.SuiteKey `cbor:"stale"`
	Updated   time.Time          `cbor:"updated"`
}

// Journal is the stale-suite record of one archive. It is not safe
// for concurrent use; one publisher run owns it.
type Journal struct {
	path   string
	logger *slog.Logger
	state  state
}

// Open loads the journal in metaRoot, or starts an empty one when the
// file does not exist. A journal written for a different archive is
// an error: meta roots are never shared.
func Open(metaRoot string, archiveID int64, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	journal := &Journal{
		path:   filepath.Join(metaRoot, FileName),
		logger: logger,
		state:  state{ArchiveID: archiveID},
	}
	var loaded state
	err := codec.ReadFile(journal.path, &loaded)
	if codec.IsNotExist(err) {
		return journal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading publisher journal: %w", err)
	}
	if loaded.ArchiveID != archiveID {
		return nil, fmt.Errorf("publisher journal %s belongs to archive %d, not %d", journal.path, loaded.ArchiveID, archiveID)
	}
	journal.state = loaded
	if len(loaded.Stale) > 0 {
		logger.Info("resuming stale suites from interrupted run",
			"run_id", loaded.RunID, "suites", len(loaded.Stale))
	}
	return journal, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// RunID returns the run that last wrote the journal.
func (j *Journal) RunID() string { return j.state.RunID }

// Stale returns the recorded suites in name order.
func (j *Journal) Stale() []archive.SuiteKey {
	return slices.Clone(j.state.Stale)
}

// Contains reports whether suite is recorded as stale.
func (j *Journal) Contains(suite archive.SuiteKey) bool {
	return slices.Contains(j.state.Stale, suite)
}

// Record adds suites to the stale set and writes the journal. Nothing
// is written when every suite is already recorded.
func (j *Journal) Record(runID string, suites []archive.SuiteKey, at time.Time) error {
	added := false
	for _, suite := range suites {
		if !j.Contains(suite) {
			j.state.Stale = append(j.state.Stale, suite)
			added = true
		}
	}
	if !added {
		return nil
	}
	slices.SortFunc(j.state.Stale, compareSuites)
	j.state.RunID = runID
	j.state.Updated = at
	return j.save()
}

// Clear removes suite from the stale set. The file is deleted when the
// set becomes empty.
func (j *Journal) Clear(suite archive.SuiteKey, at time.Time) error {
	index := slices.Index(j.state.Stale, suite)
	if index < 0 {
		return nil
	}
	j.state.Stale = slices.Delete(j.state.Stale, index, index+1)
	j.state.Updated = at
	return j.save()
}

func (j *Journal) save() error {
	if len(j.state.Stale) == 0 {
		if err := atomicfile.RemoveIfExists(j.path); err != nil {
			return fmt.Errorf("removing publisher journal: %w", err)
		}
		j.logger.Debug("publisher journal cleared", "path", j.path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("creating meta root: %w", err)
	}
	if err := codec.WriteFile(j.path, j.state, 0644); err != nil {
		return fmt.Errorf("writing publisher journal: %w", err)
	}
	return nil
}

func compareSuites(a, b archive.SuiteKey) int {
	if c := strings.Compare(a.Series, b.Series); c != 0 {
		return c
	}
	return cmp.Compare(a.Pocket, b.Pocket)
}
