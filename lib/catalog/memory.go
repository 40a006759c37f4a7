// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
)

// Memory is an in-memory Catalog.
type Memory struct {
	mu       sync.Mutex
	sources  map[int64]*archive.SourcePublication
	binaries map[int64]*archive.BinaryPublication
	archives map[int64]ArchiveState
	nextID   int64
}

// NewMemory returns an empty Memory catalog.
func NewMemory() *Memory {
	return &Memory{
		sources:  make(map[int64]*archive.SourcePublication),
		binaries: make(map[int64]*archive.BinaryPublication),
		archives: make(map[int64]ArchiveState),
	}
}

func (m *Memory) assignID(id *int64) {
	if *id == 0 {
		m.nextID++
		*id = m.nextID
	} else if *id > m.nextID {
		m.nextID = *id
	}
}

// AddSource stores a copy of pub, assigning an ID when pub.ID is zero.
func (m *Memory) AddSource(_ context.Context, pub *archive.SourcePublication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignID(&pub.ID)
	stored := *pub
	m.sources[pub.ID] = &stored
	return nil
}

// AddBinary stores a copy of pub, assigning an ID when pub.ID is zero.
func (m *Memory) AddBinary(_ context.Context, pub *archive.BinaryPublication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignID(&pub.ID)
	stored := *pub
	m.binaries[pub.ID] = &stored
	return nil
}

// Source returns a copy of one source publication.
func (m *Memory) Source(id int64) (archive.SourcePublication, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pub, ok := m.sources[id]
	if !ok {
		return archive.SourcePublication{}, false
	}
	return *pub, true
}

// Binary returns a copy of one binary publication.
func (m *Memory) Binary(id int64) (archive.BinaryPublication, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pub, ok := m.binaries[id]
	if !ok {
		return archive.BinaryPublication{}, false
	}
	return *pub, true
}

// UpdateSource applies fn to a stored source publication. Tests use it
// to stand in for domination.
func (m *Memory) UpdateSource(id int64, fn func(*archive.SourcePublication)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pub, ok := m.sources[id]
	if !ok {
		return fmt.Errorf("source publication %d: %w", id, ErrNotFound)
	}
	fn(pub)
	return nil
}

// UpdateBinary applies fn to a stored binary publication.
func (m *Memory) UpdateBinary(id int64, fn func(*archive.BinaryPublication)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pub, ok := m.binaries[id]
	if !ok {
		return fmt.Errorf("binary publication %d: %w", id, ErrNotFound)
	}
	fn(pub)
	return nil
}

// Sources implements Catalog.
func (m *Memory) Sources(_ context.Context, query Query) ([]archive.SourcePublication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []archive.SourcePublication
	for _, pub := range m.sources {
		if query.matches(&pub.Publication) {
			result = append(result, *pub)
		}
	}
	slices.SortFunc(result, func(a, b archive.SourcePublication) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

// Binaries implements Catalog.
func (m *Memory) Binaries(_ context.Context, query Query) ([]archive.BinaryPublication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []archive.BinaryPublication
	for _, pub := range m.binaries {
		if !query.matches(&pub.Publication) {
			continue
		}
		if query.Architecture != "" && pub.Architecture != query.Architecture {
			continue
		}
		result = append(result, *pub)
	}
	slices.SortFunc(result, func(a, b archive.BinaryPublication) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

// publication returns the shared fields of a stored publication.
func (m *Memory) publication(kind archive.Kind, id int64) (*archive.Publication, error) {
	switch kind {
	case archive.SourceKind:
		if pub, ok := m.sources[id]; ok {
			return &pub.Publication, nil
		}
	case archive.BinaryKind:
		if pub, ok := m.binaries[id]; ok {
			return &pub.Publication, nil
		}
	default:
		return nil, fmt.Errorf("unknown publication kind %v", kind)
	}
	return nil, fmt.Errorf("%v publication %d: %w", kind, id, ErrNotFound)
}

// SetPublished implements Catalog.
func (m *Memory) SetPublished(_ context.Context, kind archive.Kind, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pub, err := m.publication(kind, id)
	if err != nil {
		return err
	}
	pub.Status = archive.Published
	if pub.DatePublished.IsZero() {
		pub.DatePublished = at
	}
	return nil
}

// RequestDeletion implements Catalog.
func (m *Memory) RequestDeletion(_ context.Context, kind archive.Kind, ids []int64, removedBy, comment string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		pub, err := m.publication(kind, id)
		if err != nil {
			return err
		}
		if !pub.Status.Live() {
			continue
		}
		pub.Status = archive.Deleted
		pub.RemovedBy = removedBy
		pub.RemovalComment = comment
		if pub.ScheduledDeletionDate.IsZero() {
			pub.ScheduledDeletionDate = at
		}
	}
	return nil
}

// StampRemoved implements Catalog.
func (m *Memory) StampRemoved(_ context.Context, kind archive.Kind, ids []int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		pub, err := m.publication(kind, id)
		if err != nil {
			return err
		}
		pub.DateRemoved = at
	}
	return nil
}

// ArchiveState implements Catalog.
func (m *Memory) ArchiveState(_ context.Context, archiveID int64) (ArchiveState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.archives[archiveID]
	return state, ok, nil
}

// SaveArchiveState implements Catalog.
func (m *Memory) SaveArchiveState(_ context.Context, state ArchiveState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[state.ArchiveID] = state
	return nil
}

// ArchiveNameTaken implements Catalog.
func (m *Memory) ArchiveNameTaken(_ context.Context, distribution, owner, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, state := range m.archives {
		if state.Distribution == distribution && state.Owner == owner && state.Name == name {
			return true, nil
		}
	}
	return false, nil
}
