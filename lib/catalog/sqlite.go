// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/codec"
	"github.com/bureau-foundation/aptpublish/lib/sqlitepool"
)

// migrations is the catalog schema history. Append only.
var migrations = []string{
	`
CREATE TABLE publications (
	kind                    TEXT    NOT NULL CHECK (kind IN ('source', 'binary')),
	id                      INTEGER NOT NULL,
	archive_id              INTEGER NOT NULL,
	series                  TEXT    NOT NULL,
	pocket                  TEXT    NOT NULL,
	component               TEXT    NOT NULL,
	architecture            TEXT    NOT NULL DEFAULT '',
	name                    TEXT    NOT NULL,
	version                 TEXT    NOT NULL,
	status                  TEXT    NOT NULL,
	date_published          INTEGER,
	date_removed            INTEGER,
	scheduled_deletion_date INTEGER,
	removed_by              TEXT    NOT NULL DEFAULT '',
	removal_comment         TEXT    NOT NULL DEFAULT '',
	metadata                BLOB    NOT NULL,
	PRIMARY KEY (kind, id)
);

CREATE INDEX publications_suite
	ON publications (archive_id, series, pocket, status);

CREATE INDEX publications_death_row
	ON publications (archive_id, scheduled_deletion_date)
	WHERE date_removed IS NULL;

CREATE TABLE archive_states (
	archive_id   INTEGER PRIMARY KEY,
	distribution TEXT    NOT NULL,
	owner        TEXT    NOT NULL,
	name         TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	publish      INTEGER NOT NULL
);
`,
}

// Store is a Catalog backed by SQLite.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       path,
		Migrations: migrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.pool.Close() }

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().UnixNano()
}

func columnTime(stmt *sqlite.Stmt, column int) time.Time {
	if stmt.ColumnIsNull(column) {
		return time.Time{}
	}
	return time.Unix(0, stmt.ColumnInt64(column)).UTC()
}

func kindName(kind archive.Kind) (string, error) {
	switch kind {
	case archive.SourceKind, archive.BinaryKind:
		return kind.String(), nil
	default:
		return "", fmt.Errorf("unknown publication kind %v", kind)
	}
}

const insertPublication = `
INSERT OR REPLACE INTO publications (
	kind, id, archive_id, series, pocket, component, architecture,
	name, version, status, date_published, date_removed,
	scheduled_deletion_date, removed_by, removal_comment, metadata
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) insert(ctx context.Context, kind archive.Kind, id *int64, pub *archive.Publication, architecture, name, version string, metadata any) error {
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if *id == 0 {
			err := sqlitex.Execute(conn, "SELECT coalesce(max(id), 0) + 1 FROM publications WHERE kind = ?", &sqlitex.ExecOptions{
				Args: []any{kind.String()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					*id = stmt.ColumnInt64(0)
					return nil
				},
			})
			if err != nil {
				return fmt.Errorf("allocating %v publication ID: %w", kind, err)
			}
			pub.ID = *id
		}
		blob, err := codec.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encoding %v publication %d: %w", kind, *id, err)
		}
		return sqlitex.Execute(conn, insertPublication, &sqlitex.ExecOptions{
			Args: []any{
				kind.String(), *id, pub.ArchiveID, pub.Series, pub.Pocket.String(),
				pub.Component, architecture, name, version, pub.Status.String(),
				nullableTime(pub.DatePublished), nullableTime(pub.DateRemoved),
				nullableTime(pub.ScheduledDeletionDate), pub.RemovedBy,
				pub.RemovalComment, blob,
			},
		})
	})
}

// AddSource stores pub, assigning an ID when pub.ID is zero.
func (s *Store) AddSource(ctx context.Context, pub *archive.SourcePublication) error {
	return s.insert(ctx, archive.SourceKind, &pub.ID, &pub.Publication, "", pub.Name, pub.Version, pub)
}

// AddBinary stores pub, assigning an ID when pub.ID is zero.
func (s *Store) AddBinary(ctx context.Context, pub *archive.BinaryPublication) error {
	return s.insert(ctx, archive.BinaryKind, &pub.ID, &pub.Publication, pub.Architecture, pub.Name, pub.Version, pub)
}

// where renders the WHERE clause of a query.
func (q Query) where(kind archive.Kind) (string, []any) {
	clauses := []string{"kind = ?"}
	args := []any{kind.String()}
	add := func(clause string, values ...any) {
		clauses = append(clauses, clause)
		args = append(args, values...)
	}
	if q.ArchiveID != 0 {
		add("archive_id = ?", q.ArchiveID)
	}
	if q.Series != "" {
		add("series = ?", q.Series)
	}
	if q.Pocket != 0 {
		add("pocket = ?", q.Pocket.String())
	}
	if q.Component != "" {
		add("component = ?", q.Component)
	}
	if q.Architecture != "" && kind == archive.BinaryKind {
		add("architecture = ?", q.Architecture)
	}
	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		values := make([]any, len(q.Statuses))
		for i, status := range q.Statuses {
			placeholders[i] = "?"
			values[i] = status.String()
		}
		add("status IN ("+strings.Join(placeholders, ", ")+")", values...)
	}
	if q.NotRemoved {
		add("date_removed IS NULL")
	}
	if !q.ScheduledBefore.IsZero() {
		add("scheduled_deletion_date IS NOT NULL AND scheduled_deletion_date <= ?", q.ScheduledBefore.UTC().UnixNano())
	}
	return strings.Join(clauses, " AND "), args
}

const selectColumns = `status, date_published, date_removed, scheduled_deletion_date,
	removed_by, removal_comment, metadata`

// overlay copies the mutable columns over the decoded metadata.
func overlay(stmt *sqlite.Stmt, pub *archive.Publication) error {
	status, err := archive.ParsePublicationStatus(stmt.ColumnText(0))
	if err != nil {
		return err
	}
	pub.Status = status
	pub.DatePublished = columnTime(stmt, 1)
	pub.DateRemoved = columnTime(stmt, 2)
	pub.ScheduledDeletionDate = columnTime(stmt, 3)
	pub.RemovedBy = stmt.ColumnText(4)
	pub.RemovalComment = stmt.ColumnText(5)
	return nil
}

func metadataBytes(stmt *sqlite.Stmt) []byte {
	blob := make([]byte, stmt.ColumnLen(6))
	stmt.ColumnBytes(6, blob)
	return blob
}

// Sources implements Catalog.
func (s *Store) Sources(ctx context.Context, query Query) ([]archive.SourcePublication, error) {
	where, args := query.where(archive.SourceKind)
	var result []archive.SourcePublication
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT "+selectColumns+" FROM publications WHERE "+where+" ORDER BY id", &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var pub archive.SourcePublication
				if err := codec.Unmarshal(metadataBytes(stmt), &pub); err != nil {
					return fmt.Errorf("decoding source metadata: %w", err)
				}
				if err := overlay(stmt, &pub.Publication); err != nil {
					return err
				}
				result = append(result, pub)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	return result, nil
}

// Binaries implements Catalog.
func (s *Store) Binaries(ctx context.Context, query Query) ([]archive.BinaryPublication, error) {
	where, args := query.where(archive.BinaryKind)
	var result []archive.BinaryPublication
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT "+selectColumns+" FROM publications WHERE "+where+" ORDER BY id", &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var pub archive.BinaryPublication
				if err := codec.Unmarshal(metadataBytes(stmt), &pub); err != nil {
					return fmt.Errorf("decoding binary metadata: %w", err)
				}
				if err := overlay(stmt, &pub.Publication); err != nil {
					return err
				}
				result = append(result, pub)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("querying binaries: %w", err)
	}
	return result, nil
}

// update runs statement once per ID and fails with ErrNotFound when an
// ID matches no publication.
func (s *Store) update(ctx context.Context, kind archive.Kind, ids []int64, statement string, args ...any) error {
	name, err := kindName(kind)
	if err != nil {
		return err
	}
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		for _, id := range ids {
			var exists bool
			err := sqlitex.Execute(conn, "SELECT 1 FROM publications WHERE kind = ? AND id = ?", &sqlitex.ExecOptions{
				Args: []any{name, id},
				ResultFunc: func(*sqlite.Stmt) error {
					exists = true
					return nil
				},
			})
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%v publication %d: %w", kind, id, ErrNotFound)
			}
			if err := sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
				Args: append(append([]any{}, args...), name, id),
			}); err != nil {
				return fmt.Errorf("updating %v publication %d: %w", kind, id, err)
			}
		}
		return nil
	})
}

// SetPublished implements Catalog.
func (s *Store) SetPublished(ctx context.Context, kind archive.Kind, id int64, at time.Time) error {
	return s.update(ctx, kind, []int64{id},
		`UPDATE publications SET status = ?, date_published = coalesce(date_published, ?)
		 WHERE kind = ? AND id = ?`,
		archive.Published.String(), nullableTime(at))
}

// RequestDeletion implements Catalog.
func (s *Store) RequestDeletion(ctx context.Context, kind archive.Kind, ids []int64, removedBy, comment string, at time.Time) error {
	return s.update(ctx, kind, ids,
		`UPDATE publications
		 SET status = ?, removed_by = ?, removal_comment = ?,
		     scheduled_deletion_date = coalesce(scheduled_deletion_date, ?)
		 WHERE status IN ('pending', 'published') AND kind = ? AND id = ?`,
		archive.Deleted.String(), removedBy, comment, nullableTime(at))
}

// StampRemoved implements Catalog.
func (s *Store) StampRemoved(ctx context.Context, kind archive.Kind, ids []int64, at time.Time) error {
	return s.update(ctx, kind, ids,
		`UPDATE publications SET date_removed = ? WHERE kind = ? AND id = ?`,
		nullableTime(at))
}

// ArchiveState implements Catalog.
func (s *Store) ArchiveState(ctx context.Context, archiveID int64) (ArchiveState, bool, error) {
	var state ArchiveState
	var found bool
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT distribution, owner, name, status, publish FROM archive_states WHERE archive_id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{archiveID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					status, err := archive.ParseStatus(stmt.ColumnText(3))
					if err != nil {
						return err
					}
					state = ArchiveState{
						ArchiveID:    archiveID,
						Distribution: stmt.ColumnText(0),
						Owner:        stmt.ColumnText(1),
						Name:         stmt.ColumnText(2),
						Status:       status,
						Publish:      stmt.ColumnInt(4) != 0,
					}
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return ArchiveState{}, false, fmt.Errorf("reading state of archive %d: %w", archiveID, err)
	}
	return state, found, nil
}

// SaveArchiveState implements Catalog.
func (s *Store) SaveArchiveState(ctx context.Context, state ArchiveState) error {
	publish := 0
	if state.Publish {
		publish = 1
	}
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT OR REPLACE INTO archive_states (archive_id, distribution, owner, name, status, publish)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{state.ArchiveID, state.Distribution, state.Owner, state.Name, state.Status.String(), publish},
			})
	})
}

// ArchiveNameTaken implements Catalog.
func (s *Store) ArchiveNameTaken(ctx context.Context, distribution, owner, name string) (bool, error) {
	var taken bool
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT 1 FROM archive_states WHERE distribution = ? AND owner = ? AND name = ? LIMIT 1`,
			&sqlitex.ExecOptions{
				Args: []any{distribution, owner, name},
				ResultFunc: func(*sqlite.Stmt) error {
					taken = true
					return nil
				},
			})
	})
	return taken, err
}
