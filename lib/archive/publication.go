// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Subcomponent directory names.
const (
	SubcomponentInstaller = "debian-installer"
	SubcomponentDebug     = "debug"
)

// Kind distinguishes source from binary publications.
type Kind int

const (
	SourceKind Kind = iota + 1
	BinaryKind
)

func (k Kind) String() string {
	switch k {
	case SourceKind:
		return "source"
	case BinaryKind:
		return "binary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PublicationStatus is the external status of a publication record.
type PublicationStatus int

const (
	Pending PublicationStatus = iota + 1
	Published
	Superseded
	Deleted
	ObsoleteStatus
)

var publicationStatusNames = map[PublicationStatus]string{
	Pending:        "pending",
	Published:      "published",
	Superseded:     "superseded",
	Deleted:        "deleted",
	ObsoleteStatus: "obsolete",
}

func (s PublicationStatus) String() string {
	if name, ok := publicationStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PublicationStatus(%d)", int(s))
}

// Live reports whether the publication should be in the archive.
func (s PublicationStatus) Live() bool { return s == Pending || s == Published }

// Removing reports whether the publication is on its way out.
func (s PublicationStatus) Removing() bool {
	return s == Superseded || s == Deleted || s == ObsoleteStatus
}

// ParsePublicationStatus accepts a status name in any case.
func ParsePublicationStatus(s string) (PublicationStatus, error) {
	for status, name := range publicationStatusNames {
		if strings.EqualFold(s, name) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown publication status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s PublicationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PublicationStatus) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicationStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// BinaryFormat is the package format of a binary.
type BinaryFormat int

const (
	DEB BinaryFormat = iota
	UDEB
	DDEB
)

func (f BinaryFormat) String() string {
	switch f {
	case DEB:
		return "deb"
	case UDEB:
		return "udeb"
	case DDEB:
		return "ddeb"
	default:
		return fmt.Sprintf("BinaryFormat(%d)", int(f))
	}
}

// Subcomponent returns the index subtree the format is published in,
// or "" for the component's own binary-<arch> tree.
func (f BinaryFormat) Subcomponent() string {
	switch f {
	case UDEB:
		return SubcomponentInstaller
	case DDEB:
		return SubcomponentDebug
	default:
		return ""
	}
}

// ParseBinaryFormat accepts "deb", "udeb" or "ddeb".
func ParseBinaryFormat(s string) (BinaryFormat, error) {
	for _, format := range []BinaryFormat{DEB, UDEB, DDEB} {
		if strings.EqualFold(s, format.String()) {
			return format, nil
		}
	}
	return 0, fmt.Errorf("unknown binary format %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f BinaryFormat) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *BinaryFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseBinaryFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Field is a user-defined control field carried through to the index
// stanza after the standard fields.
type Field struct {
	Name  string `yaml:"name" cbor:"name"`
	Value string `yaml:"value" cbor:"value"`
}

// PackageFile is one file of a source upload or the single file of a
// binary. Its bytes come either from Path or, when Path is empty, from
// Data.
type PackageFile struct {
	Filename string `yaml:"filename" cbor:"filename"`
	Size     int64  `yaml:"size" cbor:"size"`
	MD5      string `yaml:"md5" cbor:"md5"`
	SHA1     string `yaml:"sha1" cbor:"sha1"`
	SHA256   string `yaml:"sha256" cbor:"sha256"`

	Path string `yaml:"path,omitempty" cbor:"path,omitempty"`
	Data []byte `yaml:"data,omitempty" cbor:"data,omitempty"`
}

// Open returns a reader over the file's bytes.
func (f PackageFile) Open() (io.ReadCloser, error) {
	if f.Path == "" {
		return io.NopCloser(bytes.NewReader(f.Data)), nil
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening content of %s: %w", f.Filename, err)
	}
	return file, nil
}

// Publication holds the fields shared by source and binary
// publications: where the package goes and where it is in its
// lifecycle. Zero times mean "not set".
type Publication struct {
	ID        int64
	ArchiveID int64
	Series    string
	Pocket    Pocket
	Component string
	Section   string
	Status    PublicationStatus

	DatePublished         time.Time
	DateRemoved           time.Time
	ScheduledDeletionDate time.Time
	RemovedBy             string
	RemovalComment        string
}

// Suite returns the publication's (series, pocket) key.
func (p *Publication) Suite() SuiteKey { return SuiteKey{Series: p.Series, Pocket: p.Pocket} }

// Removed reports whether dateremoved has been stamped.
func (p *Publication) Removed() bool { return !p.DateRemoved.IsZero() }

// SourcePublication is a source package in a suite.
type SourcePublication struct {
	Publication

	Name         string
	Version      string
	Binaries     []string
	Maintainer   string
	Architecture string

	StandardsVersion string
	Format           string

	BuildDepends        string
	BuildDependsIndep   string
	BuildConflicts      string
	BuildConflictsIndep string
	Homepage            string

	Files      []PackageFile
	UserFields []Field
}

// BinaryPublication is a binary package published for one
// architecture of a suite. Architecture-independent binaries have one
// publication per enabled architecture, each with ArchSpecific false.
type BinaryPublication struct {
	Publication

	Name          string
	Version       string
	SourceName    string
	SourceVersion string

	// Architecture is the tag of the binary-<arch> tree this
	// publication belongs to.
	Architecture string
	ArchSpecific bool
	Format       BinaryFormat

	Priority      string
	InstalledSize int64
	Maintainer    string
	Summary       string
	Description   string

	Depends    string
	PreDepends string
	Recommends string
	Suggests   string
	Conflicts  string
	Replaces   string
	Provides   string
	Enhances   string
	Breaks     string

	Essential bool

	// PhasedUpdatePercentage is emitted when non-nil.
	PhasedUpdatePercentage *int

	File       PackageFile
	UserFields []Field
}
