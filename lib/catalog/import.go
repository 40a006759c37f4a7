// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/pool"
)

// document is the YAML form accepted by Import:
//
//	sources:
//	  - archive: 1
//	    series: breezy-autotest
//	    component: main
//	    section: base
//	    name: foo
//	    version: "666"
//	    binaries: [foo-bin]
//	    files:
//	      - filename: foo_666.dsc
//	        content: "Hello world"
//	binaries:
//	  - archive: 1
//	    series: breezy-autotest
//	    architecture: i386
//	    name: foo-bin
//	    source: foo
//	    file:
//	      filename: foo-bin_666_all.deb
//	      path: debs/foo-bin_666_all.deb
//
// Pocket defaults to RELEASE and status to pending. File sizes and
// digests left out are computed from the content.
type document struct {
	Sources  []sourceEntry `yaml:"sources"`
	Binaries []binaryEntry `yaml:"binaries"`
}

type publicationEntry struct {
	ID                    int64                     `yaml:"id"`
	Archive               int64                     `yaml:"archive"`
	Series                string                    `yaml:"series"`
	Pocket                archive.Pocket            `yaml:"pocket"`
	Component             string                    `yaml:"component"`
	Section               string                    `yaml:"section"`
	Status                archive.PublicationStatus `yaml:"status"`
	DatePublished         time.Time                 `yaml:"date_published"`
	DateRemoved           time.Time                 `yaml:"date_removed"`
	ScheduledDeletionDate time.Time                 `yaml:"scheduled_deletion_date"`
}

type fileEntry struct {
	archive.PackageFile `yaml:",inline"`
	Content             *string `yaml:"content"`
}

type sourceEntry struct {
	publicationEntry `yaml:",inline"`

	Name                string          `yaml:"name"`
	Version             string          `yaml:"version"`
	Binaries            []string        `yaml:"binaries"`
	Maintainer          string          `yaml:"maintainer"`
	Architecture        string          `yaml:"architecture"`
	StandardsVersion    string          `yaml:"standards_version"`
	Format              string          `yaml:"format"`
	BuildDepends        string          `yaml:"build_depends"`
	BuildDependsIndep   string          `yaml:"build_depends_indep"`
	BuildConflicts      string          `yaml:"build_conflicts"`
	BuildConflictsIndep string          `yaml:"build_conflicts_indep"`
	Homepage            string          `yaml:"homepage"`
	Files               []fileEntry     `yaml:"files"`
	UserFields          []archive.Field `yaml:"user_fields"`
}

type binaryEntry struct {
	publicationEntry `yaml:",inline"`

	Name                   string               `yaml:"name"`
	Version                string               `yaml:"version"`
	Source                 string               `yaml:"source"`
	SourceVersion          string               `yaml:"source_version"`
	Architecture           string               `yaml:"architecture"`
	ArchSpecific           bool                 `yaml:"arch_specific"`
	Format                 archive.BinaryFormat `yaml:"format"`
	Priority               string               `yaml:"priority"`
	InstalledSize          int64                `yaml:"installed_size"`
	Maintainer             string               `yaml:"maintainer"`
	Summary                string               `yaml:"summary"`
	Description            string               `yaml:"description"`
	Depends                string               `yaml:"depends"`
	PreDepends             string               `yaml:"pre_depends"`
	Recommends             string               `yaml:"recommends"`
	Suggests               string               `yaml:"suggests"`
	Conflicts              string               `yaml:"conflicts"`
	Replaces               string               `yaml:"replaces"`
	Provides               string               `yaml:"provides"`
	Enhances               string               `yaml:"enhances"`
	Breaks                 string               `yaml:"breaks"`
	Essential              bool                 `yaml:"essential"`
	PhasedUpdatePercentage *int                 `yaml:"phased_update_percentage"`
	File                   fileEntry            `yaml:"file"`
	UserFields             []archive.Field      `yaml:"user_fields"`
}

// Counts reports what Import loaded.
type Counts struct {
	Sources  int
	Binaries int
}

// Import loads a YAML document of publications into loader. Relative
// file paths are used as given.
func Import(ctx context.Context, loader Loader, reader io.Reader) (Counts, error) {
	return importDocument(ctx, loader, reader, "")
}

// ImportFile loads a YAML document from path. Relative file paths in
// the document are resolved against the document's directory.
func ImportFile(ctx context.Context, loader Loader, path string) (Counts, error) {
	file, err := os.Open(path)
	if err != nil {
		return Counts{}, err
	}
	defer file.Close()
	return importDocument(ctx, loader, file, filepath.Dir(path))
}

func importDocument(ctx context.Context, loader Loader, reader io.Reader, baseDir string) (Counts, error) {
	var counts Counts
	var doc document
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return counts, nil
		}
		return counts, fmt.Errorf("parsing publications: %w", err)
	}

	for i, entry := range doc.Sources {
		pub, err := entry.publication(baseDir)
		if err != nil {
			return counts, fmt.Errorf("source %d (%s): %w", i, entry.Name, err)
		}
		if err := loader.AddSource(ctx, pub); err != nil {
			return counts, fmt.Errorf("adding source %s: %w", entry.Name, err)
		}
		counts.Sources++
	}
	for i, entry := range doc.Binaries {
		pub, err := entry.publication(baseDir)
		if err != nil {
			return counts, fmt.Errorf("binary %d (%s): %w", i, entry.Name, err)
		}
		if err := loader.AddBinary(ctx, pub); err != nil {
			return counts, fmt.Errorf("adding binary %s: %w", entry.Name, err)
		}
		counts.Binaries++
	}
	return counts, nil
}

func (e publicationEntry) publication() (archive.Publication, error) {
	if e.Archive == 0 {
		return archive.Publication{}, fmt.Errorf("archive is required")
	}
	if e.Series == "" {
		return archive.Publication{}, fmt.Errorf("series is required")
	}
	pub := archive.Publication{
		ID:                    e.ID,
		ArchiveID:             e.Archive,
		Series:                e.Series,
		Pocket:                e.Pocket,
		Component:             e.Component,
		Section:               e.Section,
		Status:                e.Status,
		DatePublished:         e.DatePublished,
		DateRemoved:           e.DateRemoved,
		ScheduledDeletionDate: e.ScheduledDeletionDate,
	}
	if pub.Pocket == 0 {
		pub.Pocket = archive.Release
	}
	if pub.Status == 0 {
		pub.Status = archive.Pending
	}
	if pub.Component == "" {
		pub.Component = "main"
	}
	return pub, nil
}

// resolve fills in content, size and digests of a file entry.
func (e fileEntry) resolve(baseDir string) (archive.PackageFile, error) {
	file := e.PackageFile
	if file.Filename == "" {
		return file, fmt.Errorf("file without filename")
	}
	if e.Content != nil {
		file.Data = []byte(*e.Content)
		file.Path = ""
	} else if file.Path != "" && baseDir != "" && !filepath.IsAbs(file.Path) {
		file.Path = filepath.Join(baseDir, file.Path)
	}
	if file.Path == "" && file.Data == nil {
		return file, fmt.Errorf("%s: neither path nor content given", file.Filename)
	}
	if file.MD5 != "" && file.SHA1 != "" && file.SHA256 != "" && file.Size > 0 {
		return file, nil
	}
	digests, err := pool.Measure(file)
	if err != nil {
		return file, fmt.Errorf("measuring %s: %w", file.Filename, err)
	}
	file.Size = digests.Size
	file.MD5 = digests.MD5
	file.SHA1 = digests.SHA1
	file.SHA256 = digests.SHA256
	return file, nil
}

func (e sourceEntry) publication(baseDir string) (*archive.SourcePublication, error) {
	base, err := e.publicationEntry.publication()
	if err != nil {
		return nil, err
	}
	if e.Name == "" || e.Version == "" {
		return nil, fmt.Errorf("name and version are required")
	}
	pub := &archive.SourcePublication{
		Publication:         base,
		Name:                e.Name,
		Version:             e.Version,
		Binaries:            e.Binaries,
		Maintainer:          e.Maintainer,
		Architecture:        e.Architecture,
		StandardsVersion:    e.StandardsVersion,
		Format:              e.Format,
		BuildDepends:        e.BuildDepends,
		BuildDependsIndep:   e.BuildDependsIndep,
		BuildConflicts:      e.BuildConflicts,
		BuildConflictsIndep: e.BuildConflictsIndep,
		Homepage:            e.Homepage,
		UserFields:          e.UserFields,
	}
	for _, entry := range e.Files {
		file, err := entry.resolve(baseDir)
		if err != nil {
			return nil, err
		}
		pub.Files = append(pub.Files, file)
	}
	return pub, nil
}

func (e binaryEntry) publication(baseDir string) (*archive.BinaryPublication, error) {
	base, err := e.publicationEntry.publication()
	if err != nil {
		return nil, err
	}
	if e.Name == "" || e.Version == "" || e.Architecture == "" {
		return nil, fmt.Errorf("name, version and architecture are required")
	}
	file, err := e.File.resolve(baseDir)
	if err != nil {
		return nil, err
	}
	format := e.Format
	if format == 0 {
		format = archive.DEB
	}
	return &archive.BinaryPublication{
		Publication:            base,
		Name:                   e.Name,
		Version:                e.Version,
		SourceName:             e.Source,
		SourceVersion:          e.SourceVersion,
		Architecture:           e.Architecture,
		ArchSpecific:           e.ArchSpecific,
		Format:                 format,
		Priority:               e.Priority,
		InstalledSize:          e.InstalledSize,
		Maintainer:             e.Maintainer,
		Summary:                e.Summary,
		Description:            e.Description,
		Depends:                e.Depends,
		PreDepends:             e.PreDepends,
		Recommends:             e.Recommends,
		Suggests:               e.Suggests,
		Conflicts:              e.Conflicts,
		Replaces:               e.Replaces,
		Provides:               e.Provides,
		Enhances:               e.Enhances,
		Breaks:                 e.Breaks,
		Essential:              e.Essential,
		PhasedUpdatePercentage: e.PhasedUpdatePercentage,
		File:                   file,
		UserFields:             e.UserFields,
	}, nil
}
