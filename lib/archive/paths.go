// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"path/filepath"
)

// Paths is the resolved on-disk layout of one archive.
type Paths struct {
	// HousingRoot is removed as a whole when a PPA is deleted. For
	// primary and partner archives it is the shared distribution root
	// and is never removed.
	HousingRoot string

	// ArchiveRoot contains pool/ and dists/ and is served as-is.
	ArchiveRoot string
	PoolRoot    string
	DistsRoot   string

	// TempRoot holds files being written before they are renamed into
	// place. It must be on the same filesystem as ArchiveRoot.
	TempRoot string

	// ObjectRoot holds one hardlink per distinct pool content.
	ObjectRoot string

	// MetaRoot holds publisher state such as the run journal.
	MetaRoot string

	// HtaccessRoot receives .htaccess and .htpasswd for private
	// archives.
	HtaccessRoot string
}

// Roots are the configured top-level directories under which archive
// layouts are computed.
type Roots struct {
	DistroRoot     string
	PPARoot        string
	PrivatePPARoot string
	PPAMetaRoot    string
	CopyRoot       string
}

// PathsFor computes the layout of an archive.
func (r Roots) PathsFor(a *Archive) (Paths, error) {
	distro := a.Distribution.Name
	var paths Paths
	switch a.Purpose {
	case Primary, Partner:
		if r.DistroRoot == "" {
			return Paths{}, fmt.Errorf("%s: distro root not configured", a.Reference())
		}
		name := distro
		if a.Purpose == Partner {
			name = distro + "-partner"
		}
		paths.HousingRoot = r.DistroRoot
		paths.ArchiveRoot = filepath.Join(r.DistroRoot, name)
		paths.MetaRoot = paths.ArchiveRoot + "-meta"
		paths.HtaccessRoot = paths.ArchiveRoot
	case Copy:
		if r.CopyRoot == "" {
			return Paths{}, fmt.Errorf("%s: copy root not configured", a.Reference())
		}
		paths.HousingRoot = filepath.Join(r.CopyRoot, distro+"-"+a.Name)
		paths.ArchiveRoot = filepath.Join(paths.HousingRoot, distro)
		paths.MetaRoot = filepath.Join(paths.HousingRoot, "meta")
		paths.HtaccessRoot = paths.ArchiveRoot
	case PPA:
		root := r.PPARoot
		if a.Private {
			root = r.PrivatePPARoot
		}
		if root == "" {
			return Paths{}, fmt.Errorf("%s: PPA root not configured", a.Reference())
		}
		if r.PPAMetaRoot == "" {
			return Paths{}, fmt.Errorf("%s: PPA meta root not configured", a.Reference())
		}
		paths.HousingRoot = filepath.Join(root, a.Owner, a.Name)
		paths.ArchiveRoot = filepath.Join(paths.HousingRoot, distro)
		paths.MetaRoot = filepath.Join(r.PPAMetaRoot, a.Owner, a.Name)
		paths.HtaccessRoot = paths.HousingRoot
	default:
		return Paths{}, fmt.Errorf("unknown archive purpose %v", a.Purpose)
	}
	paths.PoolRoot = filepath.Join(paths.ArchiveRoot, "pool")
	paths.DistsRoot = filepath.Join(paths.ArchiveRoot, "dists")
	paths.TempRoot = paths.ArchiveRoot + "-temp"
	paths.ObjectRoot = paths.ArchiveRoot + "-objects"
	return paths, nil
}

// SuiteDir returns dists/<suite>.
func (p Paths) SuiteDir(suite string) string {
	return filepath.Join(p.DistsRoot, suite)
}

// SourcesPath returns the uncompressed Sources index of a component.
func (p Paths) SourcesPath(suite, component string) string {
	return filepath.Join(p.DistsRoot, suite, SourcesRelative(component))
}

// PackagesPath returns the uncompressed Packages index for an
// architecture, optionally inside a subcomponent tree.
func (p Paths) PackagesPath(suite, component, arch, subcomponent string) string {
	return filepath.Join(p.DistsRoot, suite, PackagesRelative(component, arch, subcomponent))
}

// I18nDir returns the translation directory of a component.
func (p Paths) I18nDir(suite, component string) string {
	return filepath.Join(p.DistsRoot, suite, component, "i18n")
}

// SourcesRelative is the Sources path relative to the suite directory.
func SourcesRelative(component string) string {
	return filepath.Join(component, "source", "Sources")
}

// PackagesRelative is the Packages path relative to the suite
// directory.
func PackagesRelative(component, arch, subcomponent string) string {
	archDir := "binary-" + arch
	if subcomponent == "" {
		return filepath.Join(component, archDir, "Packages")
	}
	return filepath.Join(component, subcomponent, archDir, "Packages")
}
