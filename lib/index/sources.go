// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/pool"
)

// formatFileList renders "\n <digest> <size> <name>" per file.
func formatFileList(files []archive.PackageFile, digest func(archive.PackageFile) string) string {
	var builder strings.Builder
	for _, file := range files {
		fmt.Fprintf(&builder, "\n %s %d %s", digest(file), file.Size, file.Filename)
	}
	return builder.String()
}

// SourceStanza builds the Sources stanza of a source publication.
func SourceStanza(pub *archive.SourcePublication) *Stanza {
	stanza := &Stanza{}
	stanza.Append("Package", pub.Name)
	stanza.Append("Binary", strings.Join(pub.Binaries, ", "))
	stanza.Append("Version", pub.Version)
	stanza.Append("Section", pub.Section)
	stanza.Append("Maintainer", pub.Maintainer)
	stanza.Append("Build-Depends", pub.BuildDepends)
	stanza.Append("Build-Depends-Indep", pub.BuildDependsIndep)
	stanza.Append("Build-Conflicts", pub.BuildConflicts)
	stanza.Append("Build-Conflicts-Indep", pub.BuildConflictsIndep)
	stanza.Append("Architecture", pub.Architecture)
	stanza.Append("Standards-Version", pub.StandardsVersion)
	stanza.Append("Format", pub.Format)
	stanza.Append("Directory", "pool/"+pool.Poolify(pub.Name, pub.Component))
	stanza.Append("Files", formatFileList(pub.Files, func(f archive.PackageFile) string { return f.MD5 }))
	stanza.Append("Checksums-Sha1", formatFileList(pub.Files, func(f archive.PackageFile) string { return f.SHA1 }))
	stanza.Append("Checksums-Sha256", formatFileList(pub.Files, func(f archive.PackageFile) string { return f.SHA256 }))
	stanza.Append("Homepage", pub.Homepage)
	stanza.Extend(pub.UserFields)
	return stanza
}

// SortSources orders sources by name, then newest version, then
// newest publication.
func SortSources(pubs []archive.SourcePublication) {
	slices.SortStableFunc(pubs, func(a, b archive.SourcePublication) int {
		return comparePublications(a.Name, a.Version, a.ID, b.Name, b.Version, b.ID)
	})
}

func comparePublications(nameA, versionA string, idA int64, nameB, versionB string, idB int64) int {
	if c := strings.Compare(nameA, nameB); c != 0 {
		return c
	}
	if c := archive.CompareVersions(versionB, versionA); c != 0 {
		return c
	}
	return cmp.Compare(idB, idA)
}
