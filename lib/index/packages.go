// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/pool"
)

// FormatDescription joins a summary and a long description into the
// control-file form: the summary on the first line, then each
// description line with its leading whitespace replaced by a single
// space. Trailing whitespace inside the text is kept.
func FormatDescription(summary, description string) string {
	lines := splitLines(description)
	for i, line := range lines {
		lines[i] = strings.TrimLeftFunc(line, unicode.IsSpace)
	}
	return summary + "\n " + strings.Join(lines, "\n ")
}

// splitLines splits on line breaks without yielding a trailing empty
// element for a final newline.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// DescriptionMD5 is the digest apt uses to pair a short Packages
// stanza with its Translation-en entry: the MD5 of the rendered
// Description value followed by a newline.
func DescriptionMD5(summary, description string) string {
	rendered := renderedDescription(summary, description)
	sum := md5.Sum([]byte(rendered + "\n"))
	return hex.EncodeToString(sum[:])
}

// renderedDescription is the Description value exactly as it appears
// after the "Description: " prefix.
func renderedDescription(summary, description string) string {
	stanza := &Stanza{}
	stanza.Append("Description", FormatDescription(summary, description))
	return strings.TrimPrefix(stanza.String(), "Description: ")
}

// sourceField renders the Source field of a binary: empty when the
// binary is named after its source at the same version, "src" when
// only the name differs, "src (version)" when the version differs.
func sourceField(pub *archive.BinaryPublication) string {
	if pub.SourceName == "" {
		return ""
	}
	if pub.SourceVersion != "" && pub.SourceVersion != pub.Version {
		return fmt.Sprintf("%s (%s)", pub.SourceName, pub.SourceVersion)
	}
	if pub.SourceName != pub.Name {
		return pub.SourceName
	}
	return ""
}

// BinaryStanza builds the Packages stanza of a binary publication.
// When longDescriptions is false only the summary is emitted as the
// Description, together with a Description-md5 that keys the full text
// in Translation-en.
func BinaryStanza(pub *archive.BinaryPublication, longDescriptions bool) *Stanza {
	architecture := pub.Architecture
	if !pub.ArchSpecific {
		architecture = "all"
	}
	sourceName := pub.SourceName
	if sourceName == "" {
		sourceName = pub.Name
	}

	stanza := &Stanza{}
	stanza.Append("Package", pub.Name)
	stanza.Append("Source", sourceField(pub))
	stanza.Append("Priority", strings.ToLower(pub.Priority))
	stanza.Append("Section", pub.Section)
	stanza.AppendInt("Installed-Size", pub.InstalledSize)
	stanza.Append("Maintainer", pub.Maintainer)
	stanza.Append("Architecture", architecture)
	stanza.Append("Version", pub.Version)
	stanza.Append("Recommends", pub.Recommends)
	stanza.Append("Replaces", pub.Replaces)
	stanza.Append("Suggests", pub.Suggests)
	stanza.Append("Provides", pub.Provides)
	stanza.Append("Depends", pub.Depends)
	stanza.Append("Conflicts", pub.Conflicts)
	stanza.Append("Pre-Depends", pub.PreDepends)
	stanza.Append("Enhances", pub.Enhances)
	stanza.Append("Breaks", pub.Breaks)
	if pub.Essential {
		stanza.Append("Essential", "yes")
	} else {
		stanza.Append("Essential", "")
	}
	stanza.Append("Filename", pool.RelativePath(pub.Component, sourceName, pub.File.Filename))
	stanza.AppendInt("Size", pub.File.Size)
	stanza.Append("MD5sum", pub.File.MD5)
	stanza.Append("SHA1", pub.File.SHA1)
	stanza.Append("SHA256", pub.File.SHA256)
	if pub.PhasedUpdatePercentage != nil && *pub.PhasedUpdatePercentage > 0 {
		stanza.Append("Phased-Update-Percentage", strconv.Itoa(*pub.PhasedUpdatePercentage))
	}
	if longDescriptions {
		stanza.Append("Description", FormatDescription(pub.Summary, pub.Description))
	} else {
		stanza.Append("Description", pub.Summary)
		stanza.Append("Description-md5", DescriptionMD5(pub.Summary, pub.Description))
	}
	stanza.Extend(pub.UserFields)
	return stanza
}

// SortBinaries orders binaries by name, then newest version, then
// newest publication.
func SortBinaries(pubs []archive.BinaryPublication) {
	slices.SortStableFunc(pubs, func(a, b archive.BinaryPublication) int {
		return comparePublications(a.Name, a.Version, a.ID, b.Name, b.Version, b.ID)
	})
}
