// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"io"
	"slices"
	"strings"

	"github.com/bureau-foundation/aptpublish/lib/archive"
)

type translation struct {
	pkg         string
	md5         string
	description string
}

// TranslationSet collects the long descriptions of a component for
// Translation-en. Each (package, description-md5) pair is recorded
// once, however many architectures publish it.
type TranslationSet struct {
	seen    map[string]bool
	entries []translation
}

// Add records the description of a binary publication.
func (t *TranslationSet) Add(pub *archive.BinaryPublication) {
	md5 := DescriptionMD5(pub.Summary, pub.Description)
	key := pub.Name + "\x00" + md5
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if t.seen[key] {
		return
	}
	t.seen[key] = true
	t.entries = append(t.entries, translation{
		pkg:         pub.Name,
		md5:         md5,
		description: FormatDescription(pub.Summary, pub.Description),
	})
}

// Len returns the number of distinct entries.
func (t *TranslationSet) Len() int { return len(t.entries) }

// WriteTo writes the entries ordered by package name then digest.
func (t *TranslationSet) WriteTo(w io.Writer) (int64, error) {
	entries := slices.Clone(t.entries)
	slices.SortFunc(entries, func(a, b translation) int {
		if c := strings.Compare(a.pkg, b.pkg); c != 0 {
			return c
		}
		return strings.Compare(a.md5, b.md5)
	})
	var total int64
	for _, entry := range entries {
		stanza := &Stanza{}
		stanza.Append("Package", entry.pkg)
		stanza.Append("Description-md5", entry.md5)
		stanza.Append("Description-en", entry.description)
		n, err := stanza.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
