// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
)

// fixedComponentOrder lists the components that always come first in
// a Components field, in this order.
var fixedComponentOrder = []string{"main", "restricted", "universe", "multiverse"}

// ReorderComponents puts the well-known components first and keeps the
// remaining ones in their given order.
func ReorderComponents(components []string) []string {
	ordered := make([]string, 0, len(components))
	for _, name := range fixedComponentOrder {
		if slices.Contains(components, name) {
			ordered = append(ordered, name)
		}
	}
	for _, name := range components {
		if !slices.Contains(fixedComponentOrder, name) {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// FormatDate renders t in UTC as "Mon, 02 Jan 2006 15:04:05 UTC" with
// the hour padded by a space instead of a zero.
func FormatDate(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s %2d:%s UTC", t.Format("Mon, 02 Jan 2006"), t.Hour(), t.Format("04:05"))
}

// fileDigest is one entry of a checksum block.
type fileDigest struct {
	name   string
	size   int64
	md5    string
	sha1   string
	sha256 string
}

func digest(name string, data []byte) fileDigest {
	md5Sum := md5.Sum(data)
	sha1Sum := sha1.Sum(data)
	sha256Sum := sha256.Sum256(data)
	return fileDigest{
		name:   name,
		size:   int64(len(data)),
		md5:    hex.EncodeToString(md5Sum[:]),
		sha1:   hex.EncodeToString(sha1Sum[:]),
		sha256: hex.EncodeToString(sha256Sum[:]),
	}
}

// sortDigests orders entries by directory, then by name.
func sortDigests(entries []fileDigest) {
	slices.SortFunc(entries, func(a, b fileDigest) int {
		if c := strings.Compare(path.Dir(a.name), path.Dir(b.name)); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
}

// checksumBlock renders "Name:" followed by one " <hash> <size> <file>"
// line per entry, sizes right-aligned to the widest.
func checksumBlock(name string, entries []fileDigest, hash func(fileDigest) string) string {
	width := 0
	for _, entry := range entries {
		width = max(width, len(strconv.FormatInt(entry.size, 10)))
	}
	var builder strings.Builder
	builder.WriteString(name + ":")
	for _, entry := range entries {
		fmt.Fprintf(&builder, "\n %s %*d %s", hash(entry), width, entry.size, entry.name)
	}
	return builder.String()
}

// document accumulates "Field: value" lines in order, skipping empty
// values.
type document struct {
	lines []string
}

func (d *document) field(name, value string) {
	if value == "" {
		return
	}
	d.lines = append(d.lines, name+": "+value)
}

func (d *document) block(text string) {
	d.lines = append(d.lines, text)
}

func (d *document) bytes() []byte {
	return []byte(strings.Join(d.lines, "\n") + "\n")
}
