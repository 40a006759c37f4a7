// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/bureau-foundation/aptpublish/lib/archive"
)

// fileListFields start on the line after the field name.
var fileListFields = map[string]bool{
	"Files":            true,
	"Checksums-Sha1":   true,
	"Checksums-Sha256": true,
}

// unindentedContinuation matches a line break not followed by
// whitespace.
var unindentedContinuation = regexp.MustCompile(`\n(\S)`)

type field struct {
	name  string
	value string
}

// Stanza is an ordered set of control fields.
type Stanza struct {
	fields []field
	seen   map[string]bool
}

// Append adds a field unless one with the same name (compared
// case-insensitively) was already appended. Empty values are kept in
// the order but not rendered, so they still shadow later duplicates.
func (s *Stanza) Append(name, value string) {
	key := strings.ToLower(name)
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.fields = append(s.fields, field{name: name, value: value})
}

// AppendInt adds a numeric field. Zero is treated as unset.
func (s *Stanza) AppendInt(name string, value int64) {
	if value == 0 {
		s.Append(name, "")
		return
	}
	s.Append(name, strconv.FormatInt(value, 10))
}

// Extend appends user-defined fields in order.
func (s *Stanza) Extend(fields []archive.Field) {
	for _, f := range fields {
		s.Append(f.Name, f.Value)
	}
}

// Get returns the raw value of a field, or "".
func (s *Stanza) Get(name string) string {
	for _, f := range s.fields {
		if strings.EqualFold(f.name, name) {
			return f.value
		}
	}
	return ""
}

// String renders the stanza without a trailing newline.
func (s *Stanza) String() string {
	var lines []string
	for _, f := range s.fields {
		if f.value == "" {
			continue
		}
		value := f.value
		if !fileListFields[f.name] {
			value = " " + value
		}
		value = strings.TrimRightFunc(value, unicode.IsSpace)
		value = unindentedContinuation.ReplaceAllString(value, "\n $1")
		lines = append(lines, f.name+":"+value)
	}
	return strings.Join(lines, "\n")
}

// WriteTo writes the stanza followed by the blank line that separates
// stanzas in an index.
func (s *Stanza) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String()+"\n\n")
	return int64(n), err
}
