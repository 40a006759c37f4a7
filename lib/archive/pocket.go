// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"strings"
)

// Pocket is a sub-stream of a series with its own update policy.
type Pocket int

const (
	Release Pocket = iota + 1
	Security
	Updates
	Proposed
	Backports
)

// AllPockets lists every pocket in publishing order.
var AllPockets = []Pocket{Release, Security, Updates, Proposed, Backports}

var pocketNames = [...]string{
	Release:   "RELEASE",
	Security:  "SECURITY",
	Updates:   "UPDATES",
	Proposed:  "PROPOSED",
	Backports: "BACKPORTS",
}

var pocketSuffixes = [...]string{
	Release:   "",
	Security:  "-security",
	Updates:   "-updates",
	Proposed:  "-proposed",
	Backports: "-backports",
}

func (p Pocket) valid() bool { return p >= Release && p <= Backports }

// String returns the upper-case pocket name, e.g. "SECURITY".
func (p Pocket) String() string {
	if !p.valid() {
		return fmt.Sprintf("Pocket(%d)", int(p))
	}
	return pocketNames[p]
}

// Suffix returns the suite-name suffix for the pocket. RELEASE has
// none.
func (p Pocket) Suffix() string {
	if !p.valid() {
		return ""
	}
	return pocketSuffixes[p]
}

// Title returns the pocket name with only its first letter in upper
// case ("Security"), as used in Release descriptions.
func (p Pocket) Title() string {
	name := strings.ToLower(p.String())
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// ParsePocket accepts a pocket name in any case.
func ParsePocket(s string) (Pocket, error) {
	for i, name := range pocketNames {
		if name != "" && strings.EqualFold(s, name) {
			return Pocket(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pocket %q", s)
}

// MarshalText implements encoding.TextMarshaler so pockets appear by
// name in YAML and CBOR.
func (p Pocket) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("invalid pocket %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pocket) UnmarshalText(text []byte) error {
	parsed, err := ParsePocket(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SuiteKey identifies one (series, pocket) pair.
type SuiteKey struct {
	Series string `cbor:"series"`
	Pocket Pocket `cbor:"pocket"`
}

// Name returns the suite name, e.g. "breezy-autotest-security".
func (k SuiteKey) Name() string { return k.Series + k.Pocket.Suffix() }

func (k SuiteKey) String() string { return k.Name() }
