// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"strings"
)

// Purpose distinguishes the kinds of archive a distribution can have.
type Purpose int

const (
	Primary Purpose = iota + 1
	Partner
	PPA
	Copy
)

// DefaultPPAName is the name a PPA gets when its owner does not pick
// one. PPA Origins omit it.
const DefaultPPAName = "ppa"

// purposePolicy is everything that varies by archive purpose.
type purposePolicy struct {
	name string

	// defaultComponent, when set, replaces the series components:
	// partner archives publish only "partner", PPAs only "main".
	defaultComponent string

	// releasePocketOnly restricts the archive to the RELEASE pocket.
	releasePocketOnly bool

	// skipInactiveSeries drops OBSOLETE and FUTURE series from
	// phase A.
	skipInactiveSeries bool

	// releaseUpdates allows changes to the RELEASE pocket of a stable
	// series.
	releaseUpdates bool

	// installerSubcomponent generates debian-installer indexes.
	installerSubcomponent bool

	origin func(*Archive) string
	label  func(*Archive) string
}

func distributionDisplayName(a *Archive) string { return a.Distribution.DisplayName }

var purposePolicies = map[Purpose]purposePolicy{
	Primary: {
		name:                  "primary",
		skipInactiveSeries:    true,
		installerSubcomponent: true,
		origin:                distributionDisplayName,
		label:                 distributionDisplayName,
	},
	Partner: {
		name:             "partner",
		defaultComponent: "partner",
		releaseUpdates:   true,
		origin:           func(*Archive) string { return "Canonical" },
		label:            func(*Archive) string { return "Partner archive" },
	},
	PPA: {
		name:                  "ppa",
		defaultComponent:      "main",
		releasePocketOnly:     true,
		releaseUpdates:        true,
		installerSubcomponent: true,
		origin:                func(a *Archive) string { return "LP-PPA-" + a.PPAReference() },
		label:                 func(a *Archive) string { return a.DisplayName },
	},
	Copy: {
		name:                  "copy",
		releaseUpdates:        true,
		installerSubcomponent: true,
		origin:                distributionDisplayName,
		label:                 distributionDisplayName,
	},
}

func (p Purpose) policy() purposePolicy {
	policy, ok := purposePolicies[p]
	if !ok {
		panic(fmt.Sprintf("archive: no policy for purpose %d", int(p)))
	}
	return policy
}

func (p Purpose) String() string {
	policy, ok := purposePolicies[p]
	if !ok {
		return fmt.Sprintf("Purpose(%d)", int(p))
	}
	return policy.name
}

// ParsePurpose accepts "primary", "partner", "ppa" or "copy".
func ParsePurpose(s string) (Purpose, error) {
	for purpose, policy := range purposePolicies {
		if strings.EqualFold(s, policy.name) {
			return purpose, nil
		}
	}
	return 0, fmt.Errorf("unknown archive purpose %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Purpose) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Purpose) UnmarshalText(text []byte) error {
	parsed, err := ParsePurpose(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
