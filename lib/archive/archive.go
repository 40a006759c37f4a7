// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"strings"
)

// Status is the on-disk lifecycle state of an archive.
type Status int

const (
	ArchiveActive Status = iota
	ArchiveDeleting
	ArchiveDeleted
)

func (s Status) String() string {
	switch s {
	case ArchiveActive:
		return "active"
	case ArchiveDeleting:
		return "deleting"
	case ArchiveDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus accepts an archive status name in any case.
func ParseStatus(s string) (Status, error) {
	for _, status := range []Status{ArchiveActive, ArchiveDeleting, ArchiveDeleted} {
		if strings.EqualFold(s, status.String()) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown archive status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Archive is one publishing target: a distribution plus a purpose,
// and for PPAs an owner and name. The configuration provider resolves
// it once; the publisher never recomputes anything stored here.
type Archive struct {
	ID           int64
	Distribution *Distribution
	Purpose      Purpose

	// Owner and Name identify PPAs and copy archives. Primary and
	// partner archives leave Owner empty.
	Owner string
	Name  string

	DisplayName string
	Private     bool
	Publish     bool
	Status      Status

	// PublishDebugSymbols adds the debug subcomponent and publishes
	// DDEBs into the pool.
	PublishDebugSymbols bool

	// SigningKey is the fingerprint of the OpenPGP key that signs
	// Release files. Empty means unsigned.
	SigningKey string

	// BuilddSecret is the password of the "buildd" user in a private
	// archive's .htpasswd.
	BuilddSecret string

	// Subscribers maps additional .htpasswd users to their tokens.
	Subscribers map[string]string

	Paths Paths
}

// IsPPA reports whether the archive is a personal package archive.
func (a *Archive) IsPPA() bool { return a.Purpose == PPA }

// Reference returns a short human-readable identifier used in logs.
func (a *Archive) Reference() string {
	switch a.Purpose {
	case PPA:
		return fmt.Sprintf("ppa:%s/%s", a.Owner, a.Name)
	case Copy:
		return fmt.Sprintf("%s/copy/%s", a.Distribution.Name, a.Name)
	default:
		return fmt.Sprintf("%s/%s", a.Distribution.Name, a.Purpose)
	}
}

// PPAReference is the owner name, followed by "-<name>" unless the PPA
// uses the default name.
func (a *Archive) PPAReference() string {
	if a.Name == "" || a.Name == DefaultPPAName {
		return a.Owner
	}
	return a.Owner + "-" + a.Name
}

// Pockets returns the pockets the archive publishes into.
func (a *Archive) Pockets() []Pocket {
	if a.Purpose.policy().releasePocketOnly {
		return []Pocket{Release}
	}
	return AllPockets
}

// Components returns the components published for a series.
func (a *Archive) Components(series *Series) []string {
	if component := a.Purpose.policy().defaultComponent; component != "" {
		return []string{component}
	}
	return series.Components
}

// Subcomponents returns the extra index trees generated next to each
// binary-<arch> directory.
func (a *Archive) Subcomponents() []string {
	var subcomponents []string
	if a.Purpose.policy().installerSubcomponent {
		subcomponents = append(subcomponents, SubcomponentInstaller)
	}
	if a.PublishDebugSymbols {
		subcomponents = append(subcomponents, SubcomponentDebug)
	}
	return subcomponents
}

// ConsiderSeries returns the series phase A looks at. Primary archives
// never publish into OBSOLETE or FUTURE series.
func (a *Archive) ConsiderSeries() []*Series {
	if !a.Purpose.policy().skipInactiveSeries {
		return a.Distribution.Series
	}
	var considered []*Series
	for _, series := range a.Distribution.Series {
		if series.Status == Obsolete || series.Status == Future {
			continue
		}
		considered = append(considered, series)
	}
	return considered
}

// AllowsReleaseUpdates reports whether the RELEASE pocket of a stable
// series may still change.
func (a *Archive) AllowsReleaseUpdates() bool {
	return a.Purpose.policy().releaseUpdates
}

// CannotModifySuite is true for the RELEASE pocket of a stable series
// in an archive that does not allow release updates.
func (a *Archive) CannotModifySuite(series *Series, pocket Pocket) bool {
	return !series.Status.Unstable() && !a.AllowsReleaseUpdates() && pocket == Release
}

// Origin returns the Release file Origin field.
func (a *Archive) Origin() string { return a.Purpose.policy().origin(a) }

// Label returns the Release file Label field.
func (a *Archive) Label() string { return a.Purpose.policy().label(a) }
