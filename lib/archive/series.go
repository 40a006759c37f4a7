// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"slices"
	"strings"
)

// SeriesStatus is the lifecycle stage of a distribution series.
type SeriesStatus int

const (
	Experimental SeriesStatus = iota
	Development
	Frozen
	Current
	Supported
	Obsolete
	Future
)

var seriesStatusNames = [...]string{
	Experimental: "experimental",
	Development:  "development",
	Frozen:       "frozen",
	Current:      "current",
	Supported:    "supported",
	Obsolete:     "obsolete",
	Future:       "future",
}

func (s SeriesStatus) String() string {
	if s < Experimental || s > Future {
		return fmt.Sprintf("SeriesStatus(%d)", int(s))
	}
	return seriesStatusNames[s]
}

// Unstable reports whether the series is still under development, in
// which case its RELEASE pocket may change.
func (s SeriesStatus) Unstable() bool {
	return s == Experimental || s == Development || s == Frozen
}

// ParseSeriesStatus accepts a status name in any case.
func ParseSeriesStatus(s string) (SeriesStatus, error) {
	for i, name := range seriesStatusNames {
		if strings.EqualFold(s, name) {
			return SeriesStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown series status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s SeriesStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SeriesStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseSeriesStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Architecture is one architecture of a series. Disabled architectures
// keep their publications but get no indexes.
type Architecture struct {
	Tag     string
	Enabled bool
}

// Series is one release of a distribution, e.g. "breezy-autotest".
type Series struct {
	Name        string
	DisplayName string
	Version     string
	Status      SeriesStatus

	// Components the series carries, in configuration order.
	Components []string

	Architectures []Architecture

	// BackportsNotAutomatic adds NotAutomatic/ButAutomaticUpgrades to
	// the BACKPORTS Release so that apt does not install backports
	// unless asked.
	BackportsNotAutomatic bool

	// IncludeLongDescriptions keeps long descriptions in Packages.
	// When false they move to i18n/Translation-en.
	IncludeLongDescriptions bool
}

// Suite returns the suite name for the series in the given pocket.
func (s *Series) Suite(pocket Pocket) string {
	return s.Name + pocket.Suffix()
}

// EnabledArchitectures returns the tags of enabled architectures in
// configuration order.
func (s *Series) EnabledArchitectures() []string {
	tags := make([]string, 0, len(s.Architectures))
	for _, arch := range s.Architectures {
		if arch.Enabled {
			tags = append(tags, arch.Tag)
		}
	}
	return tags
}

// Distribution is a named collection of series sharing one pool per
// archive.
type Distribution struct {
	Name        string
	DisplayName string

	// DevelopmentSeriesAlias, when set, names a symlinked suite (e.g.
	// "devel") that follows the newest series with publications.
	DevelopmentSeriesAlias string

	Series []*Series
}

// SeriesByName returns the named series or nil.
func (d *Distribution) SeriesByName(name string) *Series {
	for _, series := range d.Series {
		if series.Name == name {
			return series
		}
	}
	return nil
}

// NewestFirst returns the series ordered by descending version, ties
// broken by name.
func (d *Distribution) NewestFirst() []*Series {
	ordered := slices.Clone(d.Series)
	slices.SortStableFunc(ordered, func(a, b *Series) int {
		if c := CompareVersions(b.Version, a.Version); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return ordered
}

// ParseSuite splits a suite name into its series and pocket. The
// longest matching series name wins, so "foo-security" resolves to
// series "foo-security" if one exists rather than to foo's SECURITY
// pocket.
func (d *Distribution) ParseSuite(suite string) (*Series, Pocket, error) {
	if series := d.SeriesByName(suite); series != nil {
		return series, Release, nil
	}
	for _, pocket := range AllPockets[1:] {
		name, found := strings.CutSuffix(suite, pocket.Suffix())
		if !found {
			continue
		}
		if series := d.SeriesByName(name); series != nil {
			return series, pocket, nil
		}
	}
	return nil, 0, fmt.Errorf("distribution %s has no suite %q", d.Name, suite)
}
