// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/aptpublish/lib/archive"
)

// CreateSeriesAliases points dists/<alias><suffix> at the newest
// series that has published indexes, for every pocket of the archive.
// The alias comes from the distribution's DevelopmentSeriesAlias;
// without one this does nothing. Aliases whose target suite does not
// exist are removed rather than left dangling.
func CreateSeriesAliases(a *archive.Archive, logger *slog.Logger) error {
	alias := a.Distribution.DevelopmentSeriesAlias
	if alias == "" {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var errs []error
	series := newestPublishedSeries(a)
	if series == nil {
		logger.Debug("no series has published indexes, not creating aliases", "alias", alias)
		for _, pocket := range a.Pockets() {
			if err := removeDanglingAlias(a.Paths.DistsRoot, alias+pocket.Suffix(), logger); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, pocket := range a.Pockets() {
		aliasName := alias + pocket.Suffix()
		target := series.Suite(pocket)
		if err := updateAlias(a.Paths.DistsRoot, aliasName, target, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func updateAlias(distsRoot, aliasName, target string, logger *slog.Logger) error {
	aliasPath := filepath.Join(distsRoot, aliasName)
	logger = logger.With("alias", aliasName, "target", target)

	current, err := os.Lstat(aliasPath)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking alias %s: %w", aliasName, err)
	}
	isLink := exists && current.Mode()&os.ModeSymlink != 0

	if info, err := os.Stat(filepath.Join(distsRoot, target)); err != nil || !info.IsDir() {
		if isLink {
			return removeAlias(aliasPath, aliasName, logger)
		}
		return nil
	}

	if exists && !isLink {
		if current.IsDir() {
			logger.Warn("alias path is a real directory, leaving it alone")
			return nil
		}
	}
	if isLink {
		if destination, err := os.Readlink(aliasPath); err == nil && destination == target {
			return nil
		}
	}

	// Build the new link next to the old one and rename it over, so
	// the alias never disappears.
	temporary := aliasPath + ".new"
	if err := os.Remove(temporary); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing %s: %w", temporary, err)
	}
	if err := os.Symlink(target, temporary); err != nil {
		return fmt.Errorf("creating alias %s: %w", aliasName, err)
	}
	if err := os.Rename(temporary, aliasPath); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("replacing alias %s: %w", aliasName, err)
	}
	logger.Info("alias updated")
	return nil
}

// removeDanglingAlias removes dists/<aliasName> when it is a symlink
// whose target no longer exists.
func removeDanglingAlias(distsRoot, aliasName string, logger *slog.Logger) error {
	aliasPath := filepath.Join(distsRoot, aliasName)
	current, err := os.Lstat(aliasPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking alias %s: %w", aliasName, err)
	}
	if current.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	if _, err := os.Stat(aliasPath); err == nil {
		return nil
	}
	return removeAlias(aliasPath, aliasName, logger.With("alias", aliasName))
}

func removeAlias(aliasPath, aliasName string, logger *slog.Logger) error {
	logger.Info("removing alias to missing suite")
	if err := os.Remove(aliasPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing alias %s: %w", aliasName, err)
	}
	return nil
}

// newestPublishedSeries returns the newest series with at least one
// non-empty uncompressed Sources or Packages index in any pocket.
// Compressed forms are never empty, so only the plain files tell.
func newestPublishedSeries(a *archive.Archive) *archive.Series {
	for _, series := range a.Distribution.NewestFirst() {
		for _, pocket := range a.Pockets() {
			suite := series.Suite(pocket)
			for _, component := range a.Components(series) {
				indexes := []string{a.Paths.SourcesPath(suite, component)}
				for _, arch := range series.EnabledArchitectures() {
					indexes = append(indexes, a.Paths.PackagesPath(suite, component, arch, ""))
					for _, subcomponent := range a.Subcomponents() {
						indexes = append(indexes, a.Paths.PackagesPath(suite, component, arch, subcomponent))
					}
				}
				for _, path := range indexes {
					if info, err := os.Stat(path); err == nil && info.Size() > 0 {
						return series
					}
				}
			}
		}
	}
	return nil
}
