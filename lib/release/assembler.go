// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/atomicfile"
	"github.com/bureau-foundation/aptpublish/lib/clock"
	"github.com/bureau-foundation/aptpublish/lib/index"
	"github.com/bureau-foundation/aptpublish/lib/signing"
)

// Config holds the Assembler's dependencies. Signer may be nil when no
// archive is configured with a signing key.
type Config struct {
	Signer signing.Signer
	Clock  clock.Clock
	Logger *slog.Logger
}

// Assembler writes Release files.
type Assembler struct {
	signer signing.Signer
	clock  clock.Clock
	logger *slog.Logger
}

// New returns an Assembler. A nil Clock means the real clock.
func New(config Config) *Assembler {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := config.Clock
	if c == nil {
		c = clock.Real()
	}
	return &Assembler{signer: config.Signer, clock: c, logger: logger}
}

// SuiteInput describes one suite to write.
type SuiteInput struct {
	Archive *archive.Archive
	Series  *archive.Series
	Pocket  archive.Pocket

	// Components, Architectures and Subcomponents name the index
	// trees the suite contains. Architectures are the enabled
	// architecture tags.
	Components    []string
	Architectures []string
	Subcomponents []string
	Encodings     []index.Encoding
}

func (in SuiteInput) suite() string { return in.Series.Suite(in.Pocket) }

// Result describes a written suite.
type Result struct {
	Suite string
	// Listed holds the suite-relative paths whose digests the Release
	// carries, in Release order.
	Listed []string
	Signed bool
	// Warnings holds non-fatal problems, such as a *SigningError.
	Warnings []error
}

// WriteSuite writes the per-directory Release files, i18n indexes, the
// suite Release and its signature, then synchronises timestamps.
func (a *Assembler) WriteSuite(ctx context.Context, in SuiteInput) (Result, error) {
	suite := in.suite()
	suiteDir := in.Archive.Paths.SuiteDir(suite)
	result := Result{Suite: suite}
	logger := a.logger.With("archive", in.Archive.Reference(), "suite", suite)

	if err := os.MkdirAll(suiteDir, 0755); err != nil {
		return result, fmt.Errorf("creating %s: %w", suiteDir, err)
	}

	var candidates []string
	suffixes := index.Suffixes(in.Encodings)
	for _, component := range in.Components {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sourceStub := archive.SourcesRelative(component)
		candidates = append(candidates, suffixed(sourceStub, suffixes)...)
		sourceRelease := filepath.Join(component, "source", "Release")
		if err := a.writeDirectoryRelease(suiteDir, sourceRelease, in, component, "source"); err != nil {
			return result, err
		}
		candidates = append(candidates, sourceRelease)

		for _, arch := range in.Architectures {
			for _, subcomponent := range in.Subcomponents {
				candidates = append(candidates, suffixed(archive.PackagesRelative(component, arch, subcomponent), suffixes)...)
			}
			candidates = append(candidates, suffixed(archive.PackagesRelative(component, arch, ""), suffixes)...)
			archRelease := filepath.Join(component, "binary-"+arch, "Release")
			if err := a.writeDirectoryRelease(suiteDir, archRelease, in, component, arch); err != nil {
				return result, err
			}
			candidates = append(candidates, archRelease)
		}

		i18nIndex, err := writeI18nIndex(suiteDir, component)
		if err != nil {
			return result, err
		}
		if i18nIndex != "" {
			candidates = append(candidates, i18nIndex)
		}
	}

	var entries []fileDigest
	for _, name := range candidates {
		data, err := os.ReadFile(filepath.Join(suiteDir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("listed file absent, skipping", "file", name)
				continue
			}
			return result, fmt.Errorf("reading %s: %w", name, err)
		}
		entries = append(entries, digest(filepath.ToSlash(name), data))
	}
	sortDigests(entries)
	for _, entry := range entries {
		result.Listed = append(result.Listed, entry.name)
	}

	content := a.render(in, entries)
	releasePath := filepath.Join(suiteDir, "Release")
	if err := atomicfile.WriteFile(releasePath, content, 0644); err != nil {
		return result, err
	}

	synced := append(slices.Clone(result.Listed), "Release")
	signed, err := a.sign(ctx, in, suiteDir, content)
	if err != nil {
		var signingError *SigningError
		if !errors.As(err, &signingError) {
			return result, err
		}
		logger.Warn("Release left unsigned", "error", err)
		result.Warnings = append(result.Warnings, err)
	}
	if signed {
		result.Signed = true
		synced = append(synced, "Release.gpg")
	}

	if err := syncTimestamps(suiteDir, synced); err != nil {
		return result, err
	}
	logger.Info("wrote Release", "files", len(entries), "signed", signed)
	return result, nil
}

func suffixed(stub string, suffixes []string) []string {
	names := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		names = append(names, stub+suffix)
	}
	return names
}

// render builds the suite Release document.
func (a *Assembler) render(in SuiteInput, entries []fileDigest) []byte {
	distribution := in.Archive.Distribution
	description := fmt.Sprintf("%s %s ", distribution.DisplayName, in.Series.DisplayName)
	if in.Pocket == archive.Release {
		description += in.Series.Version
	} else {
		description += in.Pocket.Title()
	}

	architectures := slices.Clone(in.Architectures)
	slices.Sort(architectures)

	doc := &document{}
	doc.field("Origin", in.Archive.Origin())
	doc.field("Label", in.Archive.Label())
	doc.field("Suite", in.suite())
	doc.field("Version", in.Series.Version)
	doc.field("Codename", in.Series.Name)
	doc.field("Date", FormatDate(a.clock.Now()))
	doc.field("Architectures", strings.Join(architectures, " "))
	doc.field("Components", strings.Join(ReorderComponents(in.Components), " "))
	doc.field("Description", description)
	if in.Pocket == archive.Backports && in.Series.BackportsNotAutomatic {
		doc.field("NotAutomatic", "yes")
		doc.field("ButAutomaticUpgrades", "yes")
	}
	if len(entries) > 0 {
		doc.block(checksumBlock("MD5Sum", entries, func(e fileDigest) string { return e.md5 }))
		doc.block(checksumBlock("SHA1", entries, func(e fileDigest) string { return e.sha1 }))
		doc.block(checksumBlock("SHA256", entries, func(e fileDigest) string { return e.sha256 }))
	}
	return doc.bytes()
}

// writeDirectoryRelease writes the Release stub of a source or
// binary-<arch> directory.
func (a *Assembler) writeDirectoryRelease(suiteDir, relative string, in SuiteInput, component, architecture string) error {
	doc := &document{}
	doc.field("Archive", in.suite())
	doc.field("Version", in.Series.Version)
	doc.field("Component", component)
	doc.field("Origin", in.Archive.Origin())
	doc.field("Label", in.Archive.Label())
	doc.field("Architecture", architecture)

	path := filepath.Join(suiteDir, relative)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return atomicfile.WriteFile(path, doc.bytes(), 0644)
}

// writeI18nIndex writes <component>/i18n/Index listing the bzip2
// translations and returns its suite-relative path, or "" when there
// is nothing to index.
func writeI18nIndex(suiteDir, component string) (string, error) {
	i18nDir := filepath.Join(suiteDir, component, "i18n")
	dirEntries, err := os.ReadDir(i18nDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("listing %s: %w", i18nDir, err)
	}

	var entries []fileDigest
	for _, entry := range dirEntries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "Translation-") || !strings.HasSuffix(name, ".bz2") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(i18nDir, name))
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		entries = append(entries, digest(name, data))
	}
	if len(entries) == 0 {
		return "", nil
	}
	slices.SortFunc(entries, func(a, b fileDigest) int { return strings.Compare(a.name, b.name) })

	content := checksumBlock("SHA1", entries, func(e fileDigest) string { return e.sha1 }) + "\n"
	if err := atomicfile.WriteFile(filepath.Join(i18nDir, "Index"), []byte(content), 0644); err != nil {
		return "", err
	}
	return filepath.Join(component, "i18n", "Index"), nil
}

// sign writes Release.gpg. It reports whether a signature now exists.
// Without a key, or when signing fails, any previous Release.gpg is
// removed so that it cannot contradict the new Release.
func (a *Assembler) sign(ctx context.Context, in SuiteInput, suiteDir string, content []byte) (bool, error) {
	signaturePath := filepath.Join(suiteDir, "Release.gpg")
	keyHandle := in.Archive.SigningKey
	if keyHandle == "" {
		if err := atomicfile.RemoveIfExists(signaturePath); err != nil {
			return false, fmt.Errorf("removing stale signature: %w", err)
		}
		return false, nil
	}

	var signErr error
	var signature []byte
	if a.signer == nil {
		signErr = errors.New("no signer configured")
	} else {
		signature, signErr = a.signer.Sign(ctx, content, keyHandle)
	}
	if signErr == nil {
		signErr = atomicfile.WriteFile(signaturePath, signature, 0644)
	}
	if signErr != nil {
		if err := atomicfile.RemoveIfExists(signaturePath); err != nil {
			a.logger.Warn("removing stale signature failed", "path", signaturePath, "error", err)
		}
		return false, &SigningError{Suite: in.suite(), KeyHandle: keyHandle, Err: signErr}
	}
	return true, nil
}

// syncTimestamps sets the mtime of every existing named file to the
// newest among them.
func syncTimestamps(suiteDir string, names []string) error {
	var paths []string
	var latest time.Time
	for _, name := range names {
		path := filepath.Join(suiteDir, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		paths = append(paths, path)
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	for _, path := range paths {
		if err := os.Chtimes(path, latest, latest); err != nil {
			return fmt.Errorf("setting timestamp of %s: %w", path, err)
		}
	}
	return nil
}
