// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
	"github.com/bureau-foundation/aptpublish/lib/clock"
	"github.com/bureau-foundation/aptpublish/lib/index"
	"github.com/bureau-foundation/aptpublish/lib/journal"
	"github.com/bureau-foundation/aptpublish/lib/pool"
	"github.com/bureau-foundation/aptpublish/lib/release"
	"github.com/bureau-foundation/aptpublish/lib/testutil"
)

var runTime = time.Date(2026, time.October, 16, 9, 5, 3, 0, time.UTC)

const (
	breezy = "breezy-autotest"
	hoary  = "hoary-test"
)

type harness struct {
	archive *archive.Archive
	catalog *catalog.Memory
	pool    *pool.Store
	clock   *clock.FakeClock
}

func newHarness(t *testing.T, purpose archive.Purpose) *harness {
	t.Helper()
	distribution := &archive.Distribution{
		Name:        "ubuntutest",
		DisplayName: "Ubuntutest",
		Series: []*archive.Series{
			{
				Name: breezy, DisplayName: "Breezy Badger Autotest", Version: "6.6.6",
				Status:     archive.Development,
				Components: []string{"main", "universe"},
				Architectures: []archive.Architecture{
					{Tag: "i386", Enabled: true},
					{Tag: "hppa", Enabled: true},
				},
				IncludeLongDescriptions: true,
			},
			{
				Name: hoary, DisplayName: "Hoary Crazy-Test", Version: "5.04",
				Status:                  archive.Current,
				Components:              []string{"main"},
				Architectures:           []archive.Architecture{{Tag: "i386", Enabled: true}},
				IncludeLongDescriptions: true,
			},
		},
	}
	a := &archive.Archive{
		ID:           1,
		Distribution: distribution,
		Purpose:      purpose,
		Owner:        "cprov",
		Name:         "ppa",
		DisplayName:  "PPA for Celso Providelo",
		Publish:      true,
	}
	root := t.TempDir()
	paths, err := archive.Roots{
		DistroRoot:  filepath.Join(root, "distro"),
		PPARoot:     filepath.Join(root, "ppa"),
		PPAMetaRoot: filepath.Join(root, "ppa-meta"),
	}.PathsFor(a)
	if err != nil {
		t.Fatalf("PathsFor: %v", err)
	}
	a.Paths = paths

	store, err := pool.New(pool.Config{PoolRoot: paths.PoolRoot, ObjectRoot: paths.ObjectRoot, TempRoot: paths.TempRoot})
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	return &harness{archive: a, catalog: catalog.NewMemory(), pool: store, clock: clock.Fake(runTime)}
}

func (h *harness) publisher(t *testing.T, adjust func(*Config)) *Publisher {
	t.Helper()
	config := Config{
		Archive:  h.archive,
		Catalog:  h.catalog,
		Pool:     h.pool,
		Releases: release.New(release.Config{Clock: h.clock}),
		Clock:    h.clock,
	}
	if adjust != nil {
		adjust(&config)
	}
	p, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func (h *harness) run(t *testing.T, options Options, adjust func(*Config)) *Report {
	t.Helper()
	report, err := h.publisher(t, adjust).Run(context.Background(), options)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func measured(t *testing.T, filename, content string) archive.PackageFile {
	t.Helper()
	file := archive.PackageFile{Filename: filename, Data: []byte(content)}
	digests, err := pool.Measure(file)
	if err != nil {
		t.Fatalf("measuring %s: %v", filename, err)
	}
	file.Size = digests.Size
	file.MD5 = digests.MD5
	file.SHA1 = digests.SHA1
	file.SHA256 = digests.SHA256
	return file
}

func (h *harness) addSource(t *testing.T, series string, pocket archive.Pocket, status archive.PublicationStatus, name, version string, files ...archive.PackageFile) *archive.SourcePublication {
	t.Helper()
	pub := &archive.SourcePublication{
		Publication: archive.Publication{
			ArchiveID: h.archive.ID, Series: series, Pocket: pocket,
			Component: "main", Section: "base", Status: status,
		},
		Name:         name,
		Version:      version,
		Binaries:     []string{name + "-bin"},
		Maintainer:   "Foo Bar <foo@bar.com>",
		Architecture: "all",
		Files:        files,
	}
	if err := h.catalog.AddSource(context.Background(), pub); err != nil {
		t.Fatal(err)
	}
	return pub
}

func (h *harness) addBinary(t *testing.T, series string, pocket archive.Pocket, name, arch string, format archive.BinaryFormat, file archive.PackageFile) *archive.BinaryPublication {
	t.Helper()
	pub := &archive.BinaryPublication{
		Publication: archive.Publication{
			ArchiveID: h.archive.ID, Series: series, Pocket: pocket,
			Component: "main", Section: "base", Status: archive.Pending,
		},
		Name:          name,
		Version:       "666",
		SourceName:    "foo",
		Architecture:  arch,
		ArchSpecific:  true,
		Format:        format,
		Priority:      "standard",
		InstalledSize: 100,
		Maintainer:    "Foo Bar <foo@bar.com>",
		Summary:       "Foo app is great",
		Description:   "Well ...\nit does nothing, though",
		File:          file,
	}
	if err := h.catalog.AddBinary(context.Background(), pub); err != nil {
		t.Fatal(err)
	}
	return pub
}

func (h *harness) suiteDir(suite string) string { return h.archive.Paths.SuiteDir(suite) }

func requireClean(t *testing.T, report *Report) {
	t.Helper()
	if len(report.Errors) > 0 {
		t.Fatalf("run reported errors: %v", report.Errors)
	}
}

// snapshot returns the content of every regular file under root.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			files[path] = string(testutil.ReadFile(t, path))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
	return files
}

func TestPublishSourceEndToEnd(t *testing.T) {
	h := newHarness(t, archive.Primary)
	pub := h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_1.dsc", "Hello world"))

	report := h.run(t, Options{}, nil)
	requireClean(t, report)
	if report.Published != 1 {
		t.Errorf("Published = %d, want 1", report.Published)
	}
	if !slices.Equal(report.Dirty, []string{breezy}) || !slices.Equal(report.ReleasesWritten, []string{breezy}) {
		t.Errorf("Dirty = %v, ReleasesWritten = %v; want [%s] for both", report.Dirty, report.ReleasesWritten, breezy)
	}
	if report.RunID == "" {
		t.Error("report has no run ID")
	}

	poolPath := filepath.Join(h.archive.Paths.PoolRoot, "main", "f", "foo", "foo_1.dsc")
	if got := string(testutil.ReadFile(t, poolPath)); got != "Hello world" {
		t.Errorf("pool file content = %q", got)
	}

	sources := string(testutil.ReadFile(t, h.archive.Paths.SourcesPath(breezy, "main")))
	for _, want := range []string{
		"Package: foo\n",
		"Directory: pool/main/f/foo\n",
		"Files:\n 3e25960a79dbc69b674cd4ec67a72c62 11 foo_1.dsc\n",
	} {
		if !strings.Contains(sources, want) {
			t.Errorf("Sources lacks %q:\n%s", want, sources)
		}
	}
	universe := testutil.ReadFile(t, h.archive.Paths.SourcesPath(breezy, "universe"))
	if len(universe) != 0 {
		t.Errorf("universe Sources = %q, want empty", universe)
	}

	sum := md5.Sum([]byte(sources))
	releaseText := string(testutil.ReadFile(t, filepath.Join(h.suiteDir(breezy), "Release")))
	sourcesLine := ""
	for _, line := range strings.Split(releaseText, "\n") {
		if strings.HasSuffix(line, " main/source/Sources") {
			sourcesLine = line
			break
		}
	}
	fields := strings.Fields(sourcesLine)
	if len(fields) != 3 || fields[0] != hex.EncodeToString(sum[:]) || fields[1] != strconv.Itoa(len(sources)) {
		t.Errorf("Release MD5Sum entry for main/source/Sources = %q, want digest %x and size %d", sourcesLine, sum, len(sources))
	}

	stored, _ := h.catalog.Source(pub.ID)
	if stored.Status != archive.Published || !stored.DatePublished.Equal(runTime) {
		t.Errorf("catalog: status %v published %v", stored.Status, stored.DatePublished)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	h.addBinary(t, breezy, archive.Release, "foo-bin", "i386", archive.DEB, measured(t, "foo-bin_666_i386.deb", "binary"))
	requireClean(t, h.run(t, Options{}, nil))
	before := snapshot(t, h.archive.Paths.DistsRoot)

	second := h.run(t, Options{}, nil)
	requireClean(t, second)
	if len(second.Dirty) != 0 || len(second.ReleasesWritten) != 0 {
		t.Errorf("second run: Dirty = %v, ReleasesWritten = %v; want nothing", second.Dirty, second.ReleasesWritten)
	}

	careful := h.run(t, Options{Careful: true}, nil)
	requireClean(t, careful)
	if !slices.Contains(careful.ReleasesWritten, breezy) {
		t.Fatalf("careful run did not rewrite %s: %v", breezy, careful.ReleasesWritten)
	}
	after := snapshot(t, h.archive.Paths.DistsRoot)
	for path, content := range before {
		if after[path] != content {
			t.Errorf("%s changed after a careful rerun", path)
		}
	}
}

func TestCarefulReleaseLeavesUnchangedSuitesAlone(t *testing.T) {
	h := newHarness(t, archive.Primary)
	report := h.run(t, Options{CarefulRelease: true}, nil)
	requireClean(t, report)
	if len(report.ReleasesWritten) != 0 {
		t.Errorf("ReleasesWritten = %v, want none", report.ReleasesWritten)
	}
	testutil.RequireMissing(t, filepath.Join(h.suiteDir(hoary), "Release"))
	testutil.RequireMissing(t, filepath.Join(h.suiteDir(breezy), "Release"))
}

func TestIdenticalContentSharesOneInode(t *testing.T) {
	h := newHarness(t, archive.Primary)
	file := measured(t, "foo_666.dsc", "Hello world")
	h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", file)
	h.addSource(t, breezy, archive.Updates, archive.Pending, "foo", "666", file)
	requireClean(t, h.run(t, Options{}, nil))

	poolPath := h.pool.PathFor("main", "foo", "foo_666.dsc")
	links, err := pool.Links(poolPath)
	if err != nil {
		t.Fatal(err)
	}
	if links < 2 {
		t.Errorf("%s has %d links, want at least 2", poolPath, links)
	}
	objects := 0
	err = filepath.WalkDir(h.archive.Paths.ObjectRoot, func(path string, entry fs.DirEntry, err error) error {
		if err == nil && entry.Type().IsRegular() {
			objects++
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if objects != 1 {
		t.Errorf("object store holds %d files, want 1", objects)
	}
}

func TestReleaseChecksumsMatchDisk(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	h.addBinary(t, breezy, archive.Release, "foo-bin", "i386", archive.DEB, measured(t, "foo-bin_666_i386.deb", "binary"))
	h.addBinary(t, breezy, archive.Release, "foo-udeb", "i386", archive.UDEB, measured(t, "foo-udeb_666_i386.udeb", "installer"))
	report := h.run(t, Options{}, nil)
	requireClean(t, report)

	verification, err := release.Verify(context.Background(), h.suiteDir(breezy), nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verification.Suite != breezy || verification.Files == 0 {
		t.Errorf("Verify = %+v", verification)
	}

	installer := string(testutil.ReadFile(t, h.archive.Paths.PackagesPath(breezy, "main", "i386", archive.SubcomponentInstaller)))
	if !strings.Contains(installer, "Package: foo-udeb\n") {
		t.Errorf("debian-installer Packages lacks foo-udeb:\n%s", installer)
	}
	packages := string(testutil.ReadFile(t, h.archive.Paths.PackagesPath(breezy, "main", "i386", "")))
	if strings.Contains(packages, "foo-udeb") || !strings.Contains(packages, "Package: foo-bin\n") {
		t.Errorf("main Packages:\n%s", packages)
	}
	if hppa := testutil.ReadFile(t, h.archive.Paths.PackagesPath(breezy, "main", "hppa", "")); len(hppa) != 0 {
		t.Errorf("hppa Packages = %q, want empty", hppa)
	}
}

func TestCompressedIndexesMatchPlain(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	h.addBinary(t, breezy, archive.Release, "foo-bin", "i386", archive.DEB, measured(t, "foo-bin_666_i386.deb", "binary"))
	requireClean(t, h.run(t, Options{}, func(c *Config) {
		c.Encodings = []index.Encoding{index.Gzip, index.Bzip2, index.XZ, index.Zstd}
	}))

	compressed := 0
	for path := range snapshot(t, h.archive.Paths.DistsRoot) {
		plainPath := path
		for _, suffix := range []string{".gz", ".bz2", ".xz", ".zst"} {
			plainPath = strings.TrimSuffix(plainPath, suffix)
		}
		if plainPath == path {
			continue
		}
		compressed++
		decompressed, err := index.ReadDecompressed(path)
		if err != nil {
			t.Fatalf("decompressing %s: %v", path, err)
		}
		if string(decompressed) != string(testutil.ReadFile(t, plainPath)) {
			t.Errorf("%s does not decompress to %s", path, plainPath)
		}
		testutil.RequireMode(t, path, 0o644)
	}
	if compressed == 0 {
		t.Fatal("no compressed indexes written")
	}
}

func TestAllowedSuitesLimitTheRun(t *testing.T) {
	h := newHarness(t, archive.Primary)
	pub := h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	allowed := archive.SuiteKey{Series: breezy, Pocket: archive.Updates}

	p := h.publisher(t, func(c *Config) { c.AllowedSuites = []archive.SuiteKey{allowed} })
	report, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	requireClean(t, report)
	if p.IsDirty(archive.SuiteKey{Series: breezy, Pocket: archive.Release}) || len(report.Dirty) != 0 {
		t.Errorf("Dirty = %v, want empty", report.Dirty)
	}
	testutil.RequireMissing(t, h.suiteDir(breezy))
	testutil.RequireMissing(t, h.pool.PathFor("main", "foo", "foo_666.dsc"))
	if stored, _ := h.catalog.Source(pub.ID); stored.Status != archive.Pending {
		t.Errorf("status = %v, want pending", stored.Status)
	}
}

func TestStableReleasePocketNotDirtiedByRemovals(t *testing.T) {
	h := newHarness(t, archive.Primary)
	for _, pocket := range []archive.Pocket{archive.Release, archive.Security, archive.Updates, archive.Backports} {
		h.addSource(t, hoary, pocket, archive.Superseded, "foo", "1")
	}
	p := h.publisher(t, nil)
	if err := p.MarkDeletionsDirty(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.IsDirty(archive.SuiteKey{Series: hoary, Pocket: archive.Release}) {
		t.Error("RELEASE pocket of a current series marked dirty")
	}
	for _, pocket := range []archive.Pocket{archive.Security, archive.Updates, archive.Backports} {
		if !p.IsDirty(archive.SuiteKey{Series: hoary, Pocket: pocket}) {
			t.Errorf("%s not marked dirty", hoary+pocket.Suffix())
		}
	}
	if p.IsDirty(archive.SuiteKey{Series: hoary, Pocket: archive.Proposed}) {
		t.Error("pocket without removals marked dirty")
	}
}

func TestRemovalsInObsoleteSeriesDirtyTheSuite(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.archive.Distribution.Series[1].Status = archive.Obsolete
	h.addSource(t, hoary, archive.Security, archive.Superseded, "foo", "1")
	p := h.publisher(t, nil)
	if err := p.MarkDeletionsDirty(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !p.IsDirty(archive.SuiteKey{Series: hoary, Pocket: archive.Security}) {
		t.Errorf("%s of an obsolete series not marked dirty", hoary+archive.Security.Suffix())
	}
}

func TestRemovedPublicationsDoNotDirty(t *testing.T) {
	h := newHarness(t, archive.Primary)
	pub := h.addSource(t, breezy, archive.Release, archive.Deleted, "foo", "1")
	if err := h.catalog.StampRemoved(context.Background(), archive.SourceKind, []int64{pub.ID}, runTime); err != nil {
		t.Fatal(err)
	}
	p := h.publisher(t, nil)
	if err := p.MarkDeletionsDirty(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(p.DirtySuites()) != 0 {
		t.Errorf("DirtySuites = %v, want none", p.DirtySuites())
	}
}

func TestFrozenSuiteRejectsPublications(t *testing.T) {
	h := newHarness(t, archive.Primary)
	pub := h.addSource(t, hoary, archive.Release, archive.Pending, "foo", "1", measured(t, "foo_1.dsc", "Hello world"))
	report := h.run(t, Options{}, nil)

	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %v, want one", report.Errors)
	}
	var stateErr *SuiteStateError
	var pubErr *PublicationError
	if !errors.As(report.Errors[0], &stateErr) || !errors.As(report.Errors[0], &pubErr) {
		t.Fatalf("error %v is not a SuiteStateError inside a PublicationError", report.Errors[0])
	}
	if pubErr.ID != pub.ID || stateErr.Suite != hoary {
		t.Errorf("error identifies publication %d in %s", pubErr.ID, stateErr.Suite)
	}
	testutil.RequireMissing(t, h.pool.PathFor("main", "foo", "foo_1.dsc"))
	testutil.RequireMissing(t, h.suiteDir(hoary))
	if stored, _ := h.catalog.Source(pub.ID); stored.Status != archive.Pending {
		t.Errorf("status = %v, want pending", stored.Status)
	}
}

func TestPPAMayUpdateStableRelease(t *testing.T) {
	h := newHarness(t, archive.PPA)
	h.addSource(t, hoary, archive.Release, archive.Pending, "foo", "1", measured(t, "foo_1.dsc", "Hello world"))
	report := h.run(t, Options{}, nil)
	requireClean(t, report)
	if !slices.Equal(report.ReleasesWritten, []string{hoary}) {
		t.Errorf("ReleasesWritten = %v, want [%s]", report.ReleasesWritten, hoary)
	}
	// PPAs publish into main only and carry the installer tree.
	testutil.RequireMissing(t, filepath.Join(h.suiteDir(hoary), "universe"))
	if _, err := os.Stat(h.archive.Paths.PackagesPath(hoary, "main", "i386", archive.SubcomponentInstaller)); err != nil {
		t.Errorf("debian-installer Packages missing: %v", err)
	}
	release := string(testutil.ReadFile(t, filepath.Join(h.suiteDir(hoary), "Release")))
	if !strings.Contains(release, "Origin: LP-PPA-cprov\n") {
		t.Errorf("PPA Release lacks its Origin:\n%s", release)
	}
}

func TestPoolConflictIsolatedToOnePublication(t *testing.T) {
	h := newHarness(t, archive.Primary)
	first := h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "1", measured(t, "foo_1.orig.tar.gz", "original"))
	clash := h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "1.1", measured(t, "foo_1.orig.tar.gz", "different"))
	other := h.addSource(t, breezy, archive.Release, archive.Pending, "bar", "1", measured(t, "bar_1.dsc", "bar"))

	report := h.run(t, Options{}, nil)
	if len(report.Errors) != 1 || !errors.Is(report.Errors[0], pool.ErrConflict) {
		t.Fatalf("Errors = %v, want one pool conflict", report.Errors)
	}
	for _, want := range []struct {
		id     int64
		status archive.PublicationStatus
	}{
		{first.ID, archive.Published},
		{clash.ID, archive.Pending},
		{other.ID, archive.Published},
	} {
		if stored, _ := h.catalog.Source(want.id); stored.Status != want.status {
			t.Errorf("source %d status = %v, want %v", want.id, stored.Status, want.status)
		}
	}
	if got := string(testutil.ReadFile(t, h.pool.PathFor("main", "foo", "foo_1.orig.tar.gz"))); got != "original" {
		t.Errorf("pool content overwritten: %q", got)
	}
	if !slices.Equal(report.ReleasesWritten, []string{breezy}) {
		t.Errorf("ReleasesWritten = %v", report.ReleasesWritten)
	}
}

func TestChecksumMismatchLeavesPublicationPending(t *testing.T) {
	h := newHarness(t, archive.Primary)
	file := measured(t, "foo_1.dsc", "Hello world")
	file.Data = []byte("Hello wOrld")
	pub := h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "1", file)

	report := h.run(t, Options{}, nil)
	var checksumErr *pool.ChecksumError
	if len(report.Errors) != 1 || !errors.As(report.Errors[0], &checksumErr) {
		t.Fatalf("Errors = %v, want one checksum error", report.Errors)
	}
	testutil.RequireMissing(t, h.pool.PathFor("main", "foo", "foo_1.dsc"))
	if stored, _ := h.catalog.Source(pub.ID); stored.Status != archive.Pending {
		t.Errorf("status = %v, want pending", stored.Status)
	}
}

func TestDebugSymbols(t *testing.T) {
	for _, publishDebug := range []bool{false, true} {
		t.Run(strconv.FormatBool(publishDebug), func(t *testing.T) {
			h := newHarness(t, archive.Primary)
			h.archive.PublishDebugSymbols = publishDebug
			pub := h.addBinary(t, breezy, archive.Release, "foo-dbgsym", "i386", archive.DDEB, measured(t, "foo-dbgsym_666_i386.ddeb", "symbols"))
			requireClean(t, h.run(t, Options{}, nil))

			if stored, _ := h.catalog.Binary(pub.ID); stored.Status != archive.Published {
				t.Errorf("status = %v, want published", stored.Status)
			}
			poolPath := h.pool.PathFor("main", "foo", "foo-dbgsym_666_i386.ddeb")
			debugPackages := h.archive.Paths.PackagesPath(breezy, "main", "i386", archive.SubcomponentDebug)
			if !publishDebug {
				testutil.RequireMissing(t, poolPath)
				testutil.RequireMissing(t, debugPackages)
				return
			}
			if _, err := os.Stat(poolPath); err != nil {
				t.Errorf("ddeb not in pool: %v", err)
			}
			if content := string(testutil.ReadFile(t, debugPackages)); !strings.Contains(content, "Package: foo-dbgsym\n") {
				t.Errorf("debug Packages:\n%s", content)
			}
		})
	}
}

func TestTranslationsWithoutLongDescriptions(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.archive.Distribution.Series[0].IncludeLongDescriptions = false
	h.addBinary(t, breezy, archive.Release, "foo-bin", "i386", archive.DEB, measured(t, "foo-bin_666_i386.deb", "binary"))
	h.addBinary(t, breezy, archive.Release, "foo-bin", "hppa", archive.DEB, measured(t, "foo-bin_666_hppa.deb", "binary"))
	requireClean(t, h.run(t, Options{}, nil))

	packages := string(testutil.ReadFile(t, h.archive.Paths.PackagesPath(breezy, "main", "i386", "")))
	if !strings.Contains(packages, "Description: Foo app is great\nDescription-md5: ") {
		t.Errorf("Packages lacks summary and Description-md5:\n%s", packages)
	}
	i18nDir := h.archive.Paths.I18nDir(breezy, "main")
	translation := string(testutil.ReadFile(t, filepath.Join(i18nDir, "Translation-en")))
	if strings.Count(translation, "Package: foo-bin\n") != 1 {
		t.Errorf("Translation-en should hold foo-bin once:\n%s", translation)
	}
	if _, err := os.Stat(filepath.Join(i18nDir, "Translation-en.bz2")); err != nil {
		t.Error(err)
	}
	testutil.RequireMissing(t, filepath.Join(i18nDir, "Translation-en.gz"))

	verification, err := release.Verify(context.Background(), h.suiteDir(breezy), nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	releaseText := string(testutil.ReadFile(t, filepath.Join(h.suiteDir(breezy), "Release")))
	if !strings.Contains(releaseText, " main/i18n/Index\n") || verification.Files == 0 {
		t.Errorf("Release does not list main/i18n/Index:\n%s", releaseText)
	}
}

func TestJournalResumesInterruptedRun(t *testing.T) {
	h := newHarness(t, archive.Primary)
	pub := h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	ctx := context.Background()

	openJournal := func() *journal.Journal {
		j, err := journal.Open(h.archive.Paths.MetaRoot, h.archive.ID, nil)
		if err != nil {
			t.Fatalf("journal.Open: %v", err)
		}
		return j
	}

	// The first run dies after phase A and the journal write.
	interrupted := h.publisher(t, func(c *Config) { c.Journal = openJournal() })
	if err := interrupted.PublishPending(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := interrupted.recordStale(ctx); err != nil {
		t.Fatal(err)
	}
	if stored, _ := h.catalog.Source(pub.ID); stored.Status != archive.Published {
		t.Fatalf("status = %v, want published", stored.Status)
	}
	testutil.RequireMissing(t, filepath.Join(h.suiteDir(breezy), "Release"))

	j := openJournal()
	report := h.run(t, Options{}, func(c *Config) { c.Journal = j })
	requireClean(t, report)
	if len(report.Dirty) != 0 {
		t.Errorf("Dirty = %v, want nothing new", report.Dirty)
	}
	if !slices.Equal(report.ReleasesWritten, []string{breezy}) {
		t.Errorf("ReleasesWritten = %v, want [%s]", report.ReleasesWritten, breezy)
	}
	testutil.RequireMissing(t, j.Path())
	sources := string(testutil.ReadFile(t, h.archive.Paths.SourcesPath(breezy, "main")))
	if !strings.Contains(sources, "Package: foo\n") {
		t.Errorf("Sources after resumed run:\n%s", sources)
	}
}

type recordingDominator struct {
	suites []string
	err    error
}

func (d *recordingDominator) Dominate(_ context.Context, _ *archive.Archive, suite archive.SuiteKey) error {
	d.suites = append(d.suites, suite.Name())
	return d.err
}

func TestDominatorSeesDirtySuites(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.addSource(t, breezy, archive.Updates, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	dominator := &recordingDominator{err: errors.New("domination exploded")}
	report := h.run(t, Options{}, func(c *Config) { c.Dominator = dominator })

	if !slices.Equal(dominator.suites, []string{breezy + "-updates"}) {
		t.Errorf("dominated %v, want [%s-updates]", dominator.suites, breezy)
	}
	if len(report.Errors) != 1 || !slices.Equal(report.ReleasesWritten, []string{breezy + "-updates"}) {
		t.Errorf("a domination failure must not stop the suite: Errors = %v, ReleasesWritten = %v", report.Errors, report.ReleasesWritten)
	}
}

func TestCarefulPublishingRestoresMissingPoolFiles(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.addSource(t, breezy, archive.Release, archive.Published, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	poolPath := h.pool.PathFor("main", "foo", "foo_666.dsc")

	report := h.run(t, Options{}, nil)
	requireClean(t, report)
	testutil.RequireMissing(t, poolPath)

	report = h.run(t, Options{CarefulPublishing: true}, nil)
	requireClean(t, report)
	if report.Published != 0 {
		t.Errorf("Published = %d, want 0 for an already published source", report.Published)
	}
	if got := string(testutil.ReadFile(t, poolPath)); got != "Hello world" {
		t.Errorf("restored content = %q", got)
	}
	if !slices.Equal(report.ReleasesWritten, []string{breezy}) {
		t.Errorf("ReleasesWritten = %v", report.ReleasesWritten)
	}
}

type failingSigner struct{}

func (failingSigner) Sign(context.Context, []byte, string) ([]byte, error) {
	return nil, errors.New("signing service unavailable")
}

func TestSigningFailureIsAWarning(t *testing.T) {
	h := newHarness(t, archive.PPA)
	h.archive.SigningKey = "0123456789ABCDEF"
	h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	report := h.run(t, Options{}, func(c *Config) {
		c.Releases = release.New(release.Config{Signer: failingSigner{}, Clock: h.clock})
	})
	requireClean(t, report)
	var signingErr *release.SigningError
	if len(report.Warnings) != 1 || !errors.As(report.Warnings[0], &signingErr) {
		t.Fatalf("Warnings = %v, want one signing error", report.Warnings)
	}
	if _, err := os.Stat(filepath.Join(h.suiteDir(breezy), "Release")); err != nil {
		t.Errorf("Release not written: %v", err)
	}
	testutil.RequireMissing(t, filepath.Join(h.suiteDir(breezy), "Release.gpg"))
}

func TestSeriesAliasesAfterPublishing(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.archive.Distribution.DevelopmentSeriesAlias = "devel"
	h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	requireClean(t, h.run(t, Options{}, func(c *Config) { c.CreateAliases = true }))

	target, err := os.Readlink(filepath.Join(h.archive.Paths.DistsRoot, "devel"))
	if err != nil || target != breezy {
		t.Errorf("devel -> %q (%v), want %s", target, err, breezy)
	}
}

func TestCancelledRunStopsBetweenPhases(t *testing.T) {
	h := newHarness(t, archive.Primary)
	h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "666", measured(t, "foo_666.dsc", "Hello world"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.publisher(t, nil).Run(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run with cancelled context: err = %v", err)
	}
	testutil.RequireMissing(t, h.suiteDir(breezy))
}

func TestDeathRowKeepsSharedFiles(t *testing.T) {
	h := newHarness(t, archive.Primary)
	orig := measured(t, "foo_1.orig.tar.gz", "original")
	condemnedPub := h.addSource(t, breezy, archive.Release, archive.Pending, "foo", "1-1", orig, measured(t, "foo_1-1.dsc", "first"))
	h.addSource(t, breezy, archive.Updates, archive.Pending, "foo", "1-2", orig, measured(t, "foo_1-2.dsc", "second"))
	later := h.addSource(t, breezy, archive.Release, archive.Pending, "bar", "1", measured(t, "bar_1.dsc", "bar"))
	requireClean(t, h.run(t, Options{}, nil))

	ctx := context.Background()
	if err := h.catalog.RequestDeletion(ctx, archive.SourceKind, []int64{condemnedPub.ID}, "archive-admin", "obsolete", runTime); err != nil {
		t.Fatal(err)
	}
	if err := h.catalog.RequestDeletion(ctx, archive.SourceKind, []int64{later.ID}, "archive-admin", "later", runTime.Add(48*time.Hour)); err != nil {
		t.Fatal(err)
	}

	report, err := h.publisher(t, nil).ProcessDeathRow(ctx, runTime)
	if err != nil {
		t.Fatalf("ProcessDeathRow: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("Errors = %v", report.Errors)
	}
	if report.Condemned != 1 || report.Removed != 1 || report.Kept != 1 || report.Stamped != 1 {
		t.Errorf("report = %+v, want 1 condemned, 1 removed, 1 kept, 1 stamped", report)
	}
	testutil.RequireMissing(t, h.pool.PathFor("main", "foo", "foo_1-1.dsc"))
	for _, name := range []string{"foo_1.orig.tar.gz", "foo_1-2.dsc"} {
		if _, err := os.Stat(h.pool.PathFor("main", "foo", name)); err != nil {
			t.Errorf("%s removed: %v", name, err)
		}
	}
	if _, err := os.Stat(h.pool.PathFor("main", "bar", "bar_1.dsc")); err != nil {
		t.Errorf("file of a publication not yet due was removed: %v", err)
	}
	if stored, _ := h.catalog.Source(condemnedPub.ID); !stored.DateRemoved.Equal(runTime) {
		t.Errorf("DateRemoved = %v, want %v", stored.DateRemoved, runTime)
	}
	if stored, _ := h.catalog.Source(later.ID); !stored.DateRemoved.IsZero() {
		t.Errorf("publication not yet due stamped removed at %v", stored.DateRemoved)
	}

	again, err := h.publisher(t, nil).ProcessDeathRow(ctx, runTime)
	if err != nil || again.Condemned != 0 {
		t.Errorf("second pass: %+v, %v; want nothing condemned", again, err)
	}
}
