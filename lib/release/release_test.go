// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/clock"
	"github.com/bureau-foundation/aptpublish/lib/index"
	"github.com/bureau-foundation/aptpublish/lib/testutil"
)

var testNow = time.Date(2026, time.October, 16, 9, 5, 3, 0, time.UTC)

type fakeSigner struct {
	err   error
	calls int
}

func (s *fakeSigner) Sign(_ context.Context, data []byte, keyHandle string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("signature of " + keyHandle + "\n"), nil
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, data, signature []byte) (string, error) {
	if !strings.HasPrefix(string(signature), "signature of ") {
		return "", errors.New("bad signature")
	}
	return strings.TrimSpace(strings.TrimPrefix(string(signature), "signature of ")), nil
}

func testArchive(t *testing.T, purpose archive.Purpose) (*archive.Archive, *archive.Series) {
	t.Helper()
	series := &archive.Series{
		Name:        "breezy-autotest",
		DisplayName: "Breezy Badger Autotest",
		Version:     "6.6.6",
		Status:      archive.Development,
		Components:  []string{"universe", "main"},
		Architectures: []archive.Architecture{
			{Tag: "i386", Enabled: true},
			{Tag: "hppa", Enabled: true},
		},
	}
	distribution := &archive.Distribution{
		Name:        "ubuntutest",
		DisplayName: "Ubuntutest",
		Series:      []*archive.Series{series},
	}
	a := &archive.Archive{
		ID:           1,
		Distribution: distribution,
		Purpose:      purpose,
		Owner:        "cprov",
		Name:         "ppa",
		DisplayName:  "PPA for Celso Providelo",
		Publish:      true,
		Status:       archive.ArchiveActive,
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
	return a, series
}

func writeIndex(t *testing.T, a *archive.Archive, path, content string) {
	t.Helper()
	if err := index.WriteAll(path, a.Paths.TempRoot, index.DefaultEncodings, strings.NewReader(content)); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func suiteInput(a *archive.Archive, series *archive.Series, pocket archive.Pocket) SuiteInput {
	return SuiteInput{
		Archive:       a,
		Series:        series,
		Pocket:        pocket,
		Components:    a.Components(series),
		Architectures: series.EnabledArchitectures(),
		Subcomponents: a.Subcomponents(),
		Encodings:     index.DefaultEncodings,
	}
}

func TestWriteSuite(t *testing.T) {
	a, series := testArchive(t, archive.Primary)
	suite := series.Suite(archive.Release)
	writeIndex(t, a, a.Paths.SourcesPath(suite, "main"), "Package: foo\n\n")
	writeIndex(t, a, a.Paths.PackagesPath(suite, "main", "i386", ""), "Package: foo-bin\n\n")
	i18nDir := a.Paths.I18nDir(suite, "main")
	testutil.WriteFile(t, filepath.Join(i18nDir, "Translation-en"), []byte("abc"))
	testutil.WriteFile(t, filepath.Join(i18nDir, "Translation-en.bz2"), []byte("abc"))
	testutil.WriteFile(t, filepath.Join(i18nDir, "Translation-en.gz"), []byte("abc"))

	assembler := New(Config{Clock: clock.Fake(testNow)})
	result, err := assembler.WriteSuite(context.Background(), suiteInput(a, series, archive.Release))
	if err != nil {
		t.Fatalf("WriteSuite: %v", err)
	}
	if result.Signed || len(result.Warnings) != 0 {
		t.Errorf("unsigned archive: Signed=%v Warnings=%v", result.Signed, result.Warnings)
	}

	suiteDir := a.Paths.SuiteDir(suite)
	release := string(testutil.ReadFile(t, filepath.Join(suiteDir, "Release")))
	wantHeader := strings.Join([]string{
		"Origin: Ubuntutest",
		"Label: Ubuntutest",
		"Suite: breezy-autotest",
		"Version: 6.6.6",
		"Codename: breezy-autotest",
		"Date: Fri, 16 Oct 2026  9:05:03 UTC",
		"Architectures: hppa i386",
		"Components: main universe",
		"Description: Ubuntutest Breezy Badger Autotest 6.6.6",
		"MD5Sum:",
	}, "\n")
	if !strings.HasPrefix(release, wantHeader) {
		t.Errorf("Release header:\n%s\nwant prefix:\n%s", release, wantHeader)
	}
	if strings.Contains(release, "NotAutomatic") {
		t.Error("RELEASE pocket carries NotAutomatic")
	}
	for _, listed := range []string{"main/source/Sources.gz", "main/binary-i386/Packages.bz2", "main/i18n/Index", "universe/source/Release"} {
		if !strings.Contains(release, " "+listed+"\n") {
			t.Errorf("Release does not list %s", listed)
		}
	}
	if strings.Contains(release, "Translation-en") {
		t.Error("Release lists translation files directly")
	}
	// Absent files are skipped.
	if strings.Contains(release, "universe/source/Sources") {
		t.Error("Release lists a Sources index that does not exist")
	}

	i18nIndex := string(testutil.ReadFile(t, filepath.Join(i18nDir, "Index")))
	wantIndex := "SHA1:\n a9993e364706816aba3e25717850c26c9cd0d89d 3 Translation-en.bz2\n"
	if i18nIndex != wantIndex {
		t.Errorf("i18n/Index = %q, want %q", i18nIndex, wantIndex)
	}

	archRelease := string(testutil.ReadFile(t, filepath.Join(suiteDir, "main", "binary-hppa", "Release")))
	wantArchRelease := "Archive: breezy-autotest\nVersion: 6.6.6\nComponent: main\nOrigin: Ubuntutest\nLabel: Ubuntutest\nArchitecture: hppa\n"
	if archRelease != wantArchRelease {
		t.Errorf("binary-hppa/Release = %q, want %q", archRelease, wantArchRelease)
	}

	verification, err := Verify(context.Background(), suiteDir, fakeVerifier{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verification.Files != len(result.Listed) {
		t.Errorf("Verify checked %d files, WriteSuite listed %d", verification.Files, len(result.Listed))
	}
	if verification.Suite != "breezy-autotest" {
		t.Errorf("Verify read Suite %q, want breezy-autotest", verification.Suite)
	}
	testutil.RequireMissing(t, filepath.Join(suiteDir, "Release.gpg"))
}

func TestWriteSuitePPA(t *testing.T) {
	a, series := testArchive(t, archive.PPA)
	assembler := New(Config{Clock: clock.Fake(testNow)})
	result, err := assembler.WriteSuite(context.Background(), suiteInput(a, series, archive.Release))
	if err != nil {
		t.Fatalf("WriteSuite: %v", err)
	}
	release := string(testutil.ReadFile(t, filepath.Join(a.Paths.SuiteDir(result.Suite), "Release")))
	for _, want := range []string{"Origin: LP-PPA-cprov\n", "Label: PPA for Celso Providelo\n", "Components: main\n"} {
		if !strings.Contains(release, want) {
			t.Errorf("PPA Release missing %q:\n%s", want, release)
		}
	}
}

func TestNotAutomaticBackports(t *testing.T) {
	tests := []struct {
		name     string
		pocket   archive.Pocket
		optedIn  bool
		wantFlag bool
	}{
		{"opted-in backports", archive.Backports, true, true},
		{"backports without opt-in", archive.Backports, false, false},
		{"opted-in updates", archive.Updates, true, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, series := testArchive(t, archive.Primary)
			series.BackportsNotAutomatic = test.optedIn
			assembler := New(Config{Clock: clock.Fake(testNow)})
			result, err := assembler.WriteSuite(context.Background(), suiteInput(a, series, test.pocket))
			if err != nil {
				t.Fatalf("WriteSuite: %v", err)
			}
			release := string(testutil.ReadFile(t, filepath.Join(a.Paths.SuiteDir(result.Suite), "Release")))
			hasFlag := strings.Contains(release, "NotAutomatic: yes\nButAutomaticUpgrades: yes\n")
			if hasFlag != test.wantFlag {
				t.Errorf("NotAutomatic present = %v, want %v:\n%s", hasFlag, test.wantFlag, release)
			}
			wantDescription := "Description: Ubuntutest Breezy Badger Autotest " + test.pocket.Title() + "\n"
			if !strings.Contains(release, wantDescription) {
				t.Errorf("Release missing %q", wantDescription)
			}
		})
	}
}

func TestSigning(t *testing.T) {
	a, series := testArchive(t, archive.Primary)
	a.SigningKey = "ABCDEF0123456789"
	signer := &fakeSigner{}
	assembler := New(Config{Signer: signer, Clock: clock.Fake(testNow)})
	in := suiteInput(a, series, archive.Release)
	suiteDir := a.Paths.SuiteDir(series.Suite(archive.Release))

	result, err := assembler.WriteSuite(context.Background(), in)
	if err != nil {
		t.Fatalf("WriteSuite: %v", err)
	}
	if !result.Signed || signer.calls != 1 {
		t.Fatalf("Signed=%v calls=%d, want signed once", result.Signed, signer.calls)
	}
	verification, err := Verify(context.Background(), suiteDir, fakeVerifier{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verification.Signer != a.SigningKey {
		t.Errorf("Verify signer = %q, want %q", verification.Signer, a.SigningKey)
	}

	// A failing signer leaves Release unsigned and removes the stale
	// signature.
	signer.err = errors.New("key unavailable")
	result, err = assembler.WriteSuite(context.Background(), in)
	if err != nil {
		t.Fatalf("WriteSuite with failing signer: %v", err)
	}
	if result.Signed {
		t.Error("Signed = true with a failing signer")
	}
	var signingError *SigningError
	if len(result.Warnings) != 1 || !errors.As(result.Warnings[0], &signingError) {
		t.Fatalf("Warnings = %v, want one *SigningError", result.Warnings)
	}
	testutil.RequireMissing(t, filepath.Join(suiteDir, "Release.gpg"))
	if _, err := os.Stat(filepath.Join(suiteDir, "Release")); err != nil {
		t.Errorf("Release missing after signing failure: %v", err)
	}

	// Dropping the key also drops the signature.
	signer.err = nil
	if _, err := assembler.WriteSuite(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	a.SigningKey = ""
	if _, err := assembler.WriteSuite(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	testutil.RequireMissing(t, filepath.Join(suiteDir, "Release.gpg"))
}

func TestTimestampsSynchronised(t *testing.T) {
	a, series := testArchive(t, archive.Primary)
	suite := series.Suite(archive.Release)
	sources := a.Paths.SourcesPath(suite, "main")
	writeIndex(t, a, sources, "Package: foo\n\n")
	testutil.SetMtime(t, sources, testNow.Add(-48*time.Hour))

	assembler := New(Config{Clock: clock.Fake(testNow)})
	result, err := assembler.WriteSuite(context.Background(), suiteInput(a, series, archive.Release))
	if err != nil {
		t.Fatalf("WriteSuite: %v", err)
	}
	suiteDir := a.Paths.SuiteDir(suite)
	want := testutil.Mtime(t, filepath.Join(suiteDir, "Release"))
	for _, name := range result.Listed {
		if got := testutil.Mtime(t, filepath.Join(suiteDir, name)); !got.Equal(want) {
			t.Errorf("mtime of %s = %v, want %v", name, got, want)
		}
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	a, series := testArchive(t, archive.Primary)
	suite := series.Suite(archive.Release)
	sources := a.Paths.SourcesPath(suite, "main")
	writeIndex(t, a, sources, "Package: foo\n\n")

	assembler := New(Config{Clock: clock.Fake(testNow)})
	if _, err := assembler.WriteSuite(context.Background(), suiteInput(a, series, archive.Release)); err != nil {
		t.Fatalf("WriteSuite: %v", err)
	}
	testutil.WriteFile(t, sources, []byte("Package: bar\n\n"))
	if _, err := Verify(context.Background(), a.Paths.SuiteDir(suite), nil); err == nil {
		t.Error("Verify accepted a modified Sources")
	}
}

func TestVerifyEmptyRelease(t *testing.T) {
	suiteDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(suiteDir, "Release"), nil)
	_, err := Verify(context.Background(), suiteDir, nil)
	if err == nil || !strings.Contains(err.Error(), "empty Release file") {
		t.Errorf("Verify of an empty Release = %v, want an empty Release error", err)
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		when time.Time
		want string
	}{
		{testNow, "Fri, 16 Oct 2026  9:05:03 UTC"},
		{time.Date(2026, time.January, 2, 23, 0, 9, 0, time.UTC), "Fri, 02 Jan 2026 23:00:09 UTC"},
		{time.Date(2026, time.January, 2, 1, 0, 0, 0, time.FixedZone("CET", 3600)), "Fri, 02 Jan 2026  0:00:00 UTC"},
	}
	for _, test := range tests {
		if got := FormatDate(test.when); got != test.want {
			t.Errorf("FormatDate(%v) = %q, want %q", test.when, got, test.want)
		}
	}
}

func TestReorderComponents(t *testing.T) {
	got := ReorderComponents([]string{"partner", "multiverse", "extra", "main", "universe"})
	want := []string{"main", "universe", "multiverse", "partner", "extra"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("ReorderComponents = %v, want %v", got, want)
	}
}

func TestChecksumBlockAlignsSizes(t *testing.T) {
	entries := []fileDigest{
		{name: "main/source/Sources", size: 5, sha1: "aaa"},
		{name: "main/source/Sources.gz", size: 12345, sha1: "bbb"},
	}
	got := checksumBlock("SHA1", entries, func(e fileDigest) string { return e.sha1 })
	want := "SHA1:\n aaa     5 main/source/Sources\n bbb 12345 main/source/Sources.gz"
	if got != want {
		t.Errorf("checksumBlock =\n%s\nwant\n%s", got, want)
	}
}
