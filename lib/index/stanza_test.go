// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"strings"
	"testing"

	"pault.ag/go/debian/control"

	"github.com/bureau-foundation/aptpublish/lib/archive"
)

const (
	helloMD5    = "3e25960a79dbc69b674cd4ec67a72c62"
	helloSHA1   = "7b502c3a1f48c8609ae212cdfb639dee39673f5e"
	helloSHA256 = "64ec88ca00b268e5ba1a35678a1b5316d212f4f366b2477232534a8aeca37f3c"
)

func helloFile(name string) archive.PackageFile {
	return archive.PackageFile{
		Filename: name,
		Size:     11,
		MD5:      helloMD5,
		SHA1:     helloSHA1,
		SHA256:   helloSHA256,
		Data:     []byte("Hello world"),
	}
}

func fooSource() *archive.SourcePublication {
	return &archive.SourcePublication{
		Publication: archive.Publication{
			ID:        1,
			Series:    "breezy-autotest",
			Pocket:    archive.Release,
			Component: "main",
			Section:   "base",
			Status:    archive.Pending,
		},
		Name:                "foo",
		Version:             "666",
		Binaries:            []string{"foo-bin"},
		Maintainer:          "Foo Bar <foo@bar.com>",
		Architecture:        "all",
		StandardsVersion:    "3.6.2",
		Format:              "1.0",
		BuildDepends:        "fooish",
		BuildDependsIndep:   "pyfoo",
		BuildConflicts:      "bar",
		BuildConflictsIndep: "pybar",
		Files:               []archive.PackageFile{helloFile("foo_666.dsc")},
	}
}

func fooBinary() *archive.BinaryPublication {
	return &archive.BinaryPublication{
		Publication: archive.Publication{
			ID:        2,
			Series:    "breezy-autotest",
			Pocket:    archive.Release,
			Component: "main",
			Section:   "base",
			Status:    archive.Pending,
		},
		Name:          "foo-bin",
		Version:       "666",
		SourceName:    "foo",
		SourceVersion: "666",
		Architecture:  "i386",
		Format:        archive.DEB,
		Priority:      "Standard",
		InstalledSize: 100,
		Maintainer:    "Foo Bar <foo@bar.com>",
		Summary:       "Foo app is great",
		Description:   "Well ...\nit does nothing, though",
		Depends:       "biscuit",
		Recommends:    "foo-dev",
		Suggests:      "pyfoo",
		Conflicts:     "old-foo",
		Replaces:      "old-foo",
		Provides:      "foo-master",
		PreDepends:    "master-foo",
		Enhances:      "foo-super",
		Breaks:        "old-foo",
		File:          helloFile("foo-bin_666_all.deb"),
	}
}

func assertLines(t *testing.T, got string, want []string) {
	t.Helper()
	gotLines := strings.Split(got, "\n")
	if len(gotLines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(gotLines), len(want), got)
	}
	for i := range want {
		if gotLines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, gotLines[i], want[i])
		}
	}
}

func TestSourceStanza(t *testing.T) {
	source := fooSource()
	source.UserFields = []archive.Field{
		{Name: "Python-Version", Value: "< 1.5"},
		{Name: "CHECKSUMS-SHA1", Value: "BLAH"},
	}
	assertLines(t, SourceStanza(source).String(), []string{
		"Package: foo",
		"Binary: foo-bin",
		"Version: 666",
		"Section: base",
		"Maintainer: Foo Bar <foo@bar.com>",
		"Build-Depends: fooish",
		"Build-Depends-Indep: pyfoo",
		"Build-Conflicts: bar",
		"Build-Conflicts-Indep: pybar",
		"Architecture: all",
		"Standards-Version: 3.6.2",
		"Format: 1.0",
		"Directory: pool/main/f/foo",
		"Files:",
		" " + helloMD5 + " 11 foo_666.dsc",
		"Checksums-Sha1:",
		" " + helloSHA1 + " 11 foo_666.dsc",
		"Checksums-Sha256:",
		" " + helloSHA256 + " 11 foo_666.dsc",
		"Python-Version: < 1.5",
	})
}

func TestSourceStanzaLibraryPrefix(t *testing.T) {
	source := fooSource()
	source.Name = "libfoo"
	if got := SourceStanza(source).Get("Directory"); got != "pool/main/libf/libfoo" {
		t.Errorf("Directory = %q, want pool/main/libf/libfoo", got)
	}
}

func TestBinaryStanza(t *testing.T) {
	binary := fooBinary()
	percentage := 50
	binary.PhasedUpdatePercentage = &percentage
	binary.UserFields = []archive.Field{{Name: "Python-Version", Value: ">= 2.4"}}

	assertLines(t, BinaryStanza(binary, true).String(), []string{
		"Package: foo-bin",
		"Source: foo",
		"Priority: standard",
		"Section: base",
		"Installed-Size: 100",
		"Maintainer: Foo Bar <foo@bar.com>",
		"Architecture: all",
		"Version: 666",
		"Recommends: foo-dev",
		"Replaces: old-foo",
		"Suggests: pyfoo",
		"Provides: foo-master",
		"Depends: biscuit",
		"Conflicts: old-foo",
		"Pre-Depends: master-foo",
		"Enhances: foo-super",
		"Breaks: old-foo",
		"Filename: pool/main/f/foo/foo-bin_666_all.deb",
		"Size: 11",
		"MD5sum: " + helloMD5,
		"SHA1: " + helloSHA1,
		"SHA256: " + helloSHA256,
		"Phased-Update-Percentage: 50",
		"Description: Foo app is great",
		" Well ...",
		" it does nothing, though",
		"Python-Version: >= 2.4",
	})
}

func TestBinaryStanzaZeroPhasedUpdatePercentage(t *testing.T) {
	binary := fooBinary()
	percentage := 0
	binary.PhasedUpdatePercentage = &percentage
	stanza := BinaryStanza(binary, true)
	if strings.Contains(stanza.String(), "Phased-Update-Percentage") {
		t.Errorf("zero percentage emitted:\n%s", stanza.String())
	}
}

func TestBinaryStanzaArchSpecific(t *testing.T) {
	binary := fooBinary()
	binary.ArchSpecific = true
	binary.Essential = true
	stanza := BinaryStanza(binary, true)
	if got := stanza.Get("Architecture"); got != "i386" {
		t.Errorf("Architecture = %q, want i386", got)
	}
	if got := stanza.Get("Essential"); got != "yes" {
		t.Errorf("Essential = %q, want yes", got)
	}
}

func TestBinaryStanzaDescriptionNormalisation(t *testing.T) {
	binary := fooBinary()
	binary.Description = "   My leading spaces are normalised to a single space but not trailing.  \n    It does nothing, though"
	text := BinaryStanza(binary, true).String()
	want := "Description: Foo app is great\n" +
		" My leading spaces are normalised to a single space but not trailing.  \n" +
		" It does nothing, though"
	if !strings.Contains(text, want) {
		t.Errorf("stanza does not contain the normalised description:\n%s", text)
	}
}

func TestBinaryStanzaPreservesDescriptionMarkup(t *testing.T) {
	binary := fooBinary()
	binary.Description = "Normal\nNormal\n.\n.\n.\n " + strings.Repeat("x", 100)
	text := BinaryStanza(binary, true).String()
	want := "Description: Foo app is great\n Normal\n Normal\n .\n .\n .\n " + strings.Repeat("x", 100)
	if !strings.HasSuffix(text, want) {
		t.Errorf("description markup not preserved:\n%s", text)
	}
}

func TestBinaryStanzaShortDescription(t *testing.T) {
	stanza := BinaryStanza(fooBinary(), false)
	text := stanza.String()
	if !strings.Contains(text, "\nDescription: Foo app is great\nDescription-md5: 611cabb562d924edd769a6a805340da9") {
		t.Errorf("short description stanza:\n%s", text)
	}
	if strings.Contains(text, "Well ...") {
		t.Errorf("long description leaked into short stanza:\n%s", text)
	}
}

func TestBinaryStanzaSourceField(t *testing.T) {
	tests := []struct {
		name          string
		binaryName    string
		version       string
		sourceVersion string
		want          string
	}{
		{"identical name and version", "foo", "666", "666", ""},
		{"differing name", "foo-bin", "666", "666", "foo"},
		{"differing version", "foo", "999", "666", "foo (666)"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			binary := fooBinary()
			binary.Name = test.binaryName
			binary.Version = test.version
			binary.SourceVersion = test.sourceVersion
			stanza := BinaryStanza(binary, true)
			if got := stanza.Get("Source"); got != test.want {
				t.Errorf("Source = %q, want %q", got, test.want)
			}
			if test.want == "" && strings.Contains(stanza.String(), "\nSource:") {
				t.Errorf("Source field rendered although empty")
			}
		})
	}
}

func TestStanzaContinuationLines(t *testing.T) {
	stanza := &Stanza{}
	stanza.Append("Package", "foo")
	stanza.Append("Binary", "foo_bin,\nbar_bin,\nzed_bin\n")
	stanza.Append("Version", "666")
	assertLines(t, stanza.String(), []string{
		"Package: foo",
		"Binary: foo_bin,",
		" bar_bin,",
		" zed_bin",
		"Version: 666",
	})

	reader, err := control.NewParagraphReader(strings.NewReader(stanza.String()+"\n\n"), nil)
	if err != nil {
		t.Fatalf("NewParagraphReader: %v", err)
	}
	paragraph, err := reader.Next()
	if err != nil {
		t.Fatalf("reading paragraph: %v", err)
	}
	if got := paragraph.Values["Version"]; got != "666" {
		t.Errorf("reparsed Version = %q, want 666", got)
	}
}

func TestStanzaFirstFieldWins(t *testing.T) {
	stanza := &Stanza{}
	stanza.Append("Homepage", "")
	stanza.Append("homepage", "http://example.com")
	stanza.Append("Package", "foo")
	if got := stanza.String(); got != "Package: foo" {
		t.Errorf("String() = %q, want %q", got, "Package: foo")
	}
}

func TestSortOrdering(t *testing.T) {
	sources := []archive.SourcePublication{
		{Publication: archive.Publication{ID: 1}, Name: "zed", Version: "1.0"},
		{Publication: archive.Publication{ID: 2}, Name: "foo", Version: "1.0"},
		{Publication: archive.Publication{ID: 3}, Name: "foo", Version: "1.0~rc1"},
		{Publication: archive.Publication{ID: 4}, Name: "foo", Version: "1:0.5"},
		{Publication: archive.Publication{ID: 5}, Name: "foo", Version: "1.0"},
	}
	SortSources(sources)
	var got []int64
	for _, source := range sources {
		got = append(got, source.ID)
	}
	want := []int64{4, 5, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestTranslationSet(t *testing.T) {
	set := &TranslationSet{}
	first := fooBinary()
	second := fooBinary()
	second.Architecture = "amd64"
	other := fooBinary()
	other.Name = "bar-bin"
	set.Add(first)
	set.Add(second)
	set.Add(other)
	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}

	var builder strings.Builder
	if _, err := set.WriteTo(&builder); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := "Package: bar-bin\n" +
		"Description-md5: 611cabb562d924edd769a6a805340da9\n" +
		"Description-en: Foo app is great\n" +
		" Well ...\n" +
		" it does nothing, though\n\n" +
		"Package: foo-bin\n" +
		"Description-md5: 611cabb562d924edd769a6a805340da9\n" +
		"Description-en: Foo app is great\n" +
		" Well ...\n" +
		" it does nothing, though\n\n"
	if builder.String() != want {
		t.Errorf("Translation-en =\n%s\nwant\n%s", builder.String(), want)
	}
}
