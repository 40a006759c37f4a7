// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pault.ag/go/debian/control"

	"github.com/bureau-foundation/aptpublish/lib/signing"
)

// Verification summarises a checked suite.
type Verification struct {
	Suite string
	// Files is the number of distinct files listed in Release.
	Files int
	// Signer is the fingerprint of the key behind Release.gpg, or ""
	// when the suite is unsigned.
	Signer string
}

// Verify checks that every file listed in suiteDir/Release exists with
// the recorded size and digests, and that Release.gpg, when present,
// is a valid signature by a key the verifier knows. A nil verifier
// skips the signature check. All mismatches are reported together.
func Verify(ctx context.Context, suiteDir string, verifier signing.Verifier) (Verification, error) {
	var verification Verification
	content, err := os.ReadFile(filepath.Join(suiteDir, "Release"))
	if err != nil {
		return verification, fmt.Errorf("reading Release: %w", err)
	}
	reader, err := control.NewParagraphReader(bytes.NewReader(content), nil)
	if err != nil {
		return verification, fmt.Errorf("parsing Release: %w", err)
	}
	paragraph, err := reader.Next()
	if errors.Is(err, io.EOF) || (err == nil && paragraph == nil) {
		return verification, errors.New("empty Release file")
	}
	if err != nil {
		return verification, fmt.Errorf("parsing Release: %w", err)
	}
	verification.Suite = paragraph.Values["Suite"]

	var problems []error
	seen := make(map[string]bool)
	blocks := []struct {
		field string
		hash  func(fileDigest) string
	}{
		{"MD5Sum", func(e fileDigest) string { return e.md5 }},
		{"SHA1", func(e fileDigest) string { return e.sha1 }},
		{"SHA256", func(e fileDigest) string { return e.sha256 }},
	}
	for _, block := range blocks {
		for _, line := range strings.Split(paragraph.Values[block.field], "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if len(fields) != 3 {
				problems = append(problems, fmt.Errorf("%s: malformed line %q", block.field, line))
				continue
			}
			want, name := fields[0], fields[2]
			size, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: bad size for %s: %w", block.field, name, err))
				continue
			}
			seen[name] = true
			data, err := os.ReadFile(filepath.Join(suiteDir, filepath.FromSlash(name)))
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", name, err))
				continue
			}
			got := digest(name, data)
			if got.size != size {
				problems = append(problems, fmt.Errorf("%s: size %d, Release says %d", name, got.size, size))
			}
			if block.hash(got) != want {
				problems = append(problems, fmt.Errorf("%s: %s mismatch", name, block.field))
			}
		}
	}
	verification.Files = len(seen)

	signature, err := os.ReadFile(filepath.Join(suiteDir, "Release.gpg"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		problems = append(problems, fmt.Errorf("reading Release.gpg: %w", err))
	case verifier != nil:
		signer, err := verifier.Verify(ctx, content, signature)
		if err != nil {
			problems = append(problems, fmt.Errorf("Release.gpg: %w", err))
		} else {
			verification.Signer = signer
		}
	}
	return verification, errors.Join(problems...)
}
