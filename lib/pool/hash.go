// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// ContentHash is the keyed BLAKE3 digest identifying pool content.
type ContentHash [32]byte

// String returns the lowercase hex form used for object file names.
func (h ContentHash) String() string { return hex.EncodeToString(h[:]) }

// contentDomainKey separates pool content hashes from any other
// BLAKE3 use. ASCII, zero-padded to the 32 bytes keyed mode requires.
var contentDomainKey = [32]byte{
	'a', 'p', 't', 'p', 'u', 'b', 'l', 'i', 's', 'h', '.', 'p', 'o', 'o', 'l', '.',
	'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func newContentHasher() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		panic("pool: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// Digests are the checksums of one piece of content.
type Digests struct {
	Size    int64
	MD5     string
	SHA1    string
	SHA256  string
	Content ContentHash
}

// digestWriter computes every digest the pool and the indexes need in
// a single pass.
type digestWriter struct {
	size    int64
	md5     hash.Hash
	sha1    hash.Hash
	sha256  hash.Hash
	content *blake3.Hasher
}

func newDigestWriter() *digestWriter {
	return &digestWriter{
		md5:     md5.New(),
		sha1:    sha1.New(),
		sha256:  sha256.New(),
		content: newContentHasher(),
	}
}

func (w *digestWriter) Write(p []byte) (int, error) {
	w.md5.Write(p)
	w.sha1.Write(p)
	w.sha256.Write(p)
	w.content.Write(p)
	w.size += int64(len(p))
	return len(p), nil
}

func (w *digestWriter) digests() Digests {
	digests := Digests{
		Size:   w.size,
		MD5:    hex.EncodeToString(w.md5.Sum(nil)),
		SHA1:   hex.EncodeToString(w.sha1.Sum(nil)),
		SHA256: hex.EncodeToString(w.sha256.Sum(nil)),
	}
	copy(digests.Content[:], w.content.Sum(nil))
	return digests
}

// hashPath computes the content hash of an existing file.
func hashPath(path string) (ContentHash, error) {
	file, err := os.Open(path)
	if err != nil {
		return ContentHash{}, err
	}
	defer file.Close()

	hasher := newContentHasher()
	if _, err := io.Copy(hasher, file); err != nil {
		return ContentHash{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	var sum ContentHash
	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

// Measure computes the digests of content without storing it.
func Measure(content Content) (Digests, error) {
	reader, err := content.Open()
	if err != nil {
		return Digests{}, err
	}
	defer reader.Close()
	writer := newDigestWriter()
	if _, err := io.Copy(writer, reader); err != nil {
		return Digests{}, fmt.Errorf("reading content: %w", err)
	}
	return writer.digests(), nil
}
