// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Encoding is a compressed form written next to every uncompressed
// index.
type Encoding int

const (
	Gzip Encoding = iota + 1
	Bzip2
	XZ
	Zstd
)

// DefaultEncodings are always written; apt clients of every age
// understand them.
var DefaultEncodings = []Encoding{Gzip, Bzip2}

// String returns the configuration name of the encoding.
func (e Encoding) String() string {
	switch e {
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case XZ:
		return "xz"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Suffix returns the file name suffix, e.g. ".bz2".
func (e Encoding) Suffix() string {
	switch e {
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	case XZ:
		return ".xz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseEncoding parses a configuration name.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(name) {
	case "gzip", "gz":
		return Gzip, nil
	case "bzip2", "bz2":
		return Bzip2, nil
	case "xz":
		return XZ, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown index encoding %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoding) UnmarshalText(text []byte) error {
	parsed, err := ParseEncoding(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Suffixes returns "" followed by the suffix of every encoding: the
// names under which one logical index exists on disk.
func Suffixes(encodings []Encoding) []string {
	suffixes := []string{""}
	for _, encoding := range encodings {
		suffixes = append(suffixes, encoding.Suffix())
	}
	return suffixes
}

// NewWriter returns a compressing writer. Output is deterministic for
// identical input: gzip headers carry no name or modification time.
func (e Encoding) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch e {
	case Gzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case Bzip2:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	case XZ:
		return xz.NewWriter(w)
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	default:
		return nil, fmt.Errorf("unsupported index encoding %v", e)
	}
}

// NewReader returns a decompressing reader.
func (e Encoding) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch e {
	case Gzip:
		return gzip.NewReader(r)
	case Bzip2:
		return bzip2.NewReader(r, nil)
	case XZ:
		reader, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(reader), nil
	case Zstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported index encoding %v", e)
	}
}

// encodingForPath picks the encoding from a file name suffix; ok is
// false for uncompressed files.
func encodingForPath(path string) (Encoding, bool) {
	for _, encoding := range []Encoding{Gzip, Bzip2, XZ, Zstd} {
		if strings.HasSuffix(path, encoding.Suffix()) {
			return encoding, true
		}
	}
	return 0, false
}

// ReadDecompressed returns the logical content of an index file,
// decompressing according to its suffix.
func ReadDecompressed(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	encoding, compressed := encodingForPath(path)
	if !compressed {
		return io.ReadAll(file)
	}
	reader, err := encoding.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("opening %s as %v: %w", path, encoding, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return data, nil
}
