// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/aptpublish/lib/atomicfile"
)

// output is one on-disk form of an index: the plain file or one
// compressed encoding.
type output struct {
	encoding   Encoding // zero for the plain file
	finalPath  string
	temp       *os.File
	compressor io.WriteCloser
}

func (o *output) writer() io.Writer {
	if o.compressor != nil {
		return o.compressor
	}
	return o.temp
}

// File writes one logical index and all of its compressed forms. Write
// through it, then Close to publish or Abort to discard. Until Close
// returns nil the previously published files are untouched.
type File struct {
	path    string
	outputs []*output
	writer  io.Writer
	plain   []byte
	closed  bool
	aborted bool
}

// Create starts a new index at path. Temporary files are created in
// tempRoot, which must be on the same filesystem as path. The parent
// directory of path is created if needed.
func Create(path, tempRoot string, encodings []Encoding) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.MkdirAll(tempRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating temp root %s: %w", tempRoot, err)
	}

	file := &File{path: path}
	forms := append([]Encoding{0}, encodings...)
	writers := make([]io.Writer, 0, len(forms))
	for _, encoding := range forms {
		temp, err := os.CreateTemp(tempRoot, filepath.Base(path)+encoding.Suffix()+".*")
		if err != nil {
			file.Abort()
			return nil, fmt.Errorf("creating temporary file for %s: %w", path, err)
		}
		out := &output{encoding: encoding, finalPath: path + encoding.Suffix(), temp: temp}
		file.outputs = append(file.outputs, out)
		if encoding != 0 {
			out.compressor, err = encoding.NewWriter(temp)
			if err != nil {
				file.Abort()
				return nil, fmt.Errorf("starting %v writer for %s: %w", encoding, path, err)
			}
		}
		writers = append(writers, out.writer())
	}
	file.writer = io.MultiWriter(writers...)
	return file, nil
}

// Path returns the path of the uncompressed index.
func (f *File) Path() string { return f.path }

// Write appends to every form of the index.
func (f *File) Write(p []byte) (int, error) {
	if f.closed || f.aborted {
		return 0, fmt.Errorf("write to finished index %s", f.path)
	}
	return f.writer.Write(p)
}

// Close finishes every encoding, checks that each decompresses to the
// uncompressed content, and renames all forms into place with mode
// 0644. On error the temporary files are removed and the previous
// generation stays published.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	if f.aborted {
		return fmt.Errorf("closing aborted index %s", f.path)
	}
	if err := f.finish(); err != nil {
		f.Abort()
		return err
	}
	if err := f.verify(); err != nil {
		f.Abort()
		return err
	}
	for _, out := range f.outputs {
		if err := os.Chmod(out.temp.Name(), 0644); err != nil {
			f.Abort()
			return fmt.Errorf("setting mode of %s: %w", out.finalPath, err)
		}
	}
	// Compressed forms first so the plain file, which apt never
	// fetches, is the last to change.
	for i := len(f.outputs) - 1; i >= 0; i-- {
		out := f.outputs[i]
		if err := os.Rename(out.temp.Name(), out.finalPath); err != nil {
			f.Abort()
			return fmt.Errorf("renaming %s into place: %w", out.finalPath, err)
		}
	}
	f.closed = true
	atomicfile.SyncDir(filepath.Dir(f.path))
	return nil
}

func (f *File) finish() error {
	for _, out := range f.outputs {
		if out.compressor != nil {
			if err := out.compressor.Close(); err != nil {
				return fmt.Errorf("finishing %v form of %s: %w", out.encoding, f.path, err)
			}
		}
		if err := out.temp.Sync(); err != nil {
			return fmt.Errorf("syncing %s: %w", out.finalPath, err)
		}
		if err := out.temp.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", out.finalPath, err)
		}
	}
	return nil
}

// verify reads back every compressed form and compares its SHA-256
// with the plain form.
func (f *File) verify() error {
	plain, err := os.ReadFile(f.outputs[0].temp.Name())
	if err != nil {
		return fmt.Errorf("reading back %s: %w", f.path, err)
	}
	want := sha256.Sum256(plain)
	for _, out := range f.outputs[1:] {
		got, err := decompressedHash(out.temp.Name(), out.encoding)
		if err != nil {
			return fmt.Errorf("reading back %s: %w", out.finalPath, err)
		}
		if !bytes.Equal(got[:], want[:]) {
			return fmt.Errorf("%s does not decompress to the content of %s", out.finalPath, f.path)
		}
	}
	f.plain = plain
	return nil
}

func decompressedHash(path string, encoding Encoding) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	file, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer file.Close()
	reader, err := encoding.NewReader(file)
	if err != nil {
		return sum, err
	}
	defer reader.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, reader); err != nil {
		return sum, err
	}
	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

// Abort discards everything written. It is safe to call after Close,
// where it does nothing.
func (f *File) Abort() {
	if f.closed || f.aborted {
		return
	}
	f.aborted = true
	for _, out := range f.outputs {
		if out.compressor != nil {
			out.compressor.Close()
		}
		out.temp.Close()
		os.Remove(out.temp.Name())
	}
}

// Content returns the uncompressed bytes after a successful Close.
func (f *File) Content() []byte { return f.plain }

// WriteAll writes a complete index in one call.
func WriteAll(path, tempRoot string, encodings []Encoding, content io.WriterTo) error {
	file, err := Create(path, tempRoot, encodings)
	if err != nil {
		return err
	}
	if _, err := content.WriteTo(file); err != nil {
		file.Abort()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
