// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Result says what AddFile did.
type Result int

const (
	// Added placed new content: a new object and a new pool link.
	Added Result = iota + 1
	// Linked created a pool link to content already in the object
	// store.
	Linked
	// Present found the same content already at the pool path.
	Present
)

func (r Result) String() string {
	switch r {
	case Added:
		return "added"
	case Linked:
		return "linked"
	case Present:
		return "present"
	default:
		return "Result(" + strconv.Itoa(int(r)) + ")"
	}
}

// Content is anything that can produce the bytes of a package file.
// archive.PackageFile satisfies it.
type Content interface {
	Open() (io.ReadCloser, error)
}

type bytesContent []byte

func (b bytesContent) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Bytes wraps in-memory content.
func Bytes(data []byte) Content { return bytesContent(data) }

// Expect carries the size and digests recorded for a file. Empty
// digests are not checked; the size is checked whenever a digest is
// given or Size is positive.
type Expect struct {
	Size   int64
	MD5    string
	SHA1   string
	SHA256 string
}

func (e Expect) check(filename string, got Digests) error {
	sizeChecked := e.Size > 0 || e.MD5 != "" || e.SHA1 != "" || e.SHA256 != ""
	if sizeChecked && e.Size != got.Size {
		return &ChecksumError{Filename: filename, Field: "size",
			Want: strconv.FormatInt(e.Size, 10), Got: strconv.FormatInt(got.Size, 10)}
	}
	for _, digest := range []struct{ field, want, got string }{
		{"md5", e.MD5, got.MD5},
		{"sha1", e.SHA1, got.SHA1},
		{"sha256", e.SHA256, got.SHA256},
	} {
		if digest.want != "" && !strings.EqualFold(digest.want, digest.got) {
			return &ChecksumError{Filename: filename, Field: digest.field, Want: digest.want, Got: digest.got}
		}
	}
	return nil
}

// Entry describes a file placed in the pool.
type Entry struct {
	Path    string
	Result  Result
	Digests Digests
}

// Store is the pool of one archive.
type Store struct {
	poolRoot   string
	objectRoot string
	tempRoot   string
	logger     *slog.Logger
}

// Config locates a pool. All three directories must be on the same
// filesystem because placement uses rename and hardlinks.
type Config struct {
	PoolRoot   string
	ObjectRoot string
	TempRoot   string
	Logger     *slog.Logger
}

// New creates a Store. The directories are created if they do not
// exist.
func New(config Config) (*Store, error) {
	if config.PoolRoot == "" || config.ObjectRoot == "" || config.TempRoot == "" {
		return nil, errors.New("pool: PoolRoot, ObjectRoot and TempRoot are required")
	}
	for _, dir := range []string{config.PoolRoot, config.ObjectRoot, config.TempRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating pool directory %s: %w", dir, err)
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		poolRoot:   config.PoolRoot,
		objectRoot: config.ObjectRoot,
		tempRoot:   config.TempRoot,
		logger:     logger,
	}, nil
}

// Root returns the pool root directory.
func (s *Store) Root() string { return s.poolRoot }

// Prefix returns the pool prefix directory for a source name.
func Prefix(sourceName string) string {
	if strings.HasPrefix(sourceName, "lib") && len(sourceName) > 3 {
		return sourceName[:4]
	}
	if sourceName == "" {
		return ""
	}
	return sourceName[:1]
}

// Poolify returns "<component>/<prefix>/<source>", the directory of a
// source package relative to the pool root.
func Poolify(sourceName, component string) string {
	return filepath.Join(component, Prefix(sourceName), sourceName)
}

// RelativePath returns a file's path relative to the archive root, as
// used in the Filename and Directory index fields.
func RelativePath(component, sourceName, filename string) string {
	return filepath.Join("pool", Poolify(sourceName, component), filename)
}

// PathFor returns the absolute pool path of a file.
func (s *Store) PathFor(component, sourceName, filename string) string {
	return filepath.Join(s.poolRoot, Poolify(sourceName, component), filename)
}

func (s *Store) objectPath(hash ContentHash) string {
	hexHash := hash.String()
	return filepath.Join(s.objectRoot, hexHash[:2], hexHash[2:4], hexHash)
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsRune(name, '/')
}

// AddFile places content at the pool path of (component, sourceName,
// filename). See the package documentation for the outcomes.
func (s *Store) AddFile(component, sourceName, filename string, content Content, expect Expect) (Entry, error) {
	for _, name := range []string{component, sourceName, filename} {
		if !validName(name) {
			return Entry{}, fmt.Errorf("pool: invalid path element %q", name)
		}
	}
	target := s.PathFor(component, sourceName, filename)

	tmpPath, digests, err := s.ingest(content)
	if err != nil {
		return Entry{}, fmt.Errorf("ingesting %s: %w", filename, err)
	}
	defer os.Remove(tmpPath)

	if err := expect.check(filename, digests); err != nil {
		return Entry{}, err
	}

	objectPath := s.objectPath(digests.Content)
	entry := Entry{Path: target, Digests: digests}

	targetInfo, err := os.Lstat(target)
	switch {
	case err == nil:
		if !targetInfo.Mode().IsRegular() {
			return Entry{}, fmt.Errorf("pool path %s is not a regular file", target)
		}
		existing, err := s.contentOf(target, targetInfo, objectPath)
		if err != nil {
			return Entry{}, err
		}
		if existing != digests.Content {
			return Entry{}, &ConflictError{Path: target, Existing: existing, Incoming: digests.Content}
		}
		entry.Result = Present
		return entry, nil
	case !errors.Is(err, fs.ErrNotExist):
		return Entry{}, fmt.Errorf("checking pool path %s: %w", target, err)
	}

	entry.Result = Linked
	if _, err := os.Stat(objectPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
			return Entry{}, fmt.Errorf("creating object directory: %w", err)
		}
		if err := os.Rename(tmpPath, objectPath); err != nil {
			return Entry{}, fmt.Errorf("storing object %s: %w", digests.Content, err)
		}
		entry.Result = Added
	} else if err != nil {
		return Entry{}, fmt.Errorf("checking object %s: %w", digests.Content, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Entry{}, fmt.Errorf("creating pool directory for %s: %w", filename, err)
	}
	if err := os.Link(objectPath, target); err != nil {
		return Entry{}, fmt.Errorf("linking %s into pool: %w", filename, err)
	}

	s.logger.Debug("pool file placed",
		"path", target,
		"result", entry.Result.String(),
		"content_hash", digests.Content.String(),
	)
	return entry, nil
}

// ingest copies content into a temp file while hashing it. The temp
// file is world-readable so it can be renamed straight into the
// object store.
func (s *Store) ingest(content Content) (string, Digests, error) {
	reader, err := content.Open()
	if err != nil {
		return "", Digests{}, err
	}
	defer reader.Close()

	tmpFile, err := os.CreateTemp(s.tempRoot, "pool-*.tmp")
	if err != nil {
		return "", Digests{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	digester := newDigestWriter()
	if _, err := io.Copy(io.MultiWriter(tmpFile, digester), reader); err != nil {
		return "", Digests{}, fmt.Errorf("copying content: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		return "", Digests{}, fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", Digests{}, fmt.Errorf("closing temp file: %w", err)
	}

	success = true
	return tmpPath, digester.digests(), nil
}

// contentOf returns the content hash of an existing pool file. A file
// that is the same inode as the candidate object needs no hashing.
func (s *Store) contentOf(target string, targetInfo fs.FileInfo, objectPath string) (ContentHash, error) {
	if objectInfo, err := os.Stat(objectPath); err == nil && os.SameFile(targetInfo, objectInfo) {
		var hash ContentHash
		if decoded, err := hex.DecodeString(filepath.Base(objectPath)); err == nil && len(decoded) == len(hash) {
			copy(hash[:], decoded)
			return hash, nil
		}
	}
	hash, err := hashPath(target)
	if err != nil {
		return ContentHash{}, fmt.Errorf("reading existing pool file: %w", err)
	}
	return hash, nil
}

// RemoveFile removes a file's pool link. It returns false when the
// file was already absent. Other links to the same content (other
// components, the object store) are unaffected; the object itself is
// collected once no pool link remains.
func (s *Store) RemoveFile(component, sourceName, filename string) (bool, error) {
	target := s.PathFor(component, sourceName, filename)
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking pool path %s: %w", target, err)
	}

	var objectPath string
	if links, err := Links(target); err == nil && links == 2 && info.Mode().IsRegular() {
		if hash, err := hashPath(target); err == nil {
			objectPath = s.objectPath(hash)
		}
	}

	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("removing %s: %w", target, err)
	}
	s.logger.Debug("pool file removed", "path", target)

	// Empty source and prefix directories are pruned; a non-empty
	// directory makes Remove fail, which is the signal to stop.
	dir := filepath.Dir(target)
	for i := 0; i < 2 && dir != s.poolRoot; i++ {
		if os.Remove(dir) != nil {
			break
		}
		dir = filepath.Dir(dir)
	}

	if objectPath != "" {
		s.collectObject(objectPath, info)
	}
	return true, nil
}

// collectObject removes an object whose only remaining link is its
// own directory entry.
func (s *Store) collectObject(objectPath string, removed fs.FileInfo) {
	objectInfo, err := os.Stat(objectPath)
	if err != nil || !os.SameFile(objectInfo, removed) {
		return
	}
	links, err := Links(objectPath)
	if err != nil || links != 1 {
		return
	}
	if err := os.Remove(objectPath); err != nil {
		s.logger.Warn("removing unreferenced pool object failed", "path", objectPath, "error", err)
	}
}

// Links returns the hardlink count of a file.
func Links(path string) (uint64, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return uint64(stat.Nlink), nil
}
