// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile replaces files so that readers see either the old
// content or the new content, never a partial write. Every published
// file that apt clients or the next run read (Release, per-directory
// Release, i18n/Index, Release.gpg, .htaccess, the run journal) goes
// through here.
package atomicfile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile writes data to a temporary file in the directory of path,
// fsyncs it, sets perm (independent of the process umask), and renames
// it into place. The parent directory must already exist.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	return WriteFileIn(filepath.Dir(path), path, data, perm)
}

// WriteFileIn is WriteFile with the temporary file created in tempDir,
// which must be on the same filesystem as path.
func WriteFileIn(tempDir, path string, data []byte, perm fs.FileMode) error {
	file, err := os.CreateTemp(tempDir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	temporaryPath := file.Name()

	// Write, sync, chmod, close. Any failure removes the temporary file.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file for %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file for %s: %w", path, err)
	}
	if err := file.Chmod(perm); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("setting mode of %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file for %s: %w", path, err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	SyncDir(filepath.Dir(path))
	return nil
}

// SyncDir fsyncs a directory so that a completed rename survives power
// loss. Errors are ignored: not every filesystem supports it.
func SyncDir(dir string) {
	directory, err := os.Open(dir)
	if err == nil {
		directory.Sync()
		directory.Close()
	}
}

// RemoveIfExists removes path, treating absence as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
