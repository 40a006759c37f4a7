// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/atomicfile"
)

// BuilddUser is the .htpasswd user builders authenticate as.
const BuilddUser = "buildd"

// passwordCost is the bcrypt cost of .htpasswd entries. Tests lower it.
var passwordCost = bcrypt.DefaultCost

// Htaccess returns the .htaccess text protecting a private archive
// whose .htpasswd lives in htaccessRoot.
func Htaccess(htaccessRoot string) string {
	return "\n" +
		"AuthType           Basic\n" +
		"AuthName           \"Token Required\"\n" +
		"AuthUserFile       " + htaccessRoot + "/.htpasswd\n" +
		"Require            valid-user\n"
}

// Htpasswd returns the .htpasswd text: the buildd user first, then
// the other users sorted by name.
func Htpasswd(builddSecret string, users map[string]string) (string, error) {
	names := make([]string, 0, len(users))
	for name := range users {
		if name == BuilddUser {
			return "", fmt.Errorf("user name %q is reserved", BuilddUser)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	var builder strings.Builder
	write := func(user, secret string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), passwordCost)
		if err != nil {
			return fmt.Errorf("hashing password of %s: %w", user, err)
		}
		fmt.Fprintf(&builder, "%s:%s\n", user, hash)
		return nil
	}
	if err := write(BuilddUser, builddSecret); err != nil {
		return "", err
	}
	for _, name := range names {
		if err := write(name, users[name]); err != nil {
			return "", err
		}
	}
	return builder.String(), nil
}

// SetupArchiveDirs creates the directories of an archive. For a
// private archive it also writes .htaccess and .htpasswd, but only
// when .htaccess does not exist yet: credentials an operator changed
// by hand are kept.
func SetupArchiveDirs(a *archive.Archive, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	paths := a.Paths
	for _, dir := range []string{
		paths.ArchiveRoot, paths.PoolRoot, paths.DistsRoot, paths.TempRoot,
		paths.ObjectRoot, paths.MetaRoot, paths.HtaccessRoot,
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if !a.Private {
		return nil
	}

	htaccessPath := filepath.Join(paths.HtaccessRoot, ".htaccess")
	if _, err := os.Stat(htaccessPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", htaccessPath, err)
	}
	if a.BuilddSecret == "" {
		return fmt.Errorf("%s: private archive has no buildd secret", a.Reference())
	}
	passwords, err := Htpasswd(a.BuilddSecret, a.Subscribers)
	if err != nil {
		return err
	}
	// .htpasswd first: .htaccess is the marker that setup completed.
	if err := atomicfile.WriteFile(filepath.Join(paths.HtaccessRoot, ".htpasswd"), []byte(passwords), 0644); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(htaccessPath, []byte(Htaccess(paths.HtaccessRoot)), 0644); err != nil {
		return err
	}
	logger.Info("wrote access control files", "archive", a.Reference(), "dir", paths.HtaccessRoot)
	return nil
}
