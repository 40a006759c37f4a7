// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aptpublish/cmd/aptpublish/cli"
	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
	"github.com/bureau-foundation/aptpublish/lib/config"
	"github.com/bureau-foundation/aptpublish/lib/signing"
)

// commonFlags are accepted by every command that reads the
// configuration.
type commonFlags struct {
	configPath   string
	verbose      bool
	distribution string
}

func (f *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "configuration file (default $"+config.EnvVar+")")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
	flagSet.StringVarP(&f.distribution, "distribution", "d", "", "distribution (default: the only configured one)")
}

// environment is what a command needs once the configuration is
// loaded. close releases the catalog.
type environment struct {
	config  *config.Config
	logger  *slog.Logger
	catalog *catalog.Store
	stdout  io.Writer
}

// openEnvironment loads and validates the configuration, builds the
// logger, opens the catalog and registers configured archives in it.
func openEnvironment(ctx context.Context, flags *commonFlags, command string, stdout, stderr io.Writer) (*environment, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	level, _ := cfg.Logging.SlogLevel()
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger, err := cli.NewLogger(stderr, level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	logger = logger.With("command", command)

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.CatalogDB), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	store, err := catalog.Open(ctx, cfg.Paths.CatalogDB, logger)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if err := cfg.RegisterArchives(ctx, store); err != nil {
		store.Close()
		return nil, err
	}
	return &environment{config: cfg, logger: logger, catalog: store, stdout: stdout}, nil
}

func (e *environment) close() {
	if err := e.catalog.Close(); err != nil {
		e.logger.Warn("closing catalog failed", "error", err)
	}
}

// distributionNames returns the distributions a command works on: the
// one named by --distribution, otherwise every configured one.
func (e *environment) distributionNames(flags *commonFlags) []string {
	if flags.distribution != "" {
		return []string{flags.distribution}
	}
	names := make([]string, 0, len(e.config.Distributions))
	for _, distribution := range e.config.Distributions {
		names = append(names, distribution.Name)
	}
	return names
}

// archives resolves the archive references given on the command line,
// or every configured archive of the selected distributions when refs
// is empty.
func (e *environment) archives(ctx context.Context, flags *commonFlags, refs []string) ([]*archive.Archive, error) {
	var resolved []*archive.Archive
	if len(refs) == 0 {
		wanted := e.distributionNames(flags)
		for _, ref := range e.config.ArchiveRefs() {
			if !containsString(wanted, ref.Distribution) {
				continue
			}
			a, err := e.config.Archive(ctx, ref.Distribution, ref.Ref, e.catalog)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, a)
		}
		return resolved, nil
	}

	distribution := flags.distribution
	if distribution == "" {
		distribution = e.config.DefaultDistribution()
	}
	if distribution == "" {
		return nil, errors.New("several distributions are configured; choose one with --distribution")
	}
	for _, ref := range refs {
		a, err := e.config.Archive(ctx, distribution, ref, e.catalog)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, a)
	}
	return resolved, nil
}

// signer loads the signing keyring when any of the archives signs its
// Release files, and returns a nil Signer otherwise.
func (e *environment) signer(archives []*archive.Archive) (signing.Signer, error) {
	needed := false
	for _, a := range archives {
		if a.SigningKey != "" {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}
	keyring, err := signing.LoadKeyring(e.config.Paths.Keyring, e.config.Paths.AgeIdentity, e.logger)
	if err != nil {
		return nil, fmt.Errorf("loading signing keyring: %w", err)
	}
	return keyring, nil
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, value) {
			return true
		}
	}
	return false
}
