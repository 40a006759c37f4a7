// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aptpublish/cmd/aptpublish/cli"
	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/clock"
	"github.com/bureau-foundation/aptpublish/lib/journal"
	"github.com/bureau-foundation/aptpublish/lib/lifecycle"
	"github.com/bureau-foundation/aptpublish/lib/pool"
	"github.com/bureau-foundation/aptpublish/lib/publisher"
	"github.com/bureau-foundation/aptpublish/lib/release"
	"github.com/bureau-foundation/aptpublish/lib/signing"
)

type publishFlags struct {
	commonFlags
	archives          []string
	suites            []string
	careful           bool
	carefulPublishing bool
	carefulIndexes    bool
	carefulRelease    bool
}

func publishCommand(out streams) *cli.Command {
	var flags publishFlags
	return &cli.Command{
		Name:    "publish",
		Summary: "Publish pending packages and rewrite indexes",
		Description: `Run the publishing pipeline for the selected archives: place pending
publications into the pool, mark suites with removals dirty, rewrite
the indexes of dirty suites and write their Release files.

Archives that are being deleted are deleted instead. Archives with
publishing turned off are skipped. The command exits 1 when any
publication or suite failed; the rest of the run still completes.`,
		Usage: "aptpublish publish [flags]",
		Examples: []cli.Example{
			{
				Description: "Publish every configured archive",
				Command:     "aptpublish publish",
			},
			{
				Description: "Rewrite every index of one PPA",
				Command:     "aptpublish publish --archive ppa:cprov/ppa --careful-indexes",
			},
			{
				Description: "Publish only the development release pocket",
				Command:     "aptpublish publish --archive primary --suite breezy-autotest",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("publish", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringArrayVar(&flags.archives, "archive", nil, "archive to publish: primary, partner, copy/<name> or ppa:<owner>/<name> (repeatable)")
			flagSet.StringArrayVar(&flags.suites, "suite", nil, "restrict the run to this suite (repeatable)")
			flagSet.BoolVar(&flags.careful, "careful", false, "republish, reindex and rewrite Release files for every suite")
			flagSet.BoolVar(&flags.carefulPublishing, "careful-publishing", false, "re-place already published files")
			flagSet.BoolVar(&flags.carefulIndexes, "careful-indexes", false, "rewrite indexes of every suite")
			flagSet.BoolVar(&flags.carefulRelease, "careful-release", false, "rewrite Release files of every suite whose indexes were rewritten")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
			}
			return runPublish(ctx, &flags, out)
		},
	}
}

func runPublish(ctx context.Context, flags *publishFlags, out streams) error {
	env, err := openEnvironment(ctx, &flags.commonFlags, "publish", out.stdout, out.stderr)
	if err != nil {
		return err
	}
	defer env.close()

	archives, err := env.archives(ctx, &flags.commonFlags, flags.archives)
	if err != nil {
		return err
	}
	signer, err := env.signer(archives)
	if err != nil {
		return err
	}
	options := publisher.Options{
		Careful:           flags.careful,
		CarefulPublishing: flags.carefulPublishing,
		CarefulIndexes:    flags.carefulIndexes,
		CarefulRelease:    flags.carefulRelease,
	}

	failed := false
	for _, a := range archives {
		logger := env.logger.With("archive", a.Reference())
		switch {
		case a.Status == archive.ArchiveDeleting:
			if err := lifecycle.DeleteArchive(ctx, a, env.catalog, clock.Real().Now(), logger); err != nil {
				logger.Error("deleting archive failed", "error", err)
				failed = true
				continue
			}
			fmt.Fprintf(env.stdout, "%s: deleted\n", a.Reference())
			continue
		case a.Status == archive.ArchiveDeleted:
			logger.Debug("archive is deleted, skipping")
			continue
		case !a.Publish:
			logger.Info("publishing is disabled, skipping")
			continue
		}

		allowed, err := parseSuites(a, flags.suites)
		if err != nil {
			return err
		}
		p, err := env.publisher(a, signer, allowed)
		if err != nil {
			logger.Error("preparing archive failed", "error", err)
			failed = true
			continue
		}
		report, err := p.Run(ctx, options)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Reference(), err)
		}
		printReport(env, report)
		if report.Failed() {
			failed = true
		}
	}
	if failed {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// parseSuites turns --suite values into suite keys of a's
// distribution.
func parseSuites(a *archive.Archive, suites []string) ([]archive.SuiteKey, error) {
	keys := make([]archive.SuiteKey, 0, len(suites))
	for _, suite := range suites {
		series, pocket, err := a.Distribution.ParseSuite(suite)
		if err != nil {
			return nil, fmt.Errorf("--suite %s: %w", suite, err)
		}
		keys = append(keys, archive.SuiteKey{Series: series.Name, Pocket: pocket})
	}
	return keys, nil
}

// publisher prepares the directories of a and wires a Publisher for
// one run.
func (e *environment) publisher(a *archive.Archive, signer signing.Signer, allowed []archive.SuiteKey) (*publisher.Publisher, error) {
	logger := e.logger.With("archive", a.Reference())
	if err := lifecycle.SetupArchiveDirs(a, logger); err != nil {
		return nil, err
	}
	store, err := pool.New(pool.Config{
		PoolRoot:   a.Paths.PoolRoot,
		ObjectRoot: a.Paths.ObjectRoot,
		TempRoot:   a.Paths.TempRoot,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	runJournal, err := journal.Open(a.Paths.MetaRoot, a.ID, logger)
	if err != nil {
		return nil, err
	}
	return publisher.New(publisher.Config{
		Archive:       a,
		Catalog:       e.catalog,
		Pool:          store,
		Releases:      release.New(release.Config{Signer: signer, Logger: logger}),
		Encodings:     e.config.Encodings(),
		Journal:       runJournal,
		AllowedSuites: allowed,
		CreateAliases: e.config.CreateAliases(),
		Logger:        logger,
	})
}

func printReport(env *environment, report *publisher.Report) {
	fmt.Fprintf(env.stdout, "%s: run %s, %d published, %d dirty suites, %d Release files written\n",
		report.Archive, report.RunID, report.Published, len(report.Dirty), len(report.ReleasesWritten))
	for _, suite := range report.ReleasesWritten {
		fmt.Fprintf(env.stdout, "  released %s\n", suite)
	}
	for _, warning := range report.Warnings {
		env.logger.Warn("publish warning", "archive", report.Archive, "error", warning)
	}
	for _, failure := range report.Errors {
		env.logger.Error("publish error", "archive", report.Archive, "error", failure)
	}
}
