// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aptpublish/cmd/aptpublish/cli"
	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/clock"
	"github.com/bureau-foundation/aptpublish/lib/lifecycle"
)

// archiveCommand builds a command that applies run to each archive
// named on the command line, or to every configured archive when none
// is named. Failures are logged per archive and turn into exit code 1
// once every archive was attempted.
func archiveCommand(out streams, name, summary, description string, requireArgs bool, run func(ctx context.Context, env *environment, a *archive.Archive) error) *cli.Command {
	var flags commonFlags
	usage := "aptpublish " + name + " [flags] [archive...]"
	if requireArgs {
		usage = "aptpublish " + name + " [flags] <archive>..."
	}
	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: description,
		Usage:       usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if requireArgs && len(args) == 0 {
				return fmt.Errorf("%s: at least one archive is required", name)
			}
			env, err := openEnvironment(ctx, &flags, name, out.stdout, out.stderr)
			if err != nil {
				return err
			}
			defer env.close()

			archives, err := env.archives(ctx, &flags, args)
			if err != nil {
				return err
			}
			failed := false
			for _, a := range archives {
				if err := run(ctx, env, a); err != nil {
					env.logger.Error(name+" failed", "archive", a.Reference(), "error", err)
					failed = true
				}
			}
			if failed {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func setupCommand(out streams) *cli.Command {
	return archiveCommand(out, "setup",
		"Create archive directories and private archive credentials",
		`Create the pool, dists, temporary, object and meta directories of the
selected archives. Private archives also get .htaccess and .htpasswd
unless .htaccess already exists.`,
		false,
		func(_ context.Context, env *environment, a *archive.Archive) error {
			if err := lifecycle.SetupArchiveDirs(a, env.logger); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "%s: %s\n", a.Reference(), a.Paths.ArchiveRoot)
			return nil
		})
}

func deathRowCommand(out streams) *cli.Command {
	return archiveCommand(out, "death-row",
		"Remove pool files of publications past their deletion date",
		`Remove the pool files of superseded, deleted and obsolete publications
whose scheduled deletion date has passed, and stamp them removed.
Files that a live publication still references stay in the pool.`,
		false,
		func(ctx context.Context, env *environment, a *archive.Archive) error {
			if a.Status != archive.ArchiveActive {
				return nil
			}
			p, err := env.publisher(a, nil, nil)
			if err != nil {
				return err
			}
			report, err := p.ProcessDeathRow(ctx, clock.Real().Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "%s: %d condemned, %d files removed, %d kept, %d stamped\n",
				a.Reference(), report.Condemned, report.Removed, report.Kept, report.Stamped)
			return errors.Join(report.Errors...)
		})
}

func aliasesCommand(out streams) *cli.Command {
	return archiveCommand(out, "aliases",
		"Point the development series alias at the newest published series",
		`Create or update dists/<alias><suffix> symlinks for every pocket of
the selected archives. Distributions without a development series
alias are left alone.`,
		false,
		func(_ context.Context, env *environment, a *archive.Archive) error {
			if a.Status != archive.ArchiveActive {
				return nil
			}
			return lifecycle.CreateSeriesAliases(a, env.logger)
		})
}

func deleteArchiveCommand(out streams) *cli.Command {
	command := archiveCommand(out, "delete-archive",
		"Delete a PPA",
		`Delete the publications of a PPA, remove its directories and rename
it to <name>-deletedppa so the name can be reused. Deleting an archive
that is already deleted only removes leftover directories.`,
		true,
		func(ctx context.Context, env *environment, a *archive.Archive) error {
			original := a.Reference()
			if err := lifecycle.DeleteArchive(ctx, a, env.catalog, clock.Real().Now(), env.logger); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "%s: deleted as %s\n", original, a.Name)
			return nil
		})
	command.Examples = []cli.Example{{
		Description: "Delete a user's default PPA",
		Command:     "aptpublish delete-archive ppa:cprov/ppa",
	}}
	return command
}
