// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aptpublish/cmd/aptpublish/cli"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
)

func catalogCommand(out streams) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Summary: "Manage the local publication catalog",
		Subcommands: []*cli.Command{
			catalogImportCommand(out),
		},
	}
}

func catalogImportCommand(out streams) *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "import",
		Summary: "Load publications from YAML files",
		Description: `Add the sources and binaries described in each YAML file to the
catalog as new publications. File paths inside a document are
relative to the document. Sizes and digests left out are computed
from the file content.`,
		Usage: "aptpublish catalog import [flags] <file>...",
		Examples: []cli.Example{
			{
				Description: "Queue a source and its binaries, then publish them",
				Command:     "aptpublish catalog import upload.yaml && aptpublish publish",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("catalog import: at least one file is required")
			}
			env, err := openEnvironment(ctx, &flags, "catalog import", out.stdout, out.stderr)
			if err != nil {
				return err
			}
			defer env.close()

			for _, path := range args {
				counts, err := catalog.ImportFile(ctx, env.catalog, path)
				if err != nil {
					return fmt.Errorf("importing %s: %w", path, err)
				}
				env.logger.Info("imported publications", "file", path, "sources", counts.Sources, "binaries", counts.Binaries)
				fmt.Fprintf(env.stdout, "%s: %d sources, %d binaries\n", path, counts.Sources, counts.Binaries)
			}
			return nil
		},
	}
}
