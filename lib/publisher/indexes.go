// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
	"github.com/bureau-foundation/aptpublish/lib/index"
)

// stanzas writes a sequence of stanzas as one index document.
type stanzas []*index.Stanza

func (s stanzas) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, stanza := range s {
		n, err := stanza.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteIndexes is phase C. Every allowed suite that is dirty or
// recorded stale in the journal (every allowed suite in careful mode)
// gets fresh Sources, Packages and translation indexes, and is queued
// for phase D.
func (p *Publisher) WriteIndexes(ctx context.Context, careful bool) error {
	for _, ref := range p.suites(p.archive.Distribution.Series) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !careful {
			stale := p.journal != nil && p.journal.Contains(ref.key)
			if !p.dirty[ref.key] && !stale {
				continue
			}
			if p.archive.CannotModifySuite(ref.series, ref.pocket) {
				err := &SuiteStateError{Suite: ref.name(), Reason: "tainting RELEASE pocket"}
				p.logger.Error("refusing to regenerate indexes", "suite", ref.name(), "error", err)
				p.report.Errors = append(p.report.Errors, err)
				continue
			}
		}
		if err := p.writeSuiteIndexes(ctx, ref); err != nil {
			p.logger.Error("writing indexes failed", "suite", ref.name(), "error", err)
			p.report.Errors = append(p.report.Errors, fmt.Errorf("writing indexes of %s: %w", ref.name(), err))
			continue
		}
		p.releaseNeeded[ref.key] = true
	}
	return nil
}

func (p *Publisher) writeSuiteIndexes(ctx context.Context, ref suiteRef) error {
	query := catalog.SuiteQuery(p.archive.ID, ref.key, archive.Published)
	sources, err := p.catalog.Sources(ctx, query)
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}
	binaries, err := p.catalog.Binaries(ctx, query)
	if err != nil {
		return fmt.Errorf("listing binaries: %w", err)
	}
	index.SortSources(sources)
	index.SortBinaries(binaries)

	p.logger.Debug("writing indexes", "suite", ref.name(), "sources", len(sources), "binaries", len(binaries))
	for _, component := range p.archive.Components(ref.series) {
		if err := p.writeComponentIndexes(ref, component, sources, binaries); err != nil {
			return fmt.Errorf("component %s: %w", component, err)
		}
	}
	return nil
}

func (p *Publisher) writeComponentIndexes(ref suiteRef, component string, sources []archive.SourcePublication, binaries []archive.BinaryPublication) error {
	paths := p.archive.Paths
	suite := ref.name()
	longDescriptions := ref.series.IncludeLongDescriptions

	var sourceStanzas stanzas
	for i := range sources {
		if sources[i].Component == component {
			sourceStanzas = append(sourceStanzas, index.SourceStanza(&sources[i]))
		}
	}
	if err := index.WriteAll(paths.SourcesPath(suite, component), paths.TempRoot, p.encodings, sourceStanzas); err != nil {
		return err
	}

	var translations index.TranslationSet
	for _, arch := range ref.series.EnabledArchitectures() {
		trees := map[string]stanzas{}
		for i := range binaries {
			pub := &binaries[i]
			if pub.Component != component || pub.Architecture != arch {
				continue
			}
			subcomponent := pub.Format.Subcomponent()
			if subcomponent != "" && !slices.Contains(p.subcomponents, subcomponent) {
				continue
			}
			trees[subcomponent] = append(trees[subcomponent], index.BinaryStanza(pub, longDescriptions))
			if subcomponent == "" && !longDescriptions {
				translations.Add(pub)
			}
		}

		if err := index.WriteAll(paths.PackagesPath(suite, component, arch, ""), paths.TempRoot, p.encodings, trees[""]); err != nil {
			return err
		}
		for _, subcomponent := range p.subcomponents {
			path := paths.PackagesPath(suite, component, arch, subcomponent)
			if err := index.WriteAll(path, paths.TempRoot, p.encodings, trees[subcomponent]); err != nil {
				return err
			}
		}
	}

	if !longDescriptions {
		path := filepath.Join(paths.I18nDir(suite, component), "Translation-en")
		if err := index.WriteAll(path, paths.TempRoot, []index.Encoding{index.Bzip2}, &translations); err != nil {
			return err
		}
	}
	return nil
}
