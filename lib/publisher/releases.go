// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/aptpublish/lib/release"
)

// WriteReleaseFiles is phase D. Only suites phase C regenerated get a
// new Release, signature and synchronised timestamps, in careful runs
// too. A written Release clears the suite from the run journal.
func (p *Publisher) WriteReleaseFiles(ctx context.Context) error {
	for _, ref := range p.suites(p.archive.Distribution.Series) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.releaseNeeded[ref.key] {
			p.logger.Debug("skipping Release", "suite", ref.name())
			continue
		}
		result, err := p.releases.WriteSuite(ctx, release.SuiteInput{
			Archive:       p.archive,
			Series:        ref.series,
			Pocket:        ref.pocket,
			Components:    p.archive.Components(ref.series),
			Architectures: ref.series.EnabledArchitectures(),
			Subcomponents: p.subcomponents,
			Encodings:     p.encodings,
		})
		p.report.Warnings = append(p.report.Warnings, result.Warnings...)
		if err != nil {
			p.logger.Error("writing Release failed", "suite", ref.name(), "error", err)
			p.report.Errors = append(p.report.Errors, fmt.Errorf("writing Release of %s: %w", ref.name(), err))
			continue
		}
		p.report.ReleasesWritten = append(p.report.ReleasesWritten, result.Suite)

		if p.journal != nil {
			if err := p.journal.Clear(ref.key, p.clock.Now()); err != nil {
				p.report.Warnings = append(p.report.Warnings, fmt.Errorf("clearing %s from journal: %w", ref.name(), err))
			}
		}
	}
	return nil
}
