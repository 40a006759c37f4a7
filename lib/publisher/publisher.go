// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
	"github.com/bureau-foundation/aptpublish/lib/clock"
	"github.com/bureau-foundation/aptpublish/lib/index"
	"github.com/bureau-foundation/aptpublish/lib/journal"
	"github.com/bureau-foundation/aptpublish/lib/lifecycle"
	"github.com/bureau-foundation/aptpublish/lib/pool"
	"github.com/bureau-foundation/aptpublish/lib/release"
)

// Dominator supersedes older publications of a suite. Domination
// policy lives outside this package; phase B only calls it.
type Dominator interface {
	Dominate(ctx context.Context, a *archive.Archive, suite archive.SuiteKey) error
}

// Config holds a Publisher's collaborators.
type Config struct {
	Archive  *archive.Archive
	Catalog  catalog.Catalog
	Pool     *pool.Store
	Releases *release.Assembler

	// Encodings are the compressed forms written next to every index.
	// Empty means index.DefaultEncodings.
	Encodings []index.Encoding

	// Journal records stale suites across runs. Nil disables it.
	Journal *journal.Journal

	// AllowedSuites restricts the run. Empty allows every suite.
	AllowedSuites []archive.SuiteKey

	// Dominator, when set, runs as phase B.
	Dominator Dominator

	// CreateAliases maintains the distribution's development series
	// alias after phase D.
	CreateAliases bool

	Clock  clock.Clock
	Logger *slog.Logger
}

// Options selects careful mode per phase. Careful enables all three.
type Options struct {
	Careful           bool
	CarefulPublishing bool
	CarefulIndexes    bool
	// CarefulRelease alone changes nothing: phase D writes only the
	// suites phase C regenerated, so it needs Careful or CarefulIndexes
	// to reach unchanged suites.
	CarefulRelease    bool
}

// Report is the outcome of a run.
type Report struct {
	RunID   string
	Archive string

	// Published counts publications moved to published in phase A.
	Published int

	// Dirty lists the suites phases A and A2 marked, in name order.
	Dirty []string

	// ReleasesWritten lists the suites whose Release was written.
	ReleasesWritten []string

	// Errors holds per-publication and per-suite failures. Warnings
	// holds problems that left the archive valid, such as an unsigned
	// Release.
	Errors   []error
	Warnings []error
}

// Failed reports whether the run collected any error.
func (r *Report) Failed() bool { return len(r.Errors) > 0 }

// Publisher runs the pipeline for one archive. A Publisher carries
// the state of a single run; create a new one for every run.
type Publisher struct {
	archive       *archive.Archive
	catalog       catalog.Catalog
	pool          *pool.Store
	releases      *release.Assembler
	encodings     []index.Encoding
	journal       *journal.Journal
	allowed       map[archive.SuiteKey]bool
	dominator     Dominator
	createAliases bool
	clock         clock.Clock
	logger        *slog.Logger

	// subcomponents is computed once: the archive flags that decide it
	// do not change during a run.
	subcomponents []string

	dirty         map[archive.SuiteKey]bool
	releaseNeeded map[archive.SuiteKey]bool
	report        *Report
}

// New validates config and returns a Publisher.
func New(config Config) (*Publisher, error) {
	if config.Archive == nil || config.Archive.Distribution == nil {
		return nil, errors.New("publisher: archive with distribution is required")
	}
	if config.Catalog == nil || config.Pool == nil || config.Releases == nil {
		return nil, errors.New("publisher: catalog, pool and release assembler are required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := config.Clock
	if c == nil {
		c = clock.Real()
	}
	encodings := config.Encodings
	if len(encodings) == 0 {
		encodings = index.DefaultEncodings
	}
	var allowed map[archive.SuiteKey]bool
	if len(config.AllowedSuites) > 0 {
		allowed = make(map[archive.SuiteKey]bool, len(config.AllowedSuites))
		for _, suite := range config.AllowedSuites {
			allowed[suite] = true
		}
	}

	runID := uuid.NewString()
	return &Publisher{
		archive:       config.Archive,
		catalog:       config.Catalog,
		pool:          config.Pool,
		releases:      config.Releases,
		encodings:     encodings,
		journal:       config.Journal,
		allowed:       allowed,
		dominator:     config.Dominator,
		createAliases: config.CreateAliases,
		clock:         c,
		logger:        logger.With("archive", config.Archive.Reference(), "run_id", runID),
		subcomponents: config.Archive.Subcomponents(),
		dirty:         make(map[archive.SuiteKey]bool),
		releaseNeeded: make(map[archive.SuiteKey]bool),
		report:        &Report{RunID: runID, Archive: config.Archive.Reference()},
	}, nil
}

// Report returns the report of the run so far.
func (p *Publisher) Report() *Report { return p.report }

// Run executes phases A, A2, B, C and D in order, then maintains the
// series aliases. The returned error is set only when a phase could
// not run at all (catalog unavailable, context cancelled); failures of
// individual publications and suites are in the Report.
func (p *Publisher) Run(ctx context.Context, options Options) (*Report, error) {
	p.logger.Info("publishing archive",
		"careful", options.Careful,
		"careful_indexes", options.CarefulIndexes,
		"careful_release", options.CarefulRelease)

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"A", func(ctx context.Context) error {
			return p.PublishPending(ctx, options.Careful || options.CarefulPublishing)
		}},
		{"A2", p.MarkDeletionsDirty},
		{"journal", p.recordStale},
		{"B", func(ctx context.Context) error {
			return p.Dominate(ctx, options.Careful)
		}},
		{"C", func(ctx context.Context) error {
			return p.WriteIndexes(ctx, options.Careful || options.CarefulIndexes)
		}},
		{"D", p.WriteReleaseFiles},
	}
	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return p.report, fmt.Errorf("run interrupted before phase %s: %w", phase.name, err)
		}
		if err := phase.run(ctx); err != nil {
			return p.report, fmt.Errorf("phase %s: %w", phase.name, err)
		}
	}

	if p.createAliases {
		if err := lifecycle.CreateSeriesAliases(p.archive, p.logger); err != nil {
			p.report.Errors = append(p.report.Errors, fmt.Errorf("creating series aliases: %w", err))
		}
	}

	p.logger.Info("archive published",
		"published", p.report.Published,
		"dirty", len(p.report.Dirty),
		"releases", len(p.report.ReleasesWritten),
		"errors", len(p.report.Errors),
		"warnings", len(p.report.Warnings))
	return p.report, nil
}

// IsAllowed reports whether the run may touch suite.
func (p *Publisher) IsAllowed(suite archive.SuiteKey) bool {
	return p.allowed == nil || p.allowed[suite]
}

// IsDirty reports whether suite is in the dirty set.
func (p *Publisher) IsDirty(suite archive.SuiteKey) bool { return p.dirty[suite] }

// DirtySuites returns the dirty set in name order.
func (p *Publisher) DirtySuites() []archive.SuiteKey {
	return sortedSuites(p.dirty)
}

func (p *Publisher) markDirty(suite archive.SuiteKey) {
	if p.dirty[suite] {
		return
	}
	p.dirty[suite] = true
	p.report.Dirty = append(p.report.Dirty, suite.Name())
	slices.Sort(p.report.Dirty)
}

// recordStale writes the dirty set to the run journal before any index
// is touched.
func (p *Publisher) recordStale(context.Context) error {
	if p.journal == nil {
		return nil
	}
	return p.journal.Record(p.report.RunID, p.DirtySuites(), p.clock.Now())
}

// suites yields every (series, pocket) of the given series in
// configuration order, skipping suites the run is not allowed to touch.
func (p *Publisher) suites(series []*archive.Series) []suiteRef {
	var refs []suiteRef
	for _, s := range series {
		for _, pocket := range p.archive.Pockets() {
			key := archive.SuiteKey{Series: s.Name, Pocket: pocket}
			if !p.IsAllowed(key) {
				continue
			}
			refs = append(refs, suiteRef{series: s, pocket: pocket, key: key})
		}
	}
	return refs
}

type suiteRef struct {
	series *archive.Series
	pocket archive.Pocket
	key    archive.SuiteKey
}

func (r suiteRef) name() string { return r.key.Name() }

func sortedSuites(set map[archive.SuiteKey]bool) []archive.SuiteKey {
	suites := make([]archive.SuiteKey, 0, len(set))
	for suite := range set {
		suites = append(suites, suite)
	}
	slices.SortFunc(suites, func(a, b archive.SuiteKey) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return suites
}
