// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/catalog"
)

// StateStore persists the runtime state of archives. catalog.Catalog
// satisfies it.
type StateStore interface {
	ArchiveState(ctx context.Context, archiveID int64) (catalog.ArchiveState, bool, error)
	SaveArchiveState(ctx context.Context, state catalog.ArchiveState) error
}

// ArchiveRef names one configured archive.
type ArchiveRef struct {
	Distribution string
	Ref          string
}

func (r ArchiveRef) String() string { return r.Distribution + "/" + r.Ref }

// ArchiveRefs lists every configured archive in configuration order.
func (c *Config) ArchiveRefs() []ArchiveRef {
	refs := make([]ArchiveRef, 0, len(c.Archives))
	for _, a := range c.Archives {
		refs = append(refs, ArchiveRef{Distribution: a.Distribution, Ref: a.Ref()})
	}
	return refs
}

func (c *Config) findArchive(distribution, ref string) (ArchiveConfig, error) {
	for _, a := range c.Archives {
		if a.Distribution == distribution && strings.EqualFold(a.Ref(), ref) {
			return a, nil
		}
	}
	return ArchiveConfig{}, fmt.Errorf("no archive %q in distribution %q", ref, distribution)
}

// RegisterArchives records the initial state of every configured
// archive the store does not know yet. Known archives are left alone:
// their stored state wins over the file.
func (c *Config) RegisterArchives(ctx context.Context, states StateStore) error {
	for _, a := range c.Archives {
		_, found, err := states.ArchiveState(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("reading state of archive %d: %w", a.ID, err)
		}
		if found {
			continue
		}
		state := catalog.ArchiveState{
			ArchiveID:    a.ID,
			Distribution: a.Distribution,
			Owner:        a.Owner,
			Name:         a.Name,
			Status:       archive.ArchiveActive,
			Publish:      a.Publish == nil || *a.Publish,
		}
		if err := states.SaveArchiveState(ctx, state); err != nil {
			return fmt.Errorf("registering archive %d: %w", a.ID, err)
		}
	}
	return nil
}

// Archive resolves a reference ("primary", "partner", "copy/<name>" or
// "ppa:<owner>/<name>") within a distribution into an archive with its
// paths computed. When states is non-nil the stored archive state
// overrides the configured owner, name, status and publish flag, and
// the paths follow the stored name.
func (c *Config) Archive(ctx context.Context, distribution, ref string, states StateStore) (*archive.Archive, error) {
	ac, err := c.findArchive(distribution, ref)
	if err != nil {
		return nil, err
	}
	model, err := c.Distribution(distribution)
	if err != nil {
		return nil, err
	}

	a := &archive.Archive{
		ID:                  ac.ID,
		Distribution:        model,
		Purpose:             ac.Purpose,
		Owner:               ac.Owner,
		Name:                ac.Name,
		DisplayName:         ac.DisplayName,
		Private:             ac.Private,
		Publish:             ac.Publish == nil || *ac.Publish,
		Status:              archive.ArchiveActive,
		PublishDebugSymbols: ac.PublishDebugSymbols,
		SigningKey:          ac.SigningKey,
	}
	if a.Purpose == archive.Primary || a.Purpose == archive.Partner {
		a.Owner, a.Name = "", ""
	}
	if a.DisplayName == "" {
		a.DisplayName = defaultDisplayName(a)
	}

	if states != nil {
		state, found, err := states.ArchiveState(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("reading state of archive %d: %w", a.ID, err)
		}
		if found {
			a.Owner, a.Name = state.Owner, state.Name
			a.Status = state.Status
			a.Publish = state.Publish
		}
	}

	if ac.BuilddSecretFile != "" {
		secret, err := os.ReadFile(ac.BuilddSecretFile)
		if err != nil {
			return nil, fmt.Errorf("reading buildd secret of %s: %w", ac.Ref(), err)
		}
		a.BuilddSecret = strings.TrimSpace(string(secret))
	}
	if ac.SubscribersFile != "" {
		data, err := os.ReadFile(ac.SubscribersFile)
		if err != nil {
			return nil, fmt.Errorf("reading subscribers of %s: %w", ac.Ref(), err)
		}
		if err := yaml.Unmarshal(data, &a.Subscribers); err != nil {
			return nil, fmt.Errorf("parsing subscribers of %s: %w", ac.Ref(), err)
		}
	}

	a.Paths, err = c.Roots().PathsFor(a)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func defaultDisplayName(a *archive.Archive) string {
	switch a.Purpose {
	case archive.PPA:
		return "PPA for " + a.Owner
	case archive.Copy:
		return "Copy archive " + a.Name + " for " + a.Distribution.DisplayName
	case archive.Partner:
		return "Partner archive for " + a.Distribution.DisplayName
	default:
		return "Primary archive for " + a.Distribution.DisplayName
	}
}
