// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of aptpublish.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/aptpublish/lib/version.Version=1.2.0"
//
// Other builds fall back to the VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version, set for releases.
	Version = "0.1.0-dev"

	// GitCommit is the short git SHA of the build.
	GitCommit = ""

	// BuildTime is the UTC timestamp of the build.
	BuildTime = ""
)

// stamp returns the commit, its time and whether the tree was dirty,
// preferring the -ldflags values.
func stamp() (commit, when string, dirty bool) {
	commit, when = GitCommit, BuildTime
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, when, false
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "" && len(setting.Value) >= 12 {
				commit = setting.Value[:12]
			}
		case "vcs.time":
			if when == "" {
				when = setting.Value
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return commit, when, dirty
}

// Info returns a one-line version string.
func Info() string {
	commit, when, dirty := stamp()
	if commit == "" {
		commit = "unknown"
	}
	if dirty {
		commit += "-dirty"
	}
	if when == "" {
		when = "unknown"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, when)
}

// Full adds the Go version and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
