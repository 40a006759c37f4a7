// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"strings"

	"pault.ag/go/debian/version"
)

// CompareVersions orders two Debian version strings. Strings that do
// not parse as Debian versions fall back to byte order so that sorting
// stays total.
func CompareVersions(a, b string) int {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return version.Compare(va, vb)
}
