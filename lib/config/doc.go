// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the publisher configuration from YAML.
//
// Configuration is loaded from a single file named by either the
// APTPUBLISH_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Path fields are expanded after
// loading: ${HOME}, ${APTPUBLISH_ROOT} and ${VAR:-default}.
//
// Key exports:
//
//   - [Config] -- paths, logging, publishing settings, distributions
//     and archives
//   - [Config.Distribution] -- the series model of a distribution
//   - [Config.Archive] -- resolves an archive reference, overlaid by
//     the runtime state stored in the catalog
//   - [Config.RegisterArchives] -- records configured archives in the
//     catalog on first use
package config
