// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads custody configuration.
//
// Configuration comes from a single optional YAML file named by the
// --config flag or the CUSTODY_CONFIG environment variable. Without a
// file, [Default] applies. Two paths are additionally overridable from
// the environment because operators routinely relocate them per case
// host:
//
//   - CUSTODY_EVIDENCE_ROOT -- where case workspaces are created
//   - CUSTODY_TOOLS_DIR -- where adb and carving tools are looked up
//     before PATH
//
// ${HOME} and ${VAR:-default} patterns are expanded in paths. Both
// directories are created by [Config.EnsurePaths] if absent.
package config
