/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package manifest models the gitfleet manifest: the declarative description
// of a fleet of Git repositories and GitHub release assets.
//
// # File Discovery
//
// A manifest lives in a directory as gitfleet.yaml, gitfleet.yml, or
// gitfleet.json; Find probes those names in priority order. JSON manifests
// may carry // and /* */ comments and trailing commas (they are stripped
// before decoding), YAML manifests are plain YAML.
//
// # Schema
//
// The top level carries a schemaVersion (currently "v1") and at least one of
// repositories or releases. Repository entries pin a src URL to a revision
// (a SHA prefix, refs/tags/<name>, or refs/heads/<name>) at a dest path
// relative to the manifest's directory. Release entries name a GitHub
// repository, a release tag, and the assets to download.
//
// Load validates on the way in; a manifest that fails validation is rejected
// before any work derives from it (errors unwrap to ErrSchemaValidation).
package manifest
