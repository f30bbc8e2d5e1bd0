/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package assetfetcher downloads GitHub release assets listed in a manifest
// release entry and optionally extracts them.
//
// A release entry names a GitHub repository, a tag, and assets by file name.
// The fetcher looks the release up by tag, downloads each asset to a
// temporary file in the destination directory, and renames it into place so
// an interrupted run never leaves partial files. Assets whose names carry a
// supported archive extension (.zip, .tar.gz, .tgz, .tar, .gz) are unpacked
// into the destination; recognized-but-undecodable archive extensions fail
// with ErrUnsupportedArchive; everything else is left as downloaded.
//
// Assets within one release download concurrently, and one asset's failure
// does not stop its siblings; the release outcome reports how many of its
// assets were processed.
package assetfetcher
