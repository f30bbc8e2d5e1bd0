/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reposyncer reconciles one manifest repository entry with the local
// filesystem.
//
// # States
//
// An absent destination (or an existing empty directory) is cloned at the
// requested revision. A destination holding a working tree is fetched and
// force-checked-out when its HEAD differs from the resolved revision, and
// left alone when it already matches. A non-empty destination that is not a
// working tree fails with ErrDestinationConflict; nothing is ever deleted to
// make room.
//
// # Dry run
//
// Dry runs never mutate: they report the action that a real run would take,
// using remote ref listing instead of fetching to decide between "would
// update" and "up to date".
//
// The package also hosts the selective copier that publishes files out of a
// synced working tree after its sync completes.
package reposyncer
