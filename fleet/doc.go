/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package fleet turns a manifest into work: it feeds repository syncs and
// release downloads to a bounded pool, expands nested manifests discovered
// inside synced repositories into the same pool, and aggregates everything
// into a report in submission order.
//
// # Subfleets
//
// A repository entry with clone-subfleet set may carry its own manifest.
// After the entry syncs, the manifest inside its working tree is loaded and
// its entries join the running pool, with destinations resolved relative to
// the parent's destination. Expansion carries the chain of parent
// destinations; a nested entry that targets a destination already on the
// chain, or nesting past a fixed depth, fails with ErrSubfleetCycle instead
// of recursing forever.
//
// # Anchor mode
//
// Anchor resolves every repository revision against its remote and writes
// the manifest back with concrete commit SHAs, without syncing anything.
package fleet
