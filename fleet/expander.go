/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package fleet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/gitfleet/manifest"
	"chainguard.dev/gitfleet/workqueue"
)

// ErrSubfleetCycle reports subfleet nesting that revisits a destination
// already being expanded, or nesting deeper than maxSubfleetDepth.
var ErrSubfleetCycle = errors.New("subfleet cycle detected")

// maxSubfleetDepth caps nesting even when every destination is distinct.
const maxSubfleetDepth = 32

// expand loads the manifest inside a synced subfleet repository and submits
// its entries to the running pool. A repository without a nested manifest is
// a warning, not an error; a nested manifest that fails to load or that
// cycles fails the parent entry.
func (o *Orchestrator) expand(ctx context.Context, pool *workqueue.Pool, parent manifest.Repository, dest string, chain []string) error {
	log := clog.FromContext(ctx)

	if len(chain) >= maxSubfleetDepth {
		return fmt.Errorf("%w: %s nests more than %d manifests deep", ErrSubfleetCycle, parent.Name(), maxSubfleetDepth)
	}
	chain = append(slices.Clone(chain), filepath.Clean(dest))

	path, err := manifest.Find(dest)
	if err != nil {
		log.Warnf("Subfleet requested but %s has no fleet manifest", dest)
		return nil
	}
	nested, err := manifest.Load(path)
	if err != nil {
		return fmt.Errorf("loading subfleet manifest: %w", err)
	}
	log.Infof("Expanding subfleet %s: %d repositories, %d releases",
		path, len(nested.Repositories), len(nested.Releases))

	for _, child := range nested.Repositories {
		childDest := filepath.Clean(child.DestPath(dest))
		if slices.Contains(chain, childDest) {
			return fmt.Errorf("%w: %s is already being synced by a parent manifest", ErrSubfleetCycle, childDest)
		}
		o.submitRepository(pool, child, dest, chain)
	}
	for _, rel := range nested.Releases {
		o.submitRelease(pool, rel, dest)
	}
	return nil
}
