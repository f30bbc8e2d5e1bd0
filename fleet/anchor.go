/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package fleet

import (
	"context"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/gitfleet/manifest"
)

// Anchor resolves every repository revision in m against its remote and
// writes the pinned manifest to target, or back over manifestPath when
// target is empty. Entries whose revision is already a commit SHA are left
// untouched without a remote call; releases pass through unchanged. No sync
// work happens.
func (o *Orchestrator) Anchor(ctx context.Context, m *manifest.Manifest, manifestPath, target string) error {
	log := clog.FromContext(ctx)
	out := target
	if out == "" {
		out = manifestPath
	}

	anchored := *m
	anchored.Repositories = slices.Clone(m.Repositories)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Parallel)
	for i := range anchored.Repositories {
		g.Go(func() error {
			entry := anchored.Repositories[i]
			sha, err := o.client.ResolveRemote(ctx, entry.Src, entry.Revision)
			if err != nil {
				return fmt.Errorf("resolving %s@%s: %w", entry.Name(), entry.Revision, err)
			}
			if sha != entry.Revision {
				log.Infof("Anchored %s: %s -> %s", entry.Name(), entry.Revision, sha[:8])
				anchored.Repositories[i].Revision = sha
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if o.opts.DryRun {
		log.Infof("Would write anchored manifest to %s", out)
		return nil
	}
	if err := manifest.Save(&anchored, out); err != nil {
		return fmt.Errorf("writing anchored manifest: %w", err)
	}
	log.Infof("Anchored %d repositories to %s", len(anchored.Repositories), out)
	return nil
}
