/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package fleet

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/gitfleet/assetfetcher"
	"chainguard.dev/gitfleet/gitclient"
	"chainguard.dev/gitfleet/manifest"
	"chainguard.dev/gitfleet/reposyncer"
	"chainguard.dev/gitfleet/workqueue"
)

// DefaultParallel is the worker count used when Options.Parallel is unset.
const DefaultParallel = 4

// Options configure a run.
type Options struct {
	// DryRun reports what would change without mutating anything.
	DryRun bool
	// ForceShallow clones every repository shallow regardless of its
	// manifest setting.
	ForceShallow bool
	// Parallel bounds concurrent work items. Values below 1 fall back to
	// DefaultParallel.
	Parallel int
}

// Orchestrator runs a manifest: repositories and releases fan out across a
// bounded pool, and subfleet expansion feeds the same pool as entries
// finish.
type Orchestrator struct {
	client  *gitclient.Client
	syncer  *reposyncer.Syncer
	fetcher *assetfetcher.Fetcher
	opts    Options

	mu   sync.Mutex
	pool *workqueue.Pool
}

// New builds an Orchestrator on top of a git client and an asset fetcher.
// The fetcher's own dry-run option must agree with opts.DryRun.
func New(client *gitclient.Client, fetcher *assetfetcher.Fetcher, opts Options) *Orchestrator {
	if opts.Parallel < 1 {
		opts.Parallel = DefaultParallel
	}
	return &Orchestrator{
		client: client,
		syncer: reposyncer.New(client,
			reposyncer.WithDryRun(opts.DryRun),
			reposyncer.WithForceShallow(opts.ForceShallow)),
		fetcher: fetcher,
		opts:    opts,
	}
}

// Run syncs every entry of m, resolving relative destinations against
// baseDir (the manifest file's directory). It blocks until all work,
// including dynamically discovered subfleet work, has drained.
func (o *Orchestrator) Run(ctx context.Context, m *manifest.Manifest, baseDir string) *workqueue.Report {
	clog.FromContext(ctx).Infof("Syncing %d repositories and %d releases with %d workers",
		len(m.Repositories), len(m.Releases), o.opts.Parallel)

	pool := workqueue.New(ctx, o.opts.Parallel)
	o.mu.Lock()
	o.pool = pool
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.pool = nil
		o.mu.Unlock()
	}()

	for _, entry := range m.Repositories {
		o.submitRepository(pool, entry, baseDir, nil)
	}
	for _, rel := range m.Releases {
		o.submitRelease(pool, rel, baseDir)
	}
	return pool.Wait()
}

// Stop drains the in-flight run early: queued items are skipped while
// running ones finish. Safe to call at any time.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pool != nil {
		o.pool.Stop()
	}
}

// submitRepository queues one repository entry. chain carries the
// destination paths of the subfleet parents that led here.
func (o *Orchestrator) submitRepository(pool *workqueue.Pool, entry manifest.Repository, baseDir string, chain []string) {
	pool.Submit(entry.Name(), "repository", func(ctx context.Context) workqueue.Outcome {
		outcome := o.syncer.Sync(ctx, entry, baseDir)
		if outcome.Status == workqueue.StatusFailed {
			return outcome
		}
		dest := entry.DestPath(baseDir)

		if len(entry.Copy) > 0 {
			if err := o.syncer.CopyAll(ctx, entry.Copy, dest, baseDir); err != nil {
				outcome.Status = workqueue.StatusFailed
				outcome.Err = fmt.Errorf("copying artifacts: %w", err)
				return outcome
			}
		}

		if entry.CloneSubfleet {
			if err := o.expand(ctx, pool, entry, dest, chain); err != nil {
				outcome.Status = workqueue.StatusFailed
				outcome.Err = err
				return outcome
			}
		}
		return outcome
	})
}

func (o *Orchestrator) submitRelease(pool *workqueue.Pool, rel manifest.Release, baseDir string) {
	pool.Submit(rel.Name()+"@"+rel.Tag, "release", func(ctx context.Context) workqueue.Outcome {
		return o.fetcher.Fetch(ctx, rel, baseDir)
	})
}
