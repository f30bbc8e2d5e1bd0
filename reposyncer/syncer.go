/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reposyncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/gitfleet/gitclient"
	"chainguard.dev/gitfleet/manifest"
	"chainguard.dev/gitfleet/workqueue"
)

// ErrDestinationConflict reports a destination that exists, is not empty,
// and does not hold a git repository.
var ErrDestinationConflict = errors.New("destination conflict")

// Syncer reconciles repository entries.
type Syncer struct {
	client       *gitclient.Client
	dryRun       bool
	forceShallow bool
}

// Option configures the Syncer.
type Option func(*Syncer)

// WithDryRun makes Sync report intended actions without mutating anything.
func WithDryRun(dryRun bool) Option {
	return func(s *Syncer) {
		s.dryRun = dryRun
	}
}

// WithForceShallow makes every clone shallow regardless of the entry's
// shallow-clone setting.
func WithForceShallow(force bool) Option {
	return func(s *Syncer) {
		s.forceShallow = force
	}
}

// New constructs a Syncer on top of the given Git client.
func New(client *gitclient.Client, opts ...Option) *Syncer {
	s := &Syncer{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync brings entry's destination (resolved against baseDir) to the
// requested revision and reports what it did. Errors are folded into the
// outcome so one entry's failure never propagates past its own work item.
func (s *Syncer) Sync(ctx context.Context, entry manifest.Repository, baseDir string) workqueue.Outcome {
	dest := entry.DestPath(baseDir)

	present, err := destinationPresent(dest)
	if err != nil {
		return failed(err)
	}
	if !present {
		if s.dryRun {
			clog.FromContext(ctx).Infof("Would clone %s (revision %s) into %s", entry.Src, entry.Revision, dest)
			return skipped(fmt.Sprintf("would clone at %s", entry.Revision))
		}
		return s.clone(ctx, entry, dest)
	}
	return s.update(ctx, entry, dest)
}

// destinationPresent reports whether dest holds anything to reconcile with.
// A missing path and an existing empty directory both count as absent; both
// are safe clone targets.
func destinationPresent(dest string) (bool, error) {
	st, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspecting destination %s: %w", dest, err)
	}
	if !st.IsDir() {
		return true, nil
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return false, fmt.Errorf("reading destination %s: %w", dest, err)
	}
	return len(entries) > 0, nil
}

func (s *Syncer) clone(ctx context.Context, entry manifest.Repository, dest string) workqueue.Outcome {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return failed(fmt.Errorf("creating parent directory: %w", err))
	}

	repo, err := s.client.Clone(ctx, gitclient.CloneSpec{
		URL:      entry.Src,
		Dest:     dest,
		Revision: entry.Revision,
		Shallow:  entry.ShallowClone || s.forceShallow,
	})
	if err != nil {
		return failed(err)
	}

	if entry.CloneSubmodule {
		if err := repo.UpdateSubmodules(ctx); err != nil {
			return failed(err)
		}
	}

	head, err := repo.Head()
	if err != nil {
		return failed(err)
	}
	clog.FromContext(ctx).Infof("Cloned %s at %s", entry.Name(), shortSHA(head))
	return workqueue.Outcome{Status: workqueue.StatusCreated, Detail: shortSHA(head)}
}

func (s *Syncer) update(ctx context.Context, entry manifest.Repository, dest string) workqueue.Outcome {
	log := clog.FromContext(ctx)

	repo, err := s.client.Open(dest)
	if err != nil {
		if errors.Is(err, gitclient.ErrNotARepository) {
			if s.dryRun {
				return skipped("destination exists and is not a git repository")
			}
			return failed(fmt.Errorf("%w: %s contains files but no git repository", ErrDestinationConflict, dest))
		}
		return failed(err)
	}

	head, err := repo.Head()
	if err != nil {
		return failed(err)
	}

	if s.dryRun {
		sha, err := s.client.ResolveRemote(ctx, entry.Src, entry.Revision)
		if err != nil {
			return failed(err)
		}
		if shaMatches(head, sha) {
			return skipped(fmt.Sprintf("up to date at %s", shortSHA(head)))
		}
		log.Infof("Would update %s to %s", dest, shortSHA(sha))
		return skipped(fmt.Sprintf("would update to %s", shortSHA(sha)))
	}

	if clean, err := repo.IsClean(); err == nil && !clean {
		log.Warnf("%s has local modifications that will be overwritten", dest)
	}

	sha, err := s.resolveWithFetch(ctx, repo, entry.Revision)
	if err != nil {
		return failed(err)
	}

	status := workqueue.StatusUpToDate
	if head != sha {
		if err := repo.Checkout(ctx, sha); err != nil {
			return failed(err)
		}
		status = workqueue.StatusUpdated
		log.Infof("Updated %s to %s", dest, shortSHA(sha))
	} else {
		log.Debugf("%s already at %s", dest, shortSHA(sha))
	}

	if entry.CloneSubmodule {
		if err := repo.UpdateSubmodules(ctx); err != nil {
			return failed(err)
		}
	}
	return workqueue.Outcome{Status: status, Detail: shortSHA(sha)}
}

// resolveWithFetch maps revision to a commit SHA, fetching from origin when
// needed. SHA revisions that already resolve locally skip the network.
func (s *Syncer) resolveWithFetch(ctx context.Context, repo *gitclient.Repo, revision string) (string, error) {
	if kind, _ := manifest.ParseRevision(revision); kind == manifest.RevisionSHA {
		sha, err := repo.Resolve(revision)
		if err == nil {
			return sha, nil
		}
		if !errors.Is(err, gitclient.ErrRevisionNotFound) {
			return "", err
		}
	}
	if err := repo.Fetch(ctx, revision); err != nil {
		return "", err
	}
	return repo.Resolve(revision)
}

// shaMatches compares a full local HEAD against a possibly abbreviated SHA.
func shaMatches(head, sha string) bool {
	if len(sha) < len(head) {
		return strings.HasPrefix(head, sha)
	}
	return head == sha
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func failed(err error) workqueue.Outcome {
	return workqueue.Outcome{Status: workqueue.StatusFailed, Err: err}
}

func skipped(detail string) workqueue.Outcome {
	return workqueue.Outcome{Status: workqueue.StatusSkipped, Detail: detail}
}
