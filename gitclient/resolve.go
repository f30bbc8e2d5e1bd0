/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitclient

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"chainguard.dev/gitfleet/manifest"
	"chainguard.dev/gitfleet/retry"
)

// ResolveRemote maps revision to a commit SHA by asking the remote for its
// advertised refs, without cloning anything. SHA revisions come back
// unchanged. Annotated tags resolve to the commit they point at when the
// server advertises peeled refs, as GitHub does.
func (c *Client) ResolveRemote(ctx context.Context, url, revision string) (string, error) {
	kind, target := manifest.ParseRevision(revision)
	if kind == manifest.RevisionSHA {
		return revision, nil
	}

	auth, err := c.auth()
	if err != nil {
		return "", err
	}

	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	refs, err := retry.Do(ctx, c.retryCfg, "ls-remote", IsTransient, func() ([]*plumbing.Reference, error) {
		return remote.ListContext(ctx, &git.ListOptions{
			Auth:          auth,
			PeelingOption: git.AppendPeeled,
		})
	})
	if err != nil {
		return "", tagRemoteUnreachable(fmt.Errorf("listing refs of %s: %w", url, err))
	}

	var name plumbing.ReferenceName
	switch kind {
	case manifest.RevisionTag:
		name = plumbing.NewTagReferenceName(target)
	default:
		name = plumbing.NewBranchReferenceName(target)
	}

	byName := make(map[string]plumbing.Hash, len(refs))
	for _, ref := range refs {
		byName[ref.Name().String()] = ref.Hash()
	}
	// An annotated tag advertises a peeled companion entry naming the
	// commit; prefer it over the tag object itself.
	if hash, ok := byName[name.String()+"^{}"]; ok {
		return hash.String(), nil
	}
	if hash, ok := byName[name.String()]; ok {
		return hash.String(), nil
	}
	return "", fmt.Errorf("%w: %s does not advertise %s", ErrRevisionNotFound, url, name)
}
