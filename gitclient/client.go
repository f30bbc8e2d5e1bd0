/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitclient

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"

	"chainguard.dev/gitfleet/manifest"
	"chainguard.dev/gitfleet/retry"
)

// Client performs Git operations for fleet synchronization. The zero-value
// configuration works anonymously against public remotes; a token source
// adds HTTPS authentication.
type Client struct {
	tokenSource oauth2.TokenSource
	retryCfg    retry.Config
}

// Option configures the Client.
type Option func(*Client)

// WithTokenSource installs the OAuth2 token source used to authenticate
// HTTPS remotes.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// WithRetryConfig overrides the retry budget applied to remote operations.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) {
		c.retryCfg = cfg
	}
}

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		retryCfg: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) auth() (*githttp.BasicAuth, error) {
	if c.tokenSource == nil {
		return nil, nil
	}
	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

// Repo is an open handle on a local working tree managed by the fleet.
type Repo struct {
	client *Client
	repo   *git.Repository
	path   string
}

// Open returns a handle on the repository at path. A path without a
// repository unwraps to ErrNotARepository.
func (c *Client) Open(path string) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return nil, fmt.Errorf("opening repo at %s: %w", path, err)
	}
	return &Repo{client: c, repo: repo, path: path}, nil
}

// CloneSpec describes one clone: where from, where to, and which revision
// to end up on.
type CloneSpec struct {
	URL      string
	Dest     string
	Revision string
	// Shallow requests a depth-1 clone. It applies to branch and tag
	// revisions only; an arbitrary SHA cannot be fetched shallowly, so SHA
	// clones are always full.
	Shallow bool
}

// Clone materializes spec.Dest as a working tree checked out at
// spec.Revision. Branch and tag revisions clone single-branch (depth 1 when
// shallow); SHA revisions clone the default branch and then check out the
// commit. A failed clone removes the destination it created.
func (c *Client) Clone(ctx context.Context, spec CloneSpec) (*Repo, error) {
	kind, target := manifest.ParseRevision(spec.Revision)

	auth, err := c.auth()
	if err != nil {
		return nil, err
	}

	opts := &git.CloneOptions{URL: spec.URL, Auth: auth}
	switch kind {
	case manifest.RevisionBranch:
		opts.ReferenceName = plumbing.NewBranchReferenceName(target)
		opts.SingleBranch = true
	case manifest.RevisionTag:
		opts.ReferenceName = plumbing.NewTagReferenceName(target)
		opts.SingleBranch = true
	}
	if spec.Shallow && kind != manifest.RevisionSHA {
		opts.Depth = 1
	}

	st, statErr := os.Stat(spec.Dest)
	preexisted := statErr == nil && st.IsDir()

	clog.FromContext(ctx).Infof("Cloning %s (revision %s) into %s", spec.URL, spec.Revision, spec.Dest)

	repo, err := retry.Do(ctx, c.retryCfg, "clone", IsTransient, func() (*git.Repository, error) {
		repo, err := git.PlainCloneContext(ctx, spec.Dest, false, opts)
		if err != nil {
			if !preexisted {
				os.RemoveAll(spec.Dest)
			}
			return nil, err
		}
		return repo, nil
	})
	if err != nil {
		return nil, tagRemoteUnreachable(asRevisionNotFound(fmt.Errorf("cloning %s: %w", spec.URL, err), spec.Revision))
	}

	r := &Repo{client: c, repo: repo, path: spec.Dest}
	if kind == manifest.RevisionSHA {
		sha, err := r.Resolve(spec.Revision)
		if err == nil {
			err = r.Checkout(ctx, sha)
		}
		if err != nil {
			if !preexisted {
				os.RemoveAll(spec.Dest)
			}
			return nil, err
		}
	}
	return r, nil
}

// Path returns the working tree location.
func (r *Repo) Path() string {
	return r.path
}

// Head returns the SHA of the currently checked-out commit.
func (r *Repo) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// IsClean reports whether the working tree has no local modifications.
func (r *Repo) IsClean() (bool, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("getting worktree status: %w", err)
	}
	return status.IsClean(), nil
}

// Fetch updates the repository's view of origin for the given revision:
// branch revisions fetch into the remote-tracking ref, tag revisions
// force-update the tag, and SHA revisions fetch all heads and tags so the
// commit becomes resolvable.
func (r *Repo) Fetch(ctx context.Context, revision string) error {
	kind, target := manifest.ParseRevision(revision)

	auth, err := r.client.auth()
	if err != nil {
		return err
	}

	opts := &git.FetchOptions{RemoteName: "origin", Auth: auth}
	switch kind {
	case manifest.RevisionBranch:
		opts.RefSpecs = []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", target, target))}
	case manifest.RevisionTag:
		opts.RefSpecs = []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+refs/tags/%s:refs/tags/%s", target, target))}
	default:
		opts.RefSpecs = []gitconfig.RefSpec{"+refs/heads/*:refs/remotes/origin/*"}
		opts.Tags = git.AllTags
	}

	clog.FromContext(ctx).Debugf("Fetching %s in %s", revision, r.path)
	_, err = retry.Do(ctx, r.client.retryCfg, "fetch", IsTransient, func() (struct{}, error) {
		if err := r.repo.FetchContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return tagRemoteUnreachable(asRevisionNotFound(fmt.Errorf("fetching %s: %w", revision, err), revision))
	}
	return nil
}

// Resolve maps revision to a commit SHA using local state only: branch
// revisions read the origin remote-tracking ref, tag revisions peel the tag,
// and SHA revisions accept any unique prefix of a known commit.
func (r *Repo) Resolve(revision string) (string, error) {
	kind, target := manifest.ParseRevision(revision)

	var hash plumbing.Hash
	switch kind {
	case manifest.RevisionBranch:
		ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName("origin", target), true)
		if err != nil {
			return "", asRevisionNotFound(fmt.Errorf("resolving branch %s: %w", target, err), revision)
		}
		hash = ref.Hash()
	case manifest.RevisionTag:
		ref, err := r.repo.Reference(plumbing.NewTagReferenceName(target), true)
		if err != nil {
			return "", asRevisionNotFound(fmt.Errorf("resolving tag %s: %w", target, err), revision)
		}
		hash = ref.Hash()
	default:
		h, err := r.repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return "", asRevisionNotFound(fmt.Errorf("resolving %s: %w", revision, err), revision)
		}
		hash = *h
	}

	commit, err := r.peelToCommit(hash)
	if err != nil {
		return "", err
	}
	return commit.String(), nil
}

// peelToCommit follows an annotated tag object to the commit it points at;
// hashes that already name commits pass through.
func (r *Repo) peelToCommit(hash plumbing.Hash) (plumbing.Hash, error) {
	tag, err := r.repo.TagObject(hash)
	if err != nil {
		return hash, nil
	}
	commit, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("peeling tag %s: %w", hash, err)
	}
	return commit.Hash, nil
}

// Checkout force-checks-out the given commit, discarding local
// modifications to tracked files.
func (r *Repo) Checkout(ctx context.Context, sha string) error {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	clog.FromContext(ctx).Debugf("Checking out %s in %s", sha, r.path)
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(sha), Force: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", sha, err)
	}
	return nil
}

// UpdateSubmodules initializes and recursively updates every submodule
// recorded at the checked-out commit. Repositories without submodules are a
// no-op.
func (r *Repo) UpdateSubmodules(ctx context.Context) error {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	submodules, err := worktree.Submodules()
	if err != nil {
		return fmt.Errorf("listing submodules: %w", err)
	}
	if len(submodules) == 0 {
		return nil
	}

	auth, err := r.client.auth()
	if err != nil {
		return err
	}

	clog.FromContext(ctx).Infof("Updating %d submodule(s) in %s", len(submodules), r.path)
	_, err = retry.Do(ctx, r.client.retryCfg, "submodule update", IsTransient, func() (struct{}, error) {
		return struct{}{}, submodules.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
			Auth:              auth,
		})
	})
	if err != nil {
		return tagRemoteUnreachable(fmt.Errorf("updating submodules: %w", err))
	}
	return nil
}
