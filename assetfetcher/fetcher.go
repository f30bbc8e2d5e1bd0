/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package assetfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/gitfleet/manifest"
	"chainguard.dev/gitfleet/retry"
	"chainguard.dev/gitfleet/workqueue"
)

// ErrAssetNotFound reports a release tag the repository does not have, or an
// asset name the release does not carry.
var ErrAssetNotFound = errors.New("asset not found")

// assetConcurrency bounds parallel downloads within one release. The fleet
// pool already bounds releases against each other.
const assetConcurrency = 4

// Fetcher downloads release assets through the GitHub API.
type Fetcher struct {
	gh             *github.Client
	downloadClient *http.Client
	retryCfg       retry.Config
	dryRun         bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDryRun makes Fetch report what it would download without calling the
// API or touching the filesystem.
func WithDryRun(dryRun bool) Option {
	return func(f *Fetcher) {
		f.dryRun = dryRun
	}
}

// WithRetryConfig overrides the retry policy for API calls and downloads.
func WithRetryConfig(cfg retry.Config) Option {
	return func(f *Fetcher) {
		f.retryCfg = cfg
	}
}

// WithGitHubClient supplies a preconfigured API client, taking precedence
// over the token source given to New.
func WithGitHubClient(client *github.Client) Option {
	return func(f *Fetcher) {
		f.gh = client
	}
}

// WithDownloadClient overrides the HTTP client used to follow asset download
// redirects off the API host.
func WithDownloadClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.downloadClient = client
	}
}

// New builds a Fetcher. ts may be nil for anonymous API access, which is
// enough for public release assets but rate limited aggressively.
func New(ctx context.Context, ts oauth2.TokenSource, opts ...Option) *Fetcher {
	f := &Fetcher{
		downloadClient: http.DefaultClient,
		retryCfg:       retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.gh == nil {
		if ts != nil {
			f.gh = github.NewClient(oauth2.NewClient(ctx, ts))
		} else {
			f.gh = github.NewClient(nil)
		}
	}
	return f
}

// Fetch downloads every asset of one release entry underneath baseDir. The
// assets run concurrently and independently; the outcome counts how many
// were fully processed, and any per-asset errors are joined into Err.
func (f *Fetcher) Fetch(ctx context.Context, rel manifest.Release, baseDir string) workqueue.Outcome {
	log := clog.FromContext(ctx)

	owner, repo, err := rel.OwnerRepo()
	if err != nil {
		return workqueue.Outcome{Status: workqueue.StatusFailed, Err: err}
	}

	if f.dryRun {
		log.Infof("Would fetch release %s of %s/%s", rel.Tag, owner, repo)
		for _, asset := range rel.Assets {
			log.Infof("Would download %s to %s", asset.Name, asset.DestPath(baseDir))
		}
		return workqueue.Outcome{
			Status: workqueue.StatusSkipped,
			Detail: fmt.Sprintf("would download %d asset(s) at %s", len(rel.Assets), rel.Tag),
		}
	}

	release, err := retry.Do(ctx, f.retryCfg, "release lookup", isTransient, func() (*github.RepositoryRelease, error) {
		release, resp, err := f.gh.Repositories.GetReleaseByTag(ctx, owner, repo, rel.Tag)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s/%s has no release tagged %s", ErrAssetNotFound, owner, repo, rel.Tag)
			}
			return nil, err
		}
		return release, nil
	})
	if err != nil {
		return workqueue.Outcome{
			Status: workqueue.StatusFailed,
			Err:    fmt.Errorf("fetching release %s@%s: %w", rel.Name(), rel.Tag, err),
		}
	}

	var (
		mu        sync.Mutex
		errs      []error
		processed int
	)
	// A plain errgroup: one asset failing must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(assetConcurrency)
	for _, asset := range rel.Assets {
		g.Go(func() error {
			if err := f.fetchAsset(ctx, release, owner, repo, asset, baseDir); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("asset %s: %w", asset.Name, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			processed++
			mu.Unlock()
			return nil
		})
	}
	// Failures are collected above; the group only synchronizes.
	_ = g.Wait()

	log.Infof("Processed %d/%d assets for %s", processed, len(rel.Assets), rel.Name())
	detail := fmt.Sprintf("processed %d/%d assets", processed, len(rel.Assets))
	if len(errs) > 0 {
		return workqueue.Outcome{Status: workqueue.StatusFailed, Detail: detail, Err: errors.Join(errs...)}
	}
	return workqueue.Outcome{Status: workqueue.StatusCreated, Detail: detail}
}

// fetchAsset downloads one asset into its destination directory and extracts
// it when the manifest asks for that.
func (f *Fetcher) fetchAsset(ctx context.Context, release *github.RepositoryRelease, owner, repo string, asset manifest.Asset, baseDir string) error {
	log := clog.FromContext(ctx)

	var match *github.ReleaseAsset
	for _, ra := range release.Assets {
		if ra.GetName() == asset.Name {
			match = ra
			break
		}
	}
	if match == nil {
		return fmt.Errorf("%w: release %s has no asset named %q", ErrAssetNotFound, release.GetTagName(), asset.Name)
	}

	destDir := asset.DestPath(baseDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	archivePath := filepath.Join(destDir, asset.Name)
	log.Infof("Downloading %s to %s", asset.Name, destDir)
	if _, err := retry.Do(ctx, f.retryCfg, "asset download", isTransient, func() (struct{}, error) {
		return struct{}{}, f.downloadAsset(ctx, owner, repo, match.GetID(), archivePath)
	}); err != nil {
		return err
	}

	if !asset.ShouldExtract() {
		return nil
	}
	return extract(ctx, archivePath, destDir)
}

// downloadAsset streams one asset to dest, staging through a temp file in
// the same directory so the rename is atomic.
func (f *Fetcher) downloadAsset(ctx context.Context, owner, repo string, id int64, dest string) error {
	rc, _, err := f.gh.Repositories.DownloadReleaseAsset(ctx, owner, repo, id, f.downloadClient)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: asset id %d", ErrAssetNotFound, id)
		}
		return fmt.Errorf("requesting asset: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".partial-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return fmt.Errorf("writing asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	// CreateTemp opens 0600; published assets should be world readable.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting asset mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("publishing asset: %w", err)
	}
	return nil
}

// isTransient reports whether a GitHub API or download error is worth
// retrying. Missing releases and assets, auth failures, and context
// cancellation are permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrAssetNotFound):
		return false
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		if ghErr.Response == nil {
			return false
		}
		code := ghErr.Response.StatusCode
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"connection reset",
		"connection refused",
		"timeout",
		"timed out",
		"unexpected eof",
		"tls handshake",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
