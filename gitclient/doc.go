/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitclient wraps go-git behind the small set of operations fleet
// synchronization needs: clone a repository at a manifest revision, fetch
// and resolve revisions in an existing working tree, force-checkout a
// commit, update submodules, and resolve a revision against a remote
// without a local clone (the ls-remote equivalent used for anchoring).
//
// Remote operations retry transient failures with exponential backoff and
// surface ErrRemoteUnreachable once the budget is spent; a revision or ref
// the remote does not know unwraps to ErrRevisionNotFound and is never
// retried. Authentication is optional: with a token source configured,
// HTTPS remotes authenticate the way GitHub expects token auth over basic
// credentials.
package gitclient
