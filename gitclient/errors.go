/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

var (
	// ErrRevisionNotFound reports a revision, branch, or tag the repository
	// or its remote does not have.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrRemoteUnreachable reports a remote operation that kept failing
	// with transient errors after its retry budget was spent.
	ErrRemoteUnreachable = errors.New("remote unreachable")

	// ErrNotARepository reports a path that exists but holds no git
	// repository.
	ErrNotARepository = errors.New("not a git repository")
)

// IsTransient reports whether err looks like a temporary network or server
// condition worth retrying. Missing refs, auth failures, and context
// cancellation are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrRevisionNotFound),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound):
		return false
	}

	var noMatch git.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		return false
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
		"temporarily unavailable",
		"temporary failure",
		"unexpected eof",
		"tls handshake",
		"rate limit",
		"502", "503", "504",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// asRevisionNotFound maps go-git's flavors of "no such ref" onto
// ErrRevisionNotFound; other errors pass through untouched.
func asRevisionNotFound(err error, revision string) error {
	if err == nil {
		return nil
	}
	var noMatch git.NoMatchingRefSpecError
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound),
		errors.As(err, &noMatch),
		strings.Contains(err.Error(), "couldn't find remote ref"),
		strings.Contains(err.Error(), "reference not found"):
		return fmt.Errorf("%w: %s: %v", ErrRevisionNotFound, revision, err)
	}
	return err
}

// tagRemoteUnreachable tags err with ErrRemoteUnreachable when it is a
// transient class failure that survived retries.
func tagRemoteUnreachable(err error) error {
	if err == nil || !IsTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRemoteUnreachable, err)
}
