/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "wrapped context canceled", err: fmt.Errorf("cloning: %w", context.Canceled), want: false},
		{name: "revision not found", err: fmt.Errorf("%w: refs/heads/x", ErrRevisionNotFound), want: false},
		{name: "reference not found", err: plumbing.ErrReferenceNotFound, want: false},
		{name: "authentication required", err: transport.ErrAuthenticationRequired, want: false},
		{name: "repository not found", err: transport.ErrRepositoryNotFound, want: false},
		{name: "connection reset syscall", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "connection refused message", err: errors.New("dial tcp 140.82.112.3:443: connect: connection refused"), want: true},
		{name: "server 503", err: errors.New("unexpected status code: 503"), want: true},
		{name: "unexpected eof", err: errors.New("unexpected EOF"), want: true},
		{name: "rate limited", err: errors.New("403 API rate limit exceeded"), want: true},
		{name: "plain failure", err: errors.New("exit status 128"), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %t, wanted %t", tc.err, got, tc.want)
			}
		})
	}
}

func TestAsRevisionNotFound(t *testing.T) {
	err := asRevisionNotFound(fmt.Errorf("resolving: %w", plumbing.ErrReferenceNotFound), "refs/heads/main")
	if !errors.Is(err, ErrRevisionNotFound) {
		t.Errorf("error = %v, wanted ErrRevisionNotFound", err)
	}
	if !strings.Contains(err.Error(), "refs/heads/main") {
		t.Errorf("error %q does not name the revision", err)
	}

	err = asRevisionNotFound(errors.New(`couldn't find remote ref "refs/heads/gone"`), "refs/heads/gone")
	if !errors.Is(err, ErrRevisionNotFound) {
		t.Errorf("error = %v, wanted ErrRevisionNotFound", err)
	}

	// Unrelated errors pass through untouched.
	if got := asRevisionNotFound(io.EOF, "refs/heads/main"); got != io.EOF {
		t.Errorf("error = %v, wanted io.EOF unchanged", got)
	}
	if got := asRevisionNotFound(nil, "refs/heads/main"); got != nil {
		t.Errorf("error = %v, wanted nil", got)
	}
}

func TestTagRemoteUnreachable(t *testing.T) {
	transient := errors.New("dial tcp: connection refused")
	err := tagRemoteUnreachable(transient)
	if !errors.Is(err, ErrRemoteUnreachable) {
		t.Errorf("error = %v, wanted ErrRemoteUnreachable", err)
	}

	permanent := fmt.Errorf("%w: refs/tags/v1", ErrRevisionNotFound)
	if got := tagRemoteUnreachable(permanent); errors.Is(got, ErrRemoteUnreachable) {
		t.Errorf("permanent error %v was tagged unreachable", got)
	}
	if got := tagRemoteUnreachable(nil); got != nil {
		t.Errorf("error = %v, wanted nil", got)
	}
}
