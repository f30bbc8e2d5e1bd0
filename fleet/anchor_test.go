/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package fleet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chainguard.dev/gitfleet/gitclient"
	"chainguard.dev/gitfleet/manifest"
)

// decodeManifest reads an anchored file back without schema validation, so
// fixtures may use local paths as src.
func decodeManifest(t *testing.T, path string) *manifest.Manifest {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	m, err := manifest.CodecFor(path).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

func TestAnchorRewritesBranchAndTagRevisions(t *testing.T) {
	ctx := context.Background()
	origin, first := newOrigin(t)
	origin.tag(t, "v1", first)
	second := origin.commit(t, "next.txt", "more\n", "second")

	m := &manifest.Manifest{
		SchemaVersion: "v1",
		Repositories: []manifest.Repository{
			{Src: origin.dir, Dest: "ext/branch", Revision: "refs/heads/master", ShallowClone: true},
			{Src: origin.dir, Dest: "ext/tag", Revision: "refs/tags/v1"},
		},
		Releases: []manifest.Release{{
			URL: "https://github.com/octo/tool", Tag: "v1",
			Assets: []manifest.Asset{{Name: "data.txt", Dest: "out"}},
		}},
	}

	target := filepath.Join(t.TempDir(), "gitfleet.yaml")
	o := New(failFast(), noopFetcher(t), Options{})
	if err := o.Anchor(ctx, m, "unused-source-path", target); err != nil {
		t.Fatalf("Anchor() = %v", err)
	}

	anchored := decodeManifest(t, target)
	if got := anchored.Repositories[0].Revision; got != second {
		t.Errorf("branch revision = %s, wanted %s", got, second)
	}
	if got := anchored.Repositories[1].Revision; got != first {
		t.Errorf("tag revision = %s, wanted %s", got, first)
	}
	if !anchored.Repositories[0].ShallowClone {
		t.Error("anchoring dropped shallow-clone")
	}
	if diff := cmp.Diff(m.Releases, anchored.Releases); diff != "" {
		t.Errorf("releases changed by anchoring (-want +got):\n%s", diff)
	}
	// The input manifest is not mutated.
	if got := m.Repositories[0].Revision; got != "refs/heads/master" {
		t.Errorf("input manifest revision = %s, wanted refs/heads/master", got)
	}
}

func TestAnchorOverwritesSourceWhenTargetEmpty(t *testing.T) {
	ctx := context.Background()
	origin, head := newOrigin(t)

	source := filepath.Join(t.TempDir(), "gitfleet.yaml")
	m := &manifest.Manifest{
		SchemaVersion: "v1",
		Repositories:  []manifest.Repository{entryFor(origin, "ext/a", "refs/heads/master")},
	}

	o := New(failFast(), noopFetcher(t), Options{})
	if err := o.Anchor(ctx, m, source, ""); err != nil {
		t.Fatalf("Anchor() = %v", err)
	}

	anchored := decodeManifest(t, source)
	if got := anchored.Repositories[0].Revision; got != head {
		t.Errorf("revision = %s, wanted %s", got, head)
	}
}

func TestAnchorLeavesSHARevisionAlone(t *testing.T) {
	ctx := context.Background()
	sha := strings.Repeat("a", 40)

	m := &manifest.Manifest{
		SchemaVersion: "v1",
		Repositories: []manifest.Repository{
			{Src: "/no/such/remote", Dest: "ext/a", Revision: sha},
		},
	}

	target := filepath.Join(t.TempDir(), "gitfleet.yaml")
	o := New(failFast(), noopFetcher(t), Options{})
	if err := o.Anchor(ctx, m, "", target); err != nil {
		t.Fatalf("Anchor() = %v", err)
	}
	if got := decodeManifest(t, target).Repositories[0].Revision; got != sha {
		t.Errorf("revision = %s, wanted %s", got, sha)
	}
}

func TestAnchorMissingRevisionFails(t *testing.T) {
	ctx := context.Background()
	origin, _ := newOrigin(t)

	m := &manifest.Manifest{
		SchemaVersion: "v1",
		Repositories:  []manifest.Repository{entryFor(origin, "ext/a", "refs/heads/ghost")},
	}

	target := filepath.Join(t.TempDir(), "gitfleet.yaml")
	o := New(failFast(), noopFetcher(t), Options{})
	err := o.Anchor(ctx, m, "", target)
	if !errors.Is(err, gitclient.ErrRevisionNotFound) {
		t.Fatalf("Anchor() = %v, wanted ErrRevisionNotFound", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("failed anchor still wrote the target file")
	}
}

func TestAnchorDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	origin, _ := newOrigin(t)

	m := &manifest.Manifest{
		SchemaVersion: "v1",
		Repositories:  []manifest.Repository{entryFor(origin, "ext/a", "refs/heads/master")},
	}

	target := filepath.Join(t.TempDir(), "gitfleet.yaml")
	o := New(failFast(), noopFetcher(t), Options{DryRun: true})
	if err := o.Anchor(ctx, m, "", target); err != nil {
		t.Fatalf("Anchor() = %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("dry-run anchor wrote the target file")
	}
}
