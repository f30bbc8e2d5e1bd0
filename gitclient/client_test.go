/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitclient

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/oauth2"

	"chainguard.dev/gitfleet/retry"
)

// testRepo is a local origin that tests clone from and resolve against.
type testRepo struct {
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func initTestRepo(t *testing.T) (*testRepo, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	tr := &testRepo{dir: dir, repo: repo, wt: wt}
	head := tr.commitFile(t, "README.md", "# origin\n", "initial")

	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("master"))); err != nil {
		t.Fatalf("SetReference: %v", err)
	}

	return tr, head
}

func (tr *testRepo) commitFile(t *testing.T, name, content, message string) string {
	t.Helper()

	if err := os.WriteFile(filepath.Join(tr.dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := tr.wt.Add(name); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hash, err := tr.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

func (tr *testRepo) tag(t *testing.T, name, sha string, annotated bool) {
	t.Helper()

	var opts *git.CreateTagOptions
	if annotated {
		opts = &git.CreateTagOptions{
			Tagger: &object.Signature{
				Name:  "Test",
				Email: "test@example.com",
				When:  time.Now(),
			},
			Message: name,
		}
	}
	if _, err := tr.repo.CreateTag(name, plumbing.NewHash(sha), opts); err != nil {
		t.Fatalf("CreateTag %s: %v", name, err)
	}
}

// failFast disables backoff so error-path tests return immediately.
func failFast() Option {
	return WithRetryConfig(retry.Config{MaxRetries: 0})
}

type staticTokenSource string

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: string(s)}, nil
}

var _ oauth2.TokenSource = staticTokenSource("")

func TestCloneBranch(t *testing.T) {
	ctx := context.Background()
	origin, head := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	repo, err := New().Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/heads/master"})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	got, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if got != head {
		t.Errorf("Head() = %s, wanted %s", got, head)
	}
	if _, err := os.Stat(filepath.Join(dest, "README.md")); err != nil {
		t.Errorf("expected checked-out file: %v", err)
	}
	if repo.Path() != dest {
		t.Errorf("Path() = %s, wanted %s", repo.Path(), dest)
	}
}

func TestCloneLightweightTag(t *testing.T) {
	ctx := context.Background()
	origin, first := initTestRepo(t)
	origin.tag(t, "v1", first, false)
	origin.commitFile(t, "second.txt", "second\n", "second")

	dest := filepath.Join(t.TempDir(), "dest")
	repo, err := New().Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/tags/v1"})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	got, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if got != first {
		t.Errorf("Head() = %s, wanted tagged commit %s", got, first)
	}
}

func TestCloneSHA(t *testing.T) {
	ctx := context.Background()
	origin, first := initTestRepo(t)
	head := origin.commitFile(t, "second.txt", "second\n", "second")
	if head == first {
		t.Fatalf("fixture produced identical commits")
	}

	dest := filepath.Join(t.TempDir(), "dest")
	repo, err := New().Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: first})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	got, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if got != first {
		t.Errorf("Head() = %s, wanted %s", got, first)
	}
}

func TestCloneMissingRevision(t *testing.T) {
	ctx := context.Background()
	origin, _ := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	_, err := New(failFast()).Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/heads/missing"})
	if !errors.Is(err, ErrRevisionNotFound) {
		t.Fatalf("Clone error = %v, wanted ErrRevisionNotFound", err)
	}

	// A failed clone must not leave a partial destination behind.
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("expected destination to be removed, stat err = %v", err)
	}
}

func TestCloneWithTokenSource(t *testing.T) {
	ctx := context.Background()
	origin, head := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	repo, err := New(WithTokenSource(staticTokenSource("token"))).Clone(ctx, CloneSpec{
		URL:      origin.dir,
		Dest:     dest,
		Revision: "refs/heads/master",
	})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	got, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if got != head {
		t.Errorf("Head() = %s, wanted %s", got, head)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	origin, _ := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	client := New()
	if _, err := client.Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/heads/master"}); err != nil {
		t.Fatalf("Clone: %v", err)
	}

	if _, err := client.Open(dest); err != nil {
		t.Errorf("Open: %v", err)
	}
}

func TestOpenNotARepository(t *testing.T) {
	client := New()
	_, err := client.Open(t.TempDir())
	if !errors.Is(err, ErrNotARepository) {
		t.Fatalf("Open error = %v, wanted ErrNotARepository", err)
	}
}

func TestFetchResolveCheckoutBranch(t *testing.T) {
	ctx := context.Background()
	origin, head := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	client := New()
	repo, err := client.Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/heads/master"})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	// The origin moves ahead; the clone catches up.
	next := origin.commitFile(t, "next.txt", "next\n", "advance master")

	if err := repo.Fetch(ctx, "refs/heads/master"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	sha, err := repo.Resolve("refs/heads/master")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sha != next {
		t.Fatalf("Resolve() = %s, wanted %s", sha, next)
	}
	if err := repo.Checkout(ctx, sha); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	got, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if got == head {
		t.Errorf("Head() still at %s after checkout", head)
	}
	if got != next {
		t.Errorf("Head() = %s, wanted %s", got, next)
	}
	if _, err := os.Stat(filepath.Join(dest, "next.txt")); err != nil {
		t.Errorf("expected fetched file after checkout: %v", err)
	}
}

func TestFetchTagCreatedAfterClone(t *testing.T) {
	ctx := context.Background()
	origin, head := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	repo, err := New().Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/heads/master"})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	origin.tag(t, "v1", head, false)

	if err := repo.Fetch(ctx, "refs/tags/v1"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	sha, err := repo.Resolve("refs/tags/v1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sha != head {
		t.Errorf("Resolve() = %s, wanted %s", sha, head)
	}
}

func TestResolveAnnotatedTagPeelsToCommit(t *testing.T) {
	origin, head := initTestRepo(t)
	origin.tag(t, "v2", head, true)

	repo, err := New().Open(origin.dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	sha, err := repo.Resolve("refs/tags/v2")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sha != head {
		t.Errorf("Resolve() = %s, wanted peeled commit %s", sha, head)
	}
}

func TestResolveShortSHA(t *testing.T) {
	origin, head := initTestRepo(t)

	repo, err := New().Open(origin.dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	sha, err := repo.Resolve(head[:8])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sha != head {
		t.Errorf("Resolve() = %s, wanted %s", sha, head)
	}
}

func TestResolveMissingRevision(t *testing.T) {
	origin, _ := initTestRepo(t)

	repo, err := New().Open(origin.dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, revision := range []string{
		"refs/heads/ghost",
		"refs/tags/ghost",
		"0123456789abcdef0123456789abcdef01234567",
	} {
		if _, err := repo.Resolve(revision); !errors.Is(err, ErrRevisionNotFound) {
			t.Errorf("Resolve(%s) error = %v, wanted ErrRevisionNotFound", revision, err)
		}
	}
}

func TestIsCleanAndForceCheckout(t *testing.T) {
	ctx := context.Background()
	origin, head := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	repo, err := New().Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/heads/master"})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	clean, err := repo.IsClean()
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Fatalf("fresh clone reported dirty")
	}

	if err := os.WriteFile(filepath.Join(dest, "README.md"), []byte("local edit\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	clean, err = repo.IsClean()
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if clean {
		t.Fatalf("modified clone reported clean")
	}

	if err := repo.Checkout(ctx, head); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dest, "README.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "# origin\n" {
		t.Errorf("force checkout kept local edit: %q", content)
	}
}

func TestUpdateSubmodulesWithoutSubmodules(t *testing.T) {
	ctx := context.Background()
	origin, _ := initTestRepo(t)

	dest := filepath.Join(t.TempDir(), "dest")
	repo, err := New().Clone(ctx, CloneSpec{URL: origin.dir, Dest: dest, Revision: "refs/heads/master"})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if err := repo.UpdateSubmodules(ctx); err != nil {
		t.Errorf("UpdateSubmodules: %v", err)
	}
}
