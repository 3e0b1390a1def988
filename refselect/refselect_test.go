package refselect

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

func newTestRepo(t *testing.T) *git.Repository {
	t.Helper()

	fs := memfs.New()
	r, err := git.Init(memory.NewStorage(), fs)
	if err != nil {
		t.Fatalf("unable to init repo: %v", err)
	}

	wt, err := r.Worktree()
	if err != nil {
		t.Fatalf("unable to get worktree: %v", err)
	}

	f, err := fs.Create("README.adoc")
	if err != nil {
		t.Fatalf("unable to create file: %v", err)
	}
	_, _ = f.Write([]byte("= test\n"))
	_ = f.Close()

	if _, err := wt.Add("README.adoc"); err != nil {
		t.Fatalf("unable to stage file: %v", err)
	}

	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("unable to commit: %v", err)
	}

	head, err := r.Head()
	if err != nil {
		t.Fatalf("unable to read HEAD: %v", err)
	}

	// rename the default branch to "main"
	if err := r.Storer.SetReference(plumbing.NewHashReference("refs/heads/main", head.Hash())); err != nil {
		t.Fatalf("unable to create main: %v", err)
	}
	if err := r.Storer.RemoveReference(head.Name()); err != nil && head.Name() != "refs/heads/main" {
		t.Fatalf("unable to remove default ref: %v", err)
	}
	if err := r.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, "refs/heads/main")); err != nil {
		t.Fatalf("unable to point HEAD at main: %v", err)
	}

	for _, name := range []string{"refs/heads/feature/x", "refs/tags/v1.0.0"} {
		if err := r.Storer.SetReference(plumbing.NewHashReference(plumbing.ReferenceName(name), head.Hash())); err != nil {
			t.Fatalf("unable to create %s: %v", name, err)
		}
	}

	return r
}

func TestSelectAllBranchesAndTags(t *testing.T) {
	r := newTestRepo(t)

	refs, err := Select(nil, r, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var branches, tags int
	for _, ref := range refs {
		switch ref.Type {
		case TypeBranch:
			branches++
		case TypeTag:
			tags++
		}
	}
	if branches != 2 {
		t.Errorf("expected 2 branches, got %d", branches)
	}
	if tags != 1 {
		t.Errorf("expected 1 tag, got %d", tags)
	}
}

func TestSelectBranchPatternFilter(t *testing.T) {
	r := newTestRepo(t)

	refs, err := Select(nil, r, Options{BranchPatterns: []string{"feature/*"}, TagPatterns: []string{"!*"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 || refs[0].Shortname != "feature/x" {
		t.Fatalf("expected only feature/x selected, got %v", refs)
	}
}

func TestSelectHeadTokenExpandsToCurrentBranch(t *testing.T) {
	r := newTestRepo(t)

	refs, err := Select(nil, r, Options{BranchPatterns: []string{"HEAD"}, TagPatterns: []string{"!*"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 || refs[0].Shortname != "main" {
		t.Fatalf("expected HEAD to expand to main, got %v", refs)
	}
}

func TestSelectNoMatchesReturnsEmptyNotError(t *testing.T) {
	r := newTestRepo(t)

	refs, err := Select(nil, r, Options{BranchPatterns: []string{"does-not-exist"}, TagPatterns: []string{"!*"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs selected, got %v", refs)
	}
}

func TestSelectDedupesByTypeAndFullname(t *testing.T) {
	r := newTestRepo(t)

	refs, err := Select(nil, r, Options{BranchPatterns: []string{"main", "ma*"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count := 0
	for _, ref := range refs {
		if ref.Shortname == "main" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected main to be deduplicated, got %d copies", count)
	}
}
