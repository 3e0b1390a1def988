package refselect

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorktreeEntry(t *testing.T, gitDir, name, headContents, gitdirContents string) {
	t.Helper()
	dir := filepath.Join(gitDir, "worktrees", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("unable to create worktree entry dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "HEAD"), []byte(headContents), 0o644); err != nil {
		t.Fatalf("unable to write HEAD: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "gitdir"), []byte(gitdirContents), 0o644); err != nil {
		t.Fatalf("unable to write gitdir: %v", err)
	}
}

func TestListLinkedWorktreesAttachedBranch(t *testing.T) {
	gitDir := t.TempDir()
	writeWorktreeEntry(t, gitDir, "feature", "ref: refs/heads/feature/x\n", "/repos/checkouts/feature/.git\n")

	wts, err := ListLinkedWorktrees(gitDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wts) != 1 {
		t.Fatalf("expected 1 worktree, got %d", len(wts))
	}
	wt := wts[0]
	if wt.Detached {
		t.Errorf("expected attached worktree")
	}
	if wt.Branch != "feature/x" {
		t.Errorf("got branch %q", wt.Branch)
	}
	if wt.Path != "/repos/checkouts/feature" {
		t.Errorf("got path %q", wt.Path)
	}
}

func TestListLinkedWorktreesDetached(t *testing.T) {
	gitDir := t.TempDir()
	writeWorktreeEntry(t, gitDir, "detached", "abc123\n", "/repos/checkouts/detached/.git\n")

	wts, err := ListLinkedWorktrees(gitDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wts) != 1 || !wts[0].Detached || wts[0].Head != "abc123" {
		t.Fatalf("unexpected detached worktree: %+v", wts)
	}
}

func TestListLinkedWorktreesNoDir(t *testing.T) {
	wts, err := ListLinkedWorktrees(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wts != nil {
		t.Fatalf("expected nil, got %v", wts)
	}
}

func TestFilterWorktreesFalseOrNil(t *testing.T) {
	all := []LinkedWorktree{{Name: "a"}}
	out, err := FilterWorktrees(all, false)
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil; got %v, %v", out, err)
	}
	out, err = FilterWorktrees(all, nil)
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil; got %v, %v", out, err)
	}
}

func TestFilterWorktreesTrueOrStar(t *testing.T) {
	all := []LinkedWorktree{{Name: "a"}, {Name: "b"}}
	out, err := FilterWorktrees(all, true)
	if err != nil || len(out) != 2 {
		t.Fatalf("expected all worktrees, got %v, %v", out, err)
	}
	out, err = FilterWorktrees(all, "*")
	if err != nil || len(out) != 2 {
		t.Fatalf("expected all worktrees, got %v, %v", out, err)
	}
}

func TestFilterWorktreesPatternList(t *testing.T) {
	all := []LinkedWorktree{{Name: "release-1.0"}, {Name: "scratch"}}
	out, err := FilterWorktrees(all, []string{"release-*"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Name != "release-1.0" {
		t.Fatalf("unexpected filter result: %v", out)
	}
}

func TestAssociateWorktreesAttachesPathToMatchingBranch(t *testing.T) {
	refs := []Ref{
		{Type: TypeBranch, Shortname: "main"},
		{Type: TypeBranch, Shortname: "feature/x"},
		{Type: TypeTag, Shortname: "v1.0.0"},
	}
	worktrees := []LinkedWorktree{
		{Name: "feature", Branch: "feature/x", Path: "/checkouts/feature"},
	}

	out := AssociateWorktrees(refs, worktrees)
	for _, ref := range out {
		if ref.Shortname == "feature/x" && ref.WorktreePath != "/checkouts/feature" {
			t.Errorf("expected worktree path attached to feature/x, got %q", ref.WorktreePath)
		}
		if ref.Shortname == "main" && ref.WorktreePath != "" {
			t.Errorf("expected main to have no worktree path, got %q", ref.WorktreePath)
		}
	}
}

func TestAssociateWorktreesNoWorktreesIsNoop(t *testing.T) {
	refs := []Ref{{Type: TypeBranch, Shortname: "main"}}
	out := AssociateWorktrees(refs, nil)
	if len(out) != 1 || out[0].WorktreePath != "" {
		t.Fatalf("expected unchanged refs, got %v", out)
	}
}
