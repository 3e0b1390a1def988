package treereader

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/tina25311/docaggr/startpath"
)

// DiskTree adapts a worktree directory to startpath.Tree, for resolving
// start-path patterns before a WorktreeReader is constructed for the winning
// path.
type DiskTree struct {
	Root string
}

func (t DiskTree) ReadDir(dir string) ([]startpath.Entry, error) {
	entries, err := os.ReadDir(filepath.Join(t.Root, filepath.FromSlash(dir)))
	if err != nil {
		return nil, err
	}
	out := make([]startpath.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, startpath.Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

func (t DiskTree) IsDir(p string) (bool, error) {
	info, err := os.Stat(filepath.Join(t.Root, filepath.FromSlash(p)))
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// CommitTree adapts a commit's git tree to startpath.Tree, for resolving
// start-path patterns before a GitTreeReader is constructed for the winning
// path.
type CommitTree struct {
	root *object.Tree
}

func NewCommitTree(commit *object.Commit) (*CommitTree, error) {
	root, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	return &CommitTree{root: root}, nil
}

func (t *CommitTree) ReadDir(dir string) ([]startpath.Entry, error) {
	tree := t.root
	if dir != "" {
		sub, err := t.root.Tree(dir)
		if err != nil {
			return nil, err
		}
		tree = sub
	}
	out := make([]startpath.Entry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		out = append(out, startpath.Entry{Name: e.Name, IsDir: e.Mode == filemode.Dir})
	}
	return out, nil
}

func (t *CommitTree) IsDir(p string) (bool, error) {
	if p == "" {
		return true, nil
	}
	_, err := t.root.Tree(p)
	if err != nil {
		entry, ferr := t.root.FindEntry(p)
		if ferr != nil {
			return false, err
		}
		return entry.Mode == filemode.Dir, nil
	}
	return true, nil
}
