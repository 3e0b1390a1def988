package treereader

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"runtime"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitTreeReader walks a commit's tree via go-git rather than disk (spec.md
// §4.5 git-tree mode). Symlink targets are resolved against the full
// repository tree, since a link may point outside the start path (but never
// outside the repository — there is no real filesystem to escape to).
type GitTreeReader struct {
	root      *object.Tree // the commit's root tree
	startPath string       // slash-separated, relative to repo root
}

// NewGitTreeReader resolves startPath (already normalized by the startpath
// package) against commit's tree.
func NewGitTreeReader(commit *object.Commit, startPath string) (*GitTreeReader, error) {
	root, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("unable to read commit tree: %w", err)
	}
	return &GitTreeReader{root: root, startPath: strings.Trim(startPath, "/")}, nil
}

// Walk enumerates every file under the reader's start path. Broken links and
// symlink cycles are fatal in git-tree mode (spec.md §4.5).
func (r *GitTreeReader) Walk() ([]File, error) {
	startTree := r.root
	if r.startPath != "" {
		t, err := r.root.Tree(r.startPath)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve start path %q: %w", r.startPath, err)
		}
		startTree = t
	}

	var out []File
	err := r.walk(startTree, r.startPath, "", &out, make(map[hopKey]string))
	return out, err
}

func (r *GitTreeReader) walk(tree *object.Tree, absDir, relDir string, out *[]File, hops map[hopKey]string) error {
	for _, entry := range tree.Entries {
		if isExcluded(entry.Name) {
			continue
		}
		relPath, err := joinRel(relDir, entry.Name)
		if err != nil {
			return err
		}
		absPath := joinAbs(absDir, entry.Name)

		switch entry.Mode {
		case filemode.Dir:
			subtree, err := tree.Tree(entry.Name)
			if err != nil {
				return fmt.Errorf("unable to read tree %s: %w", absPath, err)
			}
			var sub []File
			if err := r.walk(subtree, absPath, relPath, &sub, hops); err != nil {
				return err
			}
			if len(sub) > 0 {
				*out = append(*out, sub...)
			}

		case filemode.Symlink:
			linkHops := cloneHops(hops)
			resolvedAbs, resolvedEntry, resolvedTree, err := r.resolveSymlinkChain(absDir, entry.Name, tree, linkHops)
			if err != nil {
				return err
			}
			if resolvedEntry.Mode == filemode.Dir {
				if err := r.walk(resolvedTree, resolvedAbs, relPath, out, linkHops); err != nil {
					return err
				}
				continue
			}
			contents, err := r.blobContents(resolvedEntry)
			if err != nil {
				return err
			}
			*out = append(*out, File{Path: relPath, Mode: fileMode(resolvedEntry.Mode), Contents: contents, Symlink: resolvedAbs})

		case filemode.Regular, filemode.Executable:
			contents, err := r.blobContents(&entry)
			if err != nil {
				return fmt.Errorf("unable to read blob %s: %w", absPath, err)
			}
			*out = append(*out, File{Path: relPath, Mode: fileMode(entry.Mode), Contents: contents})

		default:
			// submodules and other non-regular, non-symlink entries are excluded.
			continue
		}
	}
	return nil
}

// resolveSymlinkChain follows a symlink entry (dir/name, within parentTree)
// to a non-link target anywhere in the repository tree, detecting cycles.
func (r *GitTreeReader) resolveSymlinkChain(dir, name string, parentTree *object.Tree, hops map[hopKey]string) (string, *object.TreeEntry, *object.Tree, error) {
	full := joinAbs(dir, name)
	key := hopKey{dir: dir, name: name}
	if prevTarget, seen := hops[key]; seen {
		return "", nil, nil, eloopError(full, prevTarget)
	}

	entry, err := parentTree.FindEntry(name)
	if err != nil {
		return "", nil, nil, brokenLinkError(full, "")
	}
	targetText, err := r.blobContents(entry)
	if err != nil {
		return "", nil, nil, brokenLinkError(full, "")
	}
	target := strings.TrimSpace(string(targetText))
	hops[key] = target

	resolvedPath := target
	if !path.IsAbs(resolvedPath) {
		resolvedPath = path.Join(dir, resolvedPath)
	}
	resolvedPath = strings.TrimPrefix(path.Clean(resolvedPath), "/")

	resolvedEntry, resolvedParent, err := r.lookup(resolvedPath)
	if err != nil {
		return "", nil, nil, brokenLinkError(full, target)
	}

	if resolvedEntry.Mode == filemode.Symlink {
		resolvedDir := path.Dir(resolvedPath)
		if resolvedDir == "." {
			resolvedDir = ""
		}
		return r.resolveSymlinkChain(resolvedDir, resolvedEntry.Name, resolvedParent, hops)
	}

	var resolvedTree *object.Tree
	if resolvedEntry.Mode == filemode.Dir {
		resolvedTree, err = r.root.Tree(resolvedPath)
		if err != nil {
			return "", nil, nil, brokenLinkError(full, target)
		}
	}
	return resolvedPath, resolvedEntry, resolvedTree, nil
}

// lookup resolves an absolute-from-repo-root path to its entry and
// containing tree.
func (r *GitTreeReader) lookup(p string) (*object.TreeEntry, *object.Tree, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, nil, fmt.Errorf("cannot resolve repository root as an entry")
	}
	dir := path.Dir(p)
	base := path.Base(p)

	parent := r.root
	if dir != "." {
		t, err := r.root.Tree(dir)
		if err != nil {
			return nil, nil, err
		}
		parent = t
	}
	entry, err := parent.FindEntry(base)
	if err != nil {
		return nil, nil, err
	}
	return entry, parent, nil
}

// blobContents reads the contents of entry's blob. TreeEntryFile only needs
// a storer to resolve the blob, so r.root works regardless of which subtree
// entry structurally belongs to.
func (r *GitTreeReader) blobContents(entry *object.TreeEntry) ([]byte, error) {
	f, err := r.root.TreeEntryFile(entry)
	if err != nil {
		return nil, err
	}
	rd, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

func joinAbs(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// fileMode derives the fixed git-tree-mode stat bits spec.md §4.5 specifies:
// regular files carry 0o100666, executables 0o100777 — except on Windows,
// where the executable bit is meaningless and the regular mask is forced;
// mtime is omitted in either case.
func fileMode(m filemode.FileMode) fs.FileMode {
	if m == filemode.Executable && runtime.GOOS != "windows" {
		return fs.FileMode(0o100777)
	}
	return fs.FileMode(0o100666)
}
