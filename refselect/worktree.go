package refselect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/tina25311/docaggr/pattern"
)

// LinkedWorktree is one entry under <gitdir>/worktrees/, parsed the way the
// teacher's WorkTreeLink does: a name, the worktree's root path, and the
// branch (or detached commit) it currently has checked out.
type LinkedWorktree struct {
	Name     string
	Path     string
	Branch   string // "" when Detached
	Detached bool
	Head     string // commit OID; set only for detached worktrees
}

// ListLinkedWorktrees reads every entry under gitDir/worktrees, skipping
// administrative files it cannot parse rather than failing the whole scan —
// a half-written worktree entry should not take down ref selection for the
// repository it belongs to.
func ListLinkedWorktrees(gitDir string) ([]LinkedWorktree, error) {
	base := filepath.Join(gitDir, "worktrees")
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []LinkedWorktree
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lw, ok := parseLinkedWorktree(filepath.Join(base, e.Name()), e.Name())
		if ok {
			out = append(out, lw)
		}
	}
	return out, nil
}

func parseLinkedWorktree(wtDir, name string) (LinkedWorktree, bool) {
	headBytes, err := os.ReadFile(filepath.Join(wtDir, "HEAD"))
	if err != nil {
		return LinkedWorktree{}, false
	}
	gitdirBytes, err := os.ReadFile(filepath.Join(wtDir, "gitdir"))
	if err != nil {
		return LinkedWorktree{}, false
	}

	lw := LinkedWorktree{Name: name}

	headStr := strings.TrimSpace(string(headBytes))
	if ref, isSymbolic := strings.CutPrefix(headStr, "ref: "); isSymbolic {
		lw.Branch = plumbing.ReferenceName(strings.TrimSpace(ref)).Short()
	} else {
		lw.Detached = true
		lw.Head = headStr
	}

	gitFilePath := strings.TrimSpace(string(gitdirBytes))
	lw.Path = filepath.Dir(gitFilePath)

	return lw, true
}

// FilterWorktrees applies a source's `worktrees` option (spec.md §4.3):
//   - nil or false → no worktrees considered
//   - true or "*" → every linked worktree
//   - a string or []string → brace/extglob patterns matched against the
//     worktree's directory name
func FilterWorktrees(all []LinkedWorktree, opt any) ([]LinkedWorktree, error) {
	switch v := opt.(type) {
	case nil:
		return nil, nil
	case bool:
		if !v {
			return nil, nil
		}
		return all, nil
	case string:
		if v == "*" {
			return all, nil
		}
		return matchWorktrees(all, []string{v})
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
		return matchWorktrees(all, v)
	default:
		return nil, fmt.Errorf("unsupported worktrees option type %T", opt)
	}
}

func matchWorktrees(all []LinkedWorktree, patterns []string) ([]LinkedWorktree, error) {
	list, err := pattern.NewList(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid worktree pattern: %w", err)
	}
	var out []LinkedWorktree
	for _, wt := range all {
		if list.Match(wt.Name) {
			out = append(out, wt)
		}
	}
	return out, nil
}

// AssociateWorktrees attaches WorktreePath to each selected branch ref whose
// shortname matches a linked worktree's current branch, and drops worktrees
// whose current branch was not itself selected (spec.md §4.3: a worktree is
// only a source of content if its branch passed the branch filter too).
func AssociateWorktrees(refs []Ref, worktrees []LinkedWorktree) []Ref {
	if len(worktrees) == 0 {
		return refs
	}

	byBranch := make(map[string]LinkedWorktree, len(worktrees))
	for _, wt := range worktrees {
		if !wt.Detached && wt.Branch != "" {
			byBranch[wt.Branch] = wt
		}
	}

	out := make([]Ref, len(refs))
	copy(out, refs)
	for i, r := range out {
		if r.Type != TypeBranch {
			continue
		}
		if wt, ok := byBranch[r.Shortname]; ok {
			out[i].WorktreePath = wt.Path
		}
	}
	return out
}
