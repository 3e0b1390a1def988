// Package refselect enumerates a repository's branches and tags and filters
// them with brace/extglob patterns, the Ref Selector of spec.md §4.3. Ref
// listing goes through go-git rather than shelling to `git for-each-ref`, so
// that repeated selections against the same repository reuse go-git's
// decompressed-pack object cache (spec.md §5).
package refselect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/tina25311/docaggr/pattern"
	"github.com/tina25311/docaggr/repomanager"
)

// Type identifies whether a Ref came from a branch or a tag namespace.
type Type string

const (
	TypeBranch Type = "branch"
	TypeTag    Type = "tag"
)

// Ref is one selected branch or tag (spec.md §3).
type Ref struct {
	Type         Type
	Shortname    string
	Fullname     string
	OID          string
	WorktreePath string // set when this ref is backed by a checked-out worktree
	RemoteName   string // set for remote-tracked branches
}

// Options configures one Select call against a repository.
type Options struct {
	BranchPatterns []string
	TagPatterns    []string
	// PreferredRemote is consulted when both local and remote-tracking
	// branches exist; "" defaults to "origin".
	PreferredRemote string
}

// Open opens repo for ref listing, following the worktree/bare distinction
// repomanager.Repository already resolved.
func Open(repo *repomanager.Repository) (*git.Repository, error) {
	if repo.Bare {
		return git.PlainOpen(repo.Dir)
	}
	return git.PlainOpenWithOptions(repo.Dir, &git.PlainOpenOptions{DetectDotGit: true})
}

// Select enumerates repo's refs and returns those matching opts, in
// discovery order, deduplicated by (type, fullname) per spec.md §4.3 rule 4.
func Select(repo *repomanager.Repository, r *git.Repository, opts Options) ([]Ref, error) {
	branches, tags, err := enumerateRefs(r, opts.PreferredRemote)
	if err != nil {
		return nil, fmt.Errorf("unable to list refs: %w", err)
	}

	branchPatterns, err := expandHeadTokens(r, opts.BranchPatterns)
	if err != nil {
		return nil, err
	}

	branchMatcher, err := pattern.NewList(branchPatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid branch pattern: %w", err)
	}
	tagMatcher, err := pattern.NewList(opts.TagPatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid tag pattern: %w", err)
	}

	var selected []Ref
	seen := make(map[string]bool)

	for _, b := range branches {
		if !branchMatcher.Empty() && !branchMatcher.Match(b.Shortname) {
			continue
		}
		key := string(b.Type) + "|" + b.Fullname
		if seen[key] {
			continue
		}
		seen[key] = true
		selected = append(selected, b)
	}
	for _, tg := range tags {
		if !tagMatcher.Empty() && !tagMatcher.Match(tg.Shortname) {
			continue
		}
		key := string(tg.Type) + "|" + tg.Fullname
		if seen[key] {
			continue
		}
		seen[key] = true
		selected = append(selected, tg)
	}

	return selected, nil
}

// enumerateRefs lists local branches, remote-tracking branches (preferring
// remote over local per spec.md §4.3 rule 1), and tags.
func enumerateRefs(r *git.Repository, preferredRemote string) (branches, tags []Ref, err error) {
	iter, err := r.References()
	if err != nil {
		return nil, nil, err
	}

	var local, remote []Ref
	remotesSeen := make(map[string]bool)

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch():
			local = append(local, Ref{Type: TypeBranch, Shortname: name.Short(), Fullname: name.String(), OID: ref.Hash().String()})
		case name.IsRemote():
			rest := strings.TrimPrefix(name.String(), "refs/remotes/")
			parts := strings.SplitN(rest, "/", 2)
			if len(parts) != 2 {
				return nil
			}
			remotesSeen[parts[0]] = true
			remote = append(remote, Ref{Type: TypeBranch, Shortname: parts[1], Fullname: name.String(), OID: ref.Hash().String(), RemoteName: parts[0]})
		case name.IsTag():
			oid := resolveTagCommit(r, ref.Hash())
			tags = append(tags, Ref{Type: TypeTag, Shortname: name.Short(), Fullname: name.String(), OID: oid})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	branches = local
	if len(remote) > 0 {
		chosen := preferredRemote
		if chosen == "" {
			chosen = "origin"
		}
		if !remotesSeen[chosen] {
			for name := range remotesSeen {
				chosen = name
				break
			}
		}
		var filtered []Ref
		for _, b := range remote {
			if b.RemoteName == chosen {
				filtered = append(filtered, b)
			}
		}
		if len(filtered) > 0 {
			branches = filtered
		}
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].Fullname < branches[j].Fullname })
	sort.Slice(tags, func(i, j int) bool { return tags[i].Fullname < tags[j].Fullname })

	return branches, tags, nil
}

// resolveTagCommit peels an annotated tag to its target commit; lightweight
// tags already name the commit directly.
func resolveTagCommit(r *git.Repository, hash plumbing.Hash) string {
	tagObj, err := r.TagObject(hash)
	if err != nil {
		return hash.String()
	}
	commit, err := tagObj.Commit()
	if err != nil {
		return hash.String()
	}
	return commit.Hash.String()
}

// expandHeadTokens replaces a literal "HEAD" or "." pattern with the
// resolved current branch (or a synthetic detached-HEAD name), per
// spec.md §4.3 rule 2.
func expandHeadTokens(r *git.Repository, patterns []string) ([]string, error) {
	var out []string
	var resolved string
	for _, p := range patterns {
		if p != "HEAD" && p != "." {
			out = append(out, p)
			continue
		}
		if resolved == "" {
			head, err := r.Head()
			if err != nil {
				return nil, fmt.Errorf("unable to resolve HEAD: %w", err)
			}
			if head.Name().IsBranch() {
				resolved = head.Name().Short()
			} else {
				resolved = "HEAD-" + head.Hash().String()[:7]
			}
		}
		out = append(out, resolved)
	}
	return out, nil
}
