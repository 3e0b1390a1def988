// Package startpath resolves a content source's start-path configuration
// (a literal path, or a brace/glob pattern list) against the tree at one
// selected ref, the Start Path Resolver of spec.md §4.4.
package startpath

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/tina25311/docaggr/pattern"
)

const descriptorFile = "antora.yml"

// Entry is one directory entry as seen by Tree.ReadDir.
type Entry struct {
	Name  string
	IsDir bool
}

// Tree abstracts over a worktree disk tree or a git commit tree so the
// resolver does not care which backs it (spec.md §4.5 distinguishes the two
// only at read time).
type Tree interface {
	// ReadDir lists the entries directly under dir ("" is the tree root).
	// A non-existent dir is reported as a non-nil error. The resolver only
	// tests it against nil; it need not satisfy os.IsNotExist.
	ReadDir(dir string) ([]Entry, error)
	// IsDir reports whether p exists and is a directory.
	IsDir(p string) (bool, error)
}

// ErrNoStartPaths is returned when an entire startPaths expansion yields no
// directories (spec.md §4.4: "no start paths found in …").
var ErrNoStartPaths = errors.New("no start paths found")

// ResolveLiteral resolves a single, exact startPath entry. p is used
// verbatim (no pattern expansion) — spec.md §4.4's single-string form.
func ResolveLiteral(tree Tree, p string) (string, error) {
	clean := cleanPath(p)

	isDir, err := tree.IsDir(clean)
	if err != nil {
		return "", fmt.Errorf("start path '%s' does not exist", p)
	}
	if !isDir {
		return "", fmt.Errorf("start path '%s' is not a directory", p)
	}
	if err := hasDescriptor(tree, clean); err != nil {
		return "", fmt.Errorf("start path '%s': antora.yml not found", p)
	}
	return clean, nil
}

// ResolveList resolves a startPaths list: brace-expanded, pattern-matched
// against the tree, with negated entries removing previously matched paths
// (spec.md §4.4's list form).
func ResolveList(tree Tree, raws []string) ([]string, error) {
	var matched []string
	seen := make(map[string]bool)

	for _, raw := range raws {
		negate := strings.HasPrefix(raw, "!")
		body := strings.TrimPrefix(raw, "!")

		expansions, err := pattern.ExpandBraces(body)
		if err != nil {
			return nil, fmt.Errorf("invalid start path pattern %q: %w", raw, err)
		}

		for _, expanded := range expansions {
			if negate {
				matched = removePath(matched, expanded)
				delete(seen, expanded)
				continue
			}

			if !pattern.HasMeta(expanded) {
				clean := cleanPath(expanded)
				isDir, err := tree.IsDir(clean)
				if err != nil {
					return nil, fmt.Errorf("start path '%s' does not exist", expanded)
				}
				if !isDir {
					return nil, fmt.Errorf("start path '%s' is not a directory", expanded)
				}
				if !seen[clean] {
					seen[clean] = true
					matched = append(matched, clean)
				}
				continue
			}

			hits, err := glob(tree, expanded)
			if err != nil {
				return nil, err
			}
			for _, h := range hits {
				if !seen[h] {
					seen[h] = true
					matched = append(matched, h)
				}
			}
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoStartPaths, strings.Join(raws, ", "))
	}
	return matched, nil
}

func removePath(paths []string, p string) []string {
	clean := cleanPath(p)
	var out []string
	for _, existing := range paths {
		if existing != clean {
			out = append(out, existing)
		}
	}
	return out
}

func hasDescriptor(tree Tree, dir string) error {
	entries, err := tree.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir && e.Name == descriptorFile {
			return nil
		}
	}
	return fmt.Errorf("%s not found under %s", descriptorFile, dir)
}

func cleanPath(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

// glob expands a single glob/extglob pattern against tree, matching each
// path segment against the full segment name (not a substring) and
// excluding dotfiles/dot-directories unless the corresponding segment of
// the pattern itself begins with "." (spec.md §4.4). A pattern that matches
// nothing returns an empty, error-free result.
func glob(tree Tree, p string) ([]string, error) {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	return globWalk(tree, "", segments)
}

func globWalk(tree Tree, base string, segments []string) ([]string, error) {
	if len(segments) == 0 {
		isDir, err := tree.IsDir(base)
		if err != nil || !isDir {
			return nil, nil
		}
		return []string{base}, nil
	}

	seg := segments[0]
	rest := segments[1:]

	if seg == "**" {
		var out []string
		below, err := globWalk(tree, base, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, below...)

		entries, err := tree.ReadDir(base)
		if err != nil {
			return out, nil
		}
		for _, e := range entries {
			if !e.IsDir || strings.HasPrefix(e.Name, ".") {
				continue
			}
			sub, err := globWalk(tree, joinPath(base, e.Name), segments)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	}

	allowDot := strings.HasPrefix(seg, ".")

	if !pattern.HasMeta(seg) {
		next := joinPath(base, seg)
		sub, err := globWalk(tree, next, rest)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}

	re, err := pattern.CompileSegment(seg)
	if err != nil {
		return nil, fmt.Errorf("invalid start path pattern segment %q: %w", seg, err)
	}

	entries, err := tree.ReadDir(base)
	if err != nil {
		return nil, nil
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		if strings.HasPrefix(e.Name, ".") && !allowDot {
			continue
		}
		if !re.MatchString(e.Name) {
			continue
		}
		sub, err := globWalk(tree, joinPath(base, e.Name), rest)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
