// Package source implements the Source Resolver (spec.md §4.1): it
// normalizes one playbook content-source entry into the shape every later
// pipeline stage expects — a resolved URL, split branch/tag pattern lists,
// and trimmed start-path patterns.
package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tina25311/docaggr/config"
	"github.com/tina25311/docaggr/giturl"
)

// Source is one fully normalized content source.
type Source struct {
	URL             string
	Branches        []string
	Tags            []string
	StartPath       string
	StartPaths      []string
	Worktrees       any
	Version         any
	EditURL         any
	EnsureGitSuffix bool
}

// Resolve normalizes raw against playbookDir (the directory the playbook
// file lives in, or "" for cwd) and the content-wide default branch/tag
// patterns and EnsureGitSuffix setting.
func Resolve(raw config.Source, playbookDir string, defaultBranches, defaultTags []string, defaultEnsureGitSuffix bool) (*Source, error) {
	if raw.URL == "" {
		return nil, fmt.Errorf("a content source must specify a url")
	}

	ensureGitSuffix := defaultEnsureGitSuffix

	url := raw.URL
	if !giturl.IsRemoteURL(url) {
		expanded, err := giturl.ExpandLocalPath(url, playbookDir)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve local content source %q: %w", raw.URL, err)
		}
		url = expanded
	} else {
		url = giturl.EnsureGitSuffix(url, ensureGitSuffix)
	}

	branches := NormalizeList([]string(raw.Branches))
	if len(branches) == 0 {
		branches = defaultBranches
	}
	tags := NormalizeList([]string(raw.Tags))
	if len(tags) == 0 {
		tags = defaultTags
	}

	startPaths := NormalizeList([]string(raw.StartPaths))
	for i, p := range startPaths {
		startPaths[i] = normalizeStartPath(p)
	}

	startPath := ""
	if raw.StartPath != "" {
		startPath = normalizeStartPath(raw.StartPath)
	}

	worktrees, err := config.ParseNode(raw.Worktrees)
	if err != nil {
		return nil, fmt.Errorf("invalid worktrees option for %q: %w", raw.URL, err)
	}
	version, err := config.ParseNode(raw.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid version option for %q: %w", raw.URL, err)
	}
	editURL, err := config.ParseNode(raw.EditURL)
	if err != nil {
		return nil, fmt.Errorf("invalid edit_url option for %q: %w", raw.URL, err)
	}

	return &Source{
		URL:             url,
		Branches:        branches,
		Tags:            tags,
		StartPath:       startPath,
		StartPaths:      startPaths,
		Worktrees:       worktrees,
		Version:         version,
		EditURL:         editURL,
		EnsureGitSuffix: ensureGitSuffix,
	}, nil
}

// NormalizeList splits each entry on commas (honoring the brace-aware rule
// below) and trims whitespace, flattening CSV-style entries from a YAML
// list or a single scalar into one ordered list of patterns.
func NormalizeList(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, part := range splitCSV(item) {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var commaSpaceRgx = regexp.MustCompile(`,\s+`)

// splitCSV splits s on "," unless doing so would split apart an unbalanced
// "{...}" brace group, in which case only ", " (comma followed by
// whitespace) is treated as a separator (spec.md §4.1).
func splitCSV(s string) []string {
	parts, balanced := splitOnBareComma(s)
	if balanced {
		return parts
	}
	return commaSpaceRgx.Split(s, -1)
}

func splitOnBareComma(s string) ([]string, bool) {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts, depth == 0
}

// normalizeStartPath trims leading/trailing slashes and collapses repeated
// interior slashes (spec.md §4.1).
func normalizeStartPath(p string) string {
	p = strings.Trim(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}
