// Package aggregate implements the Origin Computer and Component Version
// Aggregator (spec.md §4.6), and Run, the top-level entrypoint that wires
// every earlier stage (source, repomanager, refselect, startpath,
// treereader) into the final ordered list of component-version buckets.
package aggregate

import (
	"io/fs"
	"time"

	"github.com/tina25311/docaggr/auth"
)

// Origin is the provenance tuple recorded on every file (spec.md §3, §4.6).
// One Origin per (repository, ref, startPath); descriptors are values, not
// shared pointers, so cyclic bucket<->origin references never alias.
type Origin struct {
	Type      string // always "git"
	URL       string // sanitized remote URL, or file://... for local/bare
	WebURL    string // URL with a trailing .git stripped, remotes only
	GitDir    string
	Refname   string
	Reftype   string // "branch" | "tag"
	Branch    string // set when Reftype == "branch"
	Tag       string // set when Reftype == "tag"
	StartPath string
	Refhash   string

	// Worktree is the worktree path (string) for a local non-bare repository
	// or a ref with a linked worktree, and false otherwise. BuildOrigin sets
	// false for remote caches too; it never leaves Worktree nil.
	Worktree any

	Remote         string
	FileURIPattern string
	EditURLPattern string
	Private        auth.Origin

	Descriptor Descriptor
}

// Stat mirrors VirtualFile.stat (spec.md §3).
type Stat struct {
	Mode   fs.FileMode
	MTime  time.Time // zero in git-tree mode
	IsFile bool
}

// SourceInfo mirrors VirtualFile.src (spec.md §3): path parts plus
// provenance and derived URLs.
type SourceInfo struct {
	Path     string // POSIX, relative to the start path, no leading "/"
	Relative string // identical to Path (spec.md §3 invariant)
	Origin   Origin
	AbsPath  string // set in worktree mode
	FileURI  string
	EditURL  string
}

// VirtualFile is one file contributed to a bucket (spec.md §3).
type VirtualFile struct {
	Path     string
	Dirname  string
	Basename string
	Stem     string
	Extname  string
	Contents []byte
	Stat     Stat
	Symlink  string // resolved target, set only if reached via a symlink
	Src      SourceInfo
}

// ComponentVersionBucket groups every file published under one (name,
// version) pair (spec.md §3).
type ComponentVersionBucket struct {
	Name           string
	Version        string
	Title          string
	DisplayVersion string
	StartPage      string
	Prerelease     any
	AsciiDoc       map[string]any // last origin's value only; never merged
	Nav            []string
	Origins        []Origin
	Files          []VirtualFile
}

// EventKind identifies the coarse event stream spec.md §9 calls for,
// decoupling the aggregator from any progress-rendering UI.
type EventKind string

const (
	EventCloneStart    EventKind = "clone-start"
	EventCloneDone     EventKind = "clone-done"
	EventFetchStart    EventKind = "fetch-start"
	EventFetchDone     EventKind = "fetch-done"
	EventNoRefsMatched EventKind = "no-refs-matched"
	EventInfo          EventKind = "info"
)

// Event is one entry in the structured progress/observability stream.
type Event struct {
	Kind EventKind
	URL  string
	Err  error
	Msg  string
}
