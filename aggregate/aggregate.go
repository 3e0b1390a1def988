// Run wires every earlier pipeline stage together: Source Resolver
// (source.Resolve), Repository Manager (repomanager.Manager), Ref Selector
// (refselect.Select), Start Path Resolver (startpath), Tree Reader
// (treereader), and finally this package's own Origin Computer and
// Component Version Aggregator (spec.md §2).
package aggregate

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/tina25311/docaggr/auth"
	"github.com/tina25311/docaggr/config"
	"github.com/tina25311/docaggr/errs"
	"github.com/tina25311/docaggr/refselect"
	"github.com/tina25311/docaggr/repomanager"
	"github.com/tina25311/docaggr/source"
	"github.com/tina25311/docaggr/startpath"
	"github.com/tina25311/docaggr/treereader"
)

const descriptorFile = "antora.yml"

// Options configures one Run call.
type Options struct {
	PlaybookDir string
	CacheDir    string
	Plugins     repomanager.PluginSet
	GCMode      repomanager.GCMode
	Events      func(Event) // optional sink; nil drops events
}

// Run aggregates pb.Content.Sources into an ordered (by discovery) list of
// component-version buckets.
func Run(ctx context.Context, pb *config.Playbook, opts Options) ([]*ComponentVersionBucket, error) {
	runStart := time.Now()

	emit := opts.Events
	if emit == nil {
		emit = func(Event) {}
	}

	plan, err := build(ctx, pb, opts)
	if err != nil {
		return nil, err
	}

	for _, u := range plan.scrubbedURLs {
		emit(Event{Kind: EventCloneStart, URL: u})
	}
	fetchStart := time.Now()
	repos, err := plan.mgr.EnsureAll(ctx, pb.Content.Runtime.Fetch, plan.reqs)
	for _, u := range plan.scrubbedURLs {
		recordClone(u, err == nil)
		recordFetchLatency(u, fetchStart)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to ensure content repositories: %w", err)
	}
	for _, u := range plan.scrubbedURLs {
		emit(Event{Kind: EventCloneDone, URL: u})
	}

	buckets, err := assemble(repos, plan, emit)
	if err != nil {
		return nil, err
	}
	recordRun(runStart, len(buckets))
	return buckets, nil
}

// Watch runs Run's pipeline repeatedly on an interval via
// repomanager.Manager.Watch, invoking onResult after every cycle (including
// the first) until ctx is cancelled. It's an optional longer-lived mode for
// a live-preview-style caller; a one-shot caller should use Run directly
// (spec.md §7 REDESIGN note).
func Watch(ctx context.Context, pb *config.Playbook, opts Options, interval time.Duration, onResult func([]*ComponentVersionBucket, error)) error {
	emit := opts.Events
	if emit == nil {
		emit = func(Event) {}
	}

	plan, err := build(ctx, pb, opts)
	if err != nil {
		return err
	}

	plan.mgr.Watch(ctx, interval, plan.reqs, func(repos []*repomanager.Repository, err error) {
		if err != nil {
			onResult(nil, fmt.Errorf("unable to ensure content repositories: %w", err))
			return
		}

		runStart := time.Now()
		buckets, err := assemble(repos, plan, emit)
		if err == nil {
			recordRun(runStart, len(buckets))
		}
		onResult(buckets, err)
	})

	return nil
}

// plan holds the per-source state built once from a playbook: the repository
// manager, each resolved source, its scrubbed URL, its resolved private-auth
// origin, and the repomanager.Request that fetches it. Run and Watch both
// build one and then drive repomanager.Manager differently (once vs on an
// interval) over the same plan.
type plan struct {
	mgr          *repomanager.Manager
	sources      []*source.Source
	scrubbedURLs []string
	privates     []auth.Origin
	reqs         []repomanager.Request
}

func build(ctx context.Context, pb *config.Playbook, opts Options) (*plan, error) {
	defaultEnsureGitSuffix := true
	if pb.Content.Git.EnsureGitSuffix != nil {
		defaultEnsureGitSuffix = *pb.Content.Git.EnsureGitSuffix
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = pb.Content.Runtime.CacheDir
	}
	if cacheDir == "" {
		cacheDir = ".cache"
	}

	gcMode := opts.GCMode
	if gcMode == "" {
		gcMode = repomanager.GCAuto
	}

	mgr, err := repomanager.New(cacheDir, pb.Content.Git.FetchConcurrency, gcMode, opts.Plugins, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize repository manager: %w", err)
	}

	credFilePath, err := materializeCredentials(cacheDir, pb.Content.Git.Credentials)
	if err != nil {
		return nil, fmt.Errorf("unable to materialize git credentials: %w", err)
	}

	p := &plan{mgr: mgr}

	for _, raw := range pb.Content.Sources {
		src, err := source.Resolve(raw, opts.PlaybookDir, pb.Content.Branches, pb.Content.Tags, defaultEnsureGitSuffix)
		if err != nil {
			return nil, err
		}

		scrubbedURL, resolved, err := auth.Resolve(ctx, src.URL, auth.Credentials{}, credFilePath, opts.Plugins.CredentialManager)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve credentials for %q: %w", src.URL, err)
		}

		p.sources = append(p.sources, src)
		p.scrubbedURLs = append(p.scrubbedURLs, scrubbedURL)
		p.privates = append(p.privates, resolved.Origin)

		p.reqs = append(p.reqs, repomanager.Request{
			URL:             scrubbedURL,
			Auth:            auth.Credentials{Username: resolved.Username, Password: resolved.Password},
			EnsureGitSuffix: src.EnsureGitSuffix,
			WantTags:        len(src.Tags) > 0,
		})
	}

	return p, nil
}

// assemble runs the ref-selection/tree-read/descriptor stage against
// already-ensured repos, folding every source's matched refs into a fresh
// Aggregator.
func assemble(repos []*repomanager.Repository, p *plan, emit func(Event)) ([]*ComponentVersionBucket, error) {
	agg := NewAggregator()

	for i, src := range p.sources {
		repo := repos[i]

		gitRepo, err := refselect.Open(repo)
		if err != nil {
			return nil, fmt.Errorf("unable to open %q: %w", repo.Dir, err)
		}

		refs, err := refselect.Select(repo, gitRepo, refselect.Options{
			BranchPatterns: src.Branches,
			TagPatterns:    src.Tags,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to select refs for %q: %w", p.scrubbedURLs[i], err)
		}
		if len(refs) == 0 {
			emit(Event{Kind: EventNoRefsMatched, URL: p.scrubbedURLs[i]})
			continue
		}

		for _, ref := range refs {
			if err := processRef(agg, repo, gitRepo, src, ref, p.privates[i], emit); err != nil {
				return nil, errs.WithContext(err, "url", p.scrubbedURLs[i], "ref", ref.Shortname)
			}
		}
	}

	return agg.Buckets(), nil
}

// processRef resolves start paths for one selected ref, reads each one's
// tree, parses its component descriptor, and folds the result into agg.
//
// A local, non-bare repository is read straight off disk at its current
// checkout (repomanager only keeps one worktree per local source, so ref
// selection there is a no-op pass-through); every other repository is read
// against the selected ref's commit object directly from the bare object
// store, without materializing a separate worktree per ref.
func processRef(agg *Aggregator, repo *repomanager.Repository, gitRepo *gogit.Repository, src *source.Source, ref refselect.Ref, private auth.Origin, emit func(Event)) error {
	localWorktree := repo.Local && !repo.Bare

	var tree startpath.Tree
	var commit *object.Commit
	if localWorktree {
		tree = treereader.DiskTree{Root: repo.Dir}
	} else {
		c, err := gitRepo.CommitObject(plumbing.NewHash(ref.OID))
		if err != nil {
			return fmt.Errorf("unable to load commit %s: %w", ref.OID, err)
		}
		commit = c
		ct, err := treereader.NewCommitTree(commit)
		if err != nil {
			return err
		}
		tree = ct
	}

	startPaths, err := resolveStartPaths(tree, src)
	if err != nil {
		return err
	}

	for _, sp := range startPaths {
		var files []treereader.File
		if localWorktree {
			root := repo.Dir
			if sp != "" {
				root = path.Join(root, sp)
			}
			files, err = treereader.WorktreeReader{Root: root}.Walk()
		} else {
			var r *treereader.GitTreeReader
			r, err = treereader.NewGitTreeReader(commit, sp)
			if err == nil {
				files, err = r.Walk()
			}
		}
		if err != nil {
			return errs.WithContext(err, "startPath", sp)
		}

		descriptor, contentFiles, err := splitDescriptor(files)
		if err != nil {
			return errs.WithContext(err, "startPath", sp)
		}

		version, err := ResolveVersion(src.Version, descriptor.Version, descriptor.VersionSet, ref.Shortname)
		if err != nil {
			return err
		}

		origin, err := BuildOrigin(repo, ref, sp, private, src.EditURL)
		if err != nil {
			return err
		}
		origin.Descriptor = descriptor

		vfiles := make([]VirtualFile, 0, len(contentFiles))
		for _, f := range contentFiles {
			vfiles = append(vfiles, toVirtualFile(f, origin))
		}

		agg.AddOrigin(descriptor.Name, version, origin, vfiles)
		emit(Event{Kind: EventInfo, Msg: fmt.Sprintf("aggregated %s@%s (%s)", descriptor.Name, version, origin.Refname)})
	}

	return nil
}

// materializeCredentials returns a git-credential-file path for
// auth.Resolve. A configured Path wins outright; inline Contents (the
// playbook's alternative to a Path, spec.md §4.2's credential store) is
// written once under cacheDir so ReadGitCredentialFile can read it like any
// other file on disk.
func materializeCredentials(cacheDir string, creds config.Credentials) (string, error) {
	if creds.Path != "" {
		return creds.Path, nil
	}
	if creds.Contents == "" {
		return "", nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	credFilePath := path.Join(cacheDir, "git-credentials")
	if err := os.WriteFile(credFilePath, []byte(creds.Contents), 0o600); err != nil {
		return "", err
	}
	return credFilePath, nil
}

func resolveStartPaths(tree startpath.Tree, src *source.Source) ([]string, error) {
	switch {
	case src.StartPath != "":
		p, err := startpath.ResolveLiteral(tree, src.StartPath)
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	case len(src.StartPaths) > 0:
		return startpath.ResolveList(tree, src.StartPaths)
	default:
		return []string{""}, nil
	}
}

// splitDescriptor reads and parses the start path's antora.yml, returning
// every other file as published content (the descriptor itself is never
// part of a component's published files).
func splitDescriptor(files []treereader.File) (Descriptor, []treereader.File, error) {
	var data []byte
	var found bool
	contentFiles := make([]treereader.File, 0, len(files))
	for _, f := range files {
		if f.Path == descriptorFile {
			data = f.Contents
			found = true
			continue
		}
		contentFiles = append(contentFiles, f)
	}
	if !found {
		return Descriptor{}, nil, fmt.Errorf("%s not found", descriptorFile)
	}
	d, err := ParseDescriptor(data)
	if err != nil {
		return Descriptor{}, nil, err
	}
	return d, contentFiles, nil
}

func toVirtualFile(f treereader.File, origin Origin) VirtualFile {
	dir := path.Dir(f.Path)
	if dir == "." {
		dir = ""
	}
	base := path.Base(f.Path)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	src := SourceInfo{
		Path:     f.Path,
		Relative: f.Path,
		Origin:   origin,
		EditURL:  EditURL(origin, f.Path),
		FileURI:  FileURI(origin, f.Path),
	}
	if wt, ok := origin.Worktree.(string); ok {
		src.AbsPath = path.Join(wt, f.Path)
	}

	return VirtualFile{
		Path:     f.Path,
		Dirname:  dir,
		Basename: base,
		Stem:     stem,
		Extname:  ext,
		Contents: f.Contents,
		Stat: Stat{
			Mode:   f.Mode,
			MTime:  f.ModTime,
			IsFile: true,
		},
		Symlink: f.Symlink,
		Src:     src,
	}
}
