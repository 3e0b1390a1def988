// Package repomanager ensures each unique content-source URL is represented
// by exactly one usable repository on disk (spec.md §4.2): a bare mirror
// cache for remote URLs, or a direct reference to a local worktree/bare
// repository. It owns the clone/fetch lifecycle, the `valid` sentinel, and
// the bounded-concurrency + one-shot-serial-retry policy for batches of
// remote URLs.
package repomanager

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tina25311/docaggr/auth"
	"github.com/tina25311/docaggr/giturl"
	"github.com/tina25311/docaggr/internal/lock"
)

const defaultDirMode = os.FileMode(0o755)

// GCMode is git gc strategy applied after a fetch.
type GCMode string

const (
	GCAuto       GCMode = "auto"
	GCAlways     GCMode = "always"
	GCAggressive GCMode = "aggressive"
	GCOff        GCMode = "off"
)

// FS is the replaceable filesystem adapter plugin slot (spec.md §4.2). The
// default implementation shells straight to the OS; a plugin can intercept
// every path the Manager touches (useful for chroot/overlay setups in tests).
type FS interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	RemoveAll(path string) error
}

type osFS struct{}

func (osFS) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }
func (osFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (osFS) RemoveAll(path string) error                  { return os.RemoveAll(path) }

// PluginSet is the explicit, per-run set of replaceable plugin slots
// (spec.md §4.2, §9): never registered on a package-level global, so
// concurrent runs never bleed plugins into one another.
type PluginSet struct {
	HTTP              *http.Client
	FS                FS
	CredentialManager auth.Manager
}

func (p PluginSet) withDefaults() PluginSet {
	if p.FS == nil {
		p.FS = osFS{}
	}
	return p
}

// Request describes one content-source URL to ensure, with the credentials
// and tag/branch intent that shape how it is fetched.
type Request struct {
	URL             string
	Auth            auth.Credentials
	EnsureGitSuffix bool
	WantTags        bool
}

// Repository is the resolved, on-disk location of one content source.
type Repository struct {
	URL    *giturl.URL // parsed, credential-free
	Remote string      // normalized remote used for git operations
	Dir    string      // bare mirror dir (remote) or worktree/bare dir (local)
	Bare   bool
	Local  bool
	Auth   auth.Credentials

	lock lock.RWMutex
	log  *slog.Logger
}

// RLock acquires the per-repository read lock and RUnlock releases it. No
// caller in this module takes this lock, for reading or for writing, so it
// does not serialize reads against a fetch.
func (r *Repository) RLock()   { r.lock.RLock() }
func (r *Repository) RUnlock() { r.lock.RUnlock() }

// Manager owns the content cache directory and the set of repositories
// resolved so far in this run (spec.md §5: a repository is cloned at most
// once per run even if referenced by multiple sources).
type Manager struct {
	contentDir       string
	fetchConcurrency int
	gitGC            GCMode
	plugins          PluginSet
	log              *slog.Logger

	mu       sync.Mutex
	resolved map[string]*Repository // key: giturl.NormaliseURL(remote)
}

// New creates a Manager rooted at <cacheDir>/content, creating that
// directory if necessary (spec.md §4.2 step 1).
func New(cacheDir string, fetchConcurrency int, gitGC GCMode, plugins PluginSet, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	if fetchConcurrency < 1 {
		fetchConcurrency = 1
	}
	if gitGC == "" {
		gitGC = GCAuto
	}

	contentDir := filepath.Join(cacheDir, "content")
	if err := os.MkdirAll(contentDir, defaultDirMode); err != nil {
		return nil, fmt.Errorf("unable to create content cache dir: %w", err)
	}

	return &Manager{
		contentDir:       contentDir,
		fetchConcurrency: fetchConcurrency,
		gitGC:            gitGC,
		plugins:          plugins.withDefaults(),
		log:              log,
		resolved:         make(map[string]*Repository),
	}, nil
}

// Repository returns the already-resolved Repository for url, if EnsureAll
// has processed it.
func (m *Manager) Repository(url string) (*Repository, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.resolved[giturl.NormaliseURL(url)]
	return repo, ok
}

// EnsureAll resolves every request to a usable on-disk Repository, bounded
// by fetchConcurrency, with the one-shot serial retry required by
// spec.md §4.2: if the initial parallel batch has an unexpected failure and
// more than one remote URL is in flight, failed URLs are retried once,
// serially, before the run gives up on them.
func (m *Manager) EnsureAll(ctx context.Context, fetch bool, reqs []Request) ([]*Repository, error) {
	dedup := m.dedupe(reqs)

	results := make([]*Repository, len(dedup))
	errs := make([]error, len(dedup))

	m.runBatch(ctx, fetch, dedup, results, errs, m.fetchConcurrency)

	var failedIdx []int
	for i, err := range errs {
		if err == nil {
			continue
		}
		if te, ok := err.(*TransportError); ok && !te.Retryable() {
			continue // credential rejection: never retried
		}
		if _, ok := err.(*ConfigError); ok {
			continue // configuration error: never retried
		}
		failedIdx = append(failedIdx, i)
	}

	remoteCount := 0
	for _, r := range dedup {
		if giturl.IsRemoteURL(giturl.NormaliseURL(r.URL)) {
			remoteCount++
		}
	}

	if len(failedIdx) > 0 && remoteCount > 1 {
		m.log.Info("retrying failed repositories serially", "count", len(failedIdx))
		retryReqs := make([]Request, len(failedIdx))
		for i, idx := range failedIdx {
			retryReqs[i] = dedup[idx]
		}
		retryResults := make([]*Repository, len(retryReqs))
		retryErrs := make([]error, len(retryReqs))
		m.runBatch(ctx, fetch, retryReqs, retryResults, retryErrs, 1)
		for i, idx := range failedIdx {
			results[idx] = retryResults[i]
			errs[idx] = retryErrs[i]
		}
	}

	var out []*Repository
	var firstErr error
	for i, repo := range results {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		out = append(out, repo)
	}
	return out, firstErr
}

func (m *Manager) dedupe(reqs []Request) []Request {
	seen := make(map[string]bool, len(reqs))
	var out []Request
	for _, r := range reqs {
		key := giturl.NormaliseURL(r.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func (m *Manager) runBatch(ctx context.Context, fetch bool, reqs []Request, results []*Repository, errs []error, concurrency int) {
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i, req := range reqs {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			defer sem.Release(1)
			repo, err := m.ensureOne(ctx, fetch, req)
			results[i] = repo
			errs[i] = err
		}(i, req)
	}
	wg.Wait()

	for i, repo := range results {
		if repo == nil || errs[i] != nil {
			continue
		}
		m.mu.Lock()
		m.resolved[giturl.NormaliseURL(reqs[i].URL)] = repo
		m.mu.Unlock()
	}
}
