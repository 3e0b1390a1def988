package repomanager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tina25311/docaggr/auth"
	"github.com/tina25311/docaggr/giturl"
	"github.com/tina25311/docaggr/internal/gitexec"
)

const (
	validSentinel  = "valid"
	defaultRefSpec = "+refs/*:refs/*"
)

// ensureOne resolves a single request to a Repository, performing the
// clone/fetch lifecycle steps of spec.md §4.2.
func (m *Manager) ensureOne(ctx context.Context, fetch bool, req Request) (*Repository, error) {
	rawURL := strings.TrimRight(strings.TrimSpace(req.URL), "/")
	if giturl.IsRemoteURL(giturl.NormaliseURL(rawURL)) {
		rawURL = giturl.CoerceSCPToHTTPS(giturl.NormaliseURL(rawURL))
	}
	rawURL = giturl.EnsureGitSuffix(rawURL, req.EnsureGitSuffix)

	gURL, err := giturl.Parse(rawURL)
	if err != nil {
		return nil, &ConfigError{URL: req.URL, Err: err}
	}

	log := m.log.With("repo", gURL.Repo)

	if gURL.IsLocal() {
		return m.ensureLocal(gURL, rawURL, req, log)
	}
	return m.ensureRemote(ctx, fetch, gURL, rawURL, req, log)
}

func (m *Manager) ensureLocal(gURL *giturl.URL, rawURL string, req Request, log *slog.Logger) (*Repository, error) {
	info, err := m.plugins.FS.Stat(gURL.Path)
	if err != nil {
		return nil, &ConfigError{URL: req.URL, Err: fmt.Errorf("local content source does not exist: %w", err)}
	}
	if !info.IsDir() {
		return nil, &ConfigError{URL: req.URL, Err: fmt.Errorf("local content source is not a directory: %s", gURL.Path)}
	}

	bare := strings.HasSuffix(gURL.Path, string(filepath.Separator)+".git") || strings.HasSuffix(gURL.Path, ".git")
	if !bare {
		if _, err := os.Stat(filepath.Join(gURL.Path, ".git")); err != nil {
			bare = true // no working tree alongside it: treat the dir itself as bare
		}
	}

	return &Repository{
		URL:    gURL,
		Remote: rawURL,
		Dir:    gURL.Path,
		Bare:   bare,
		Local:  true,
		Auth:   req.Auth,
		log:    log,
	}, nil
}

func (m *Manager) ensureRemote(ctx context.Context, fetch bool, gURL *giturl.URL, rawURL string, req Request, log *slog.Logger) (*Repository, error) {
	dir := filepath.Join(m.contentDir, giturl.CacheDirName(rawURL))

	envs := authEnvs(rawURL, req.Auth)

	valid := m.hasValidSentinel(dir) && SanityCheck(ctx, dir, rawURL, log)

	if !valid {
		if err := m.plugins.FS.RemoveAll(dir); err != nil {
			return nil, &ConfigError{URL: req.URL, Err: err}
		}
		if err := m.cloneBare(ctx, dir, rawURL, envs, log); err != nil {
			return nil, classifyTransportError(req.URL, err)
		}
		if err := m.writeValidSentinel(dir); err != nil {
			return nil, &ConfigError{URL: req.URL, Err: err}
		}
	} else if fetch {
		if err := m.fetchBare(ctx, dir, req.WantTags, envs, log); err != nil {
			return nil, classifyTransportError(req.URL, err)
		}
		if err := m.writeValidSentinel(dir); err != nil {
			return nil, &ConfigError{URL: req.URL, Err: err}
		}
		if err := m.runCleanup(ctx, dir, log); err != nil {
			log.Error("post-fetch cleanup failed", "err", err)
		}
	}

	return &Repository{
		URL:    gURL,
		Remote: rawURL,
		Dir:    dir,
		Bare:   true,
		Local:  false,
		Auth:   req.Auth,
		log:    log,
	}, nil
}

func authEnvs(rawURL string, creds auth.Credentials) []string {
	if giturl.IsSCPURL(rawURL) || giturl.IsSSHURL(rawURL) {
		return []string{auth.SSHCommand(creds)}
	}
	return nil
}

func (m *Manager) hasValidSentinel(dir string) bool {
	_, err := m.plugins.FS.Stat(filepath.Join(dir, validSentinel))
	return err == nil
}

func (m *Manager) writeValidSentinel(dir string) error {
	return os.WriteFile(filepath.Join(dir, validSentinel), nil, 0o644)
}

// cloneBare creates the bare mirror cache directory and clones into it,
// removing the partially created directory on any failure (spec.md §4.2
// step 2).
func (m *Manager) cloneBare(ctx context.Context, dir, remote string, envs []string, log *slog.Logger) error {
	if err := m.plugins.FS.MkdirAll(dir, defaultDirMode); err != nil {
		return fmt.Errorf("unable to create cache dir: %w", err)
	}

	if _, err := gitexec.Run(ctx, log, nil, dir, "init", "-q", "--bare"); err != nil {
		_ = m.plugins.FS.RemoveAll(dir)
		return err
	}

	if _, err := gitexec.Run(ctx, log, nil, dir, "remote", "add", "--mirror=fetch", "origin", remote); err != nil {
		_ = m.plugins.FS.RemoveAll(dir)
		return err
	}

	if _, err := gitexec.Run(ctx, log, envs, dir, "fetch", "origin", "--no-progress", "--no-auto-gc"); err != nil {
		_ = m.plugins.FS.RemoveAll(dir)
		return err
	}

	return nil
}

// fetchBare updates every remote-tracked ref and prunes refs deleted on the
// remote (spec.md §4.2 step 3). When the source requests tags, --tags fetches
// every tag from the remote; the source's tag filter is not applied here.
func (m *Manager) fetchBare(ctx context.Context, dir string, wantTags bool, envs []string, log *slog.Logger) error {
	args := []string{"fetch", "origin", "--prune", "--no-progress", "--no-auto-gc"}
	if wantTags {
		args = append(args, "--tags")
	}
	_, err := gitexec.Run(ctx, log, envs, dir, args...)
	return err
}

func (m *Manager) runCleanup(ctx context.Context, dir string, log *slog.Logger) error {
	if _, err := gitexec.Run(ctx, log, nil, dir, "reflog", "expire", "--expire-unreachable=all", "--all"); err != nil {
		return err
	}
	if m.gitGC == GCOff {
		return nil
	}
	args := []string{"gc"}
	switch m.gitGC {
	case GCAuto:
		args = append(args, "--auto")
	case GCAggressive:
		args = append(args, "--aggressive")
	}
	_, err := gitexec.Run(ctx, log, nil, dir, args...)
	return err
}

// SanityCheck verifies dir is a usable bare mirror of remote (ported from
// the teacher's init()/sanityCheckRepo): bare, non-empty, tracking the
// expected remote with the expected mirror refspec, and passing a
// connectivity-only fsck. ensureRemote runs it alongside the valid sentinel
// before trusting a cache entry as-is, recreating the clone from scratch on
// any mismatch.
func SanityCheck(ctx context.Context, dir, remote string, log *slog.Logger) bool {
	empty, err := gitexec.DirIsEmpty(dir)
	if err != nil || empty {
		return false
	}
	if ok, err := gitexec.Run(ctx, log, nil, dir, "rev-parse", "--is-bare-repository"); err != nil || ok != "true" {
		return false
	}
	if stdout, err := gitexec.Run(ctx, log, nil, dir, "config", "--get", "remote.origin.url"); err != nil || stdout != remote {
		return false
	}
	if stdout, err := gitexec.Run(ctx, log, nil, dir, "config", "--get", "remote.origin.fetch"); err != nil || stdout != defaultRefSpec {
		return false
	}
	_, err = gitexec.Run(ctx, log, nil, dir, "fsck", "--no-progress", "--connectivity-only")
	return err == nil
}
