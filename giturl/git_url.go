// Package giturl parses and normalizes the git URLs accepted by a content
// source: scp-like (user@host:path), ssh://, https:// and local filesystem
// paths (including file:// and bare ".git" directories).
package giturl

import (
	"crypto/sha1"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// user@host.xz:path/to/repo.git
	scpURLRgx = regexp.MustCompile(`^(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?):(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// ssh://user@host.xz[:port]/path/to/repo.git
	sshURLRgx = regexp.MustCompile(`^ssh://(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// https://host.xz[:port]/path/to/repo.git
	httpsURLRgx = regexp.MustCompile(`^https?://(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// file:///path/to/repo.git
	fileURLRgx = regexp.MustCompile(`^file://(?P<path>/.*)$`)
)

// Scheme identifies the shape a URL was parsed from.
type Scheme string

const (
	SchemeSCP   Scheme = "scp"
	SchemeSSH   Scheme = "ssh"
	SchemeHTTPS Scheme = "https"
	SchemeLocal Scheme = "local"
)

// URL represents a parsed content-source URL, stripped of credentials.
type URL struct {
	Scheme Scheme
	User   string // embedded username, if any (never the password)
	Host   string // host or host:port, empty for local
	Path   string // path to the repo, for local URLs this is the filesystem path
	Repo   string // repo name including .git suffix where applicable
}

// NormaliseURL lower-cases and trims a raw URL the way the Ref Selector and
// cache-dir naming rules expect (spec.md §4.2, §8 cache idempotence).
func NormaliseURL(raw string) string {
	n := strings.ToLower(strings.TrimSpace(raw))
	n = strings.TrimRight(n, "/")
	return n
}

// IsSCPURL returns true if rawURL matches the scp-like syntax.
func IsSCPURL(rawURL string) bool { return scpURLRgx.MatchString(rawURL) }

// IsSSHURL returns true if rawURL is an explicit ssh:// URL.
func IsSSHURL(rawURL string) bool { return sshURLRgx.MatchString(rawURL) }

// IsHTTPSURL returns true if rawURL is an http(s):// URL.
func IsHTTPSURL(rawURL string) bool { return httpsURLRgx.MatchString(rawURL) }

// IsRemoteURL returns true for any URL shape that requires network access.
func IsRemoteURL(rawURL string) bool {
	return IsSCPURL(rawURL) || IsSSHURL(rawURL) || IsHTTPSURL(rawURL)
}

// CoerceSCPToHTTPS rewrites an implicit scp-style SSH URL to https://, per
// spec.md §4.2 ("Implicit scp SSH is coerced to https://host/path.git").
func CoerceSCPToHTTPS(rawURL string) string {
	if !IsSCPURL(rawURL) {
		return rawURL
	}
	m := scpURLRgx.FindStringSubmatch(rawURL)
	host := m[scpURLRgx.SubexpIndex("host")]
	path := m[scpURLRgx.SubexpIndex("path")]
	repo := m[scpURLRgx.SubexpIndex("repo")]
	return fmt.Sprintf("https://%s/%s%s", host, path, repo)
}

// ExpandLocalPath resolves the dot-relative / ~ / ~+ rules from spec.md
// §4.1 against the playbook directory (or cwd if playbookDir is empty).
func ExpandLocalPath(raw, playbookDir string) (string, error) {
	switch {
	case raw == "~" || strings.HasPrefix(raw, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			if u, uerr := user.Current(); uerr == nil {
				home = u.HomeDir
			} else {
				return "", fmt.Errorf("unable to resolve home directory: %w", err)
			}
		}
		return filepath.Join(home, strings.TrimPrefix(raw, "~")), nil
	case raw == "~+" || strings.HasPrefix(raw, "~+/"):
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, strings.TrimPrefix(raw, "~+")), nil
	case filepath.IsAbs(raw):
		return raw, nil
	default:
		base := playbookDir
		if base == "" {
			var err error
			base, err = os.Getwd()
			if err != nil {
				return "", err
			}
		}
		return filepath.Join(base, raw), nil
	}
}

// Parse parses a raw content-source URL into a URL, recognizing scp, ssh,
// https, file:// and plain local filesystem paths.
func Parse(rawURL string) (*URL, error) {
	raw := NormaliseURL(rawURL)
	local := strings.TrimRight(strings.TrimSpace(rawURL), "/")

	switch {
	case IsSCPURL(raw):
		m := scpURLRgx.FindStringSubmatch(raw)
		return &URL{
			Scheme: SchemeSCP,
			User:   m[scpURLRgx.SubexpIndex("user")],
			Host:   m[scpURLRgx.SubexpIndex("host")],
			Path:   strings.Trim(m[scpURLRgx.SubexpIndex("path")], "/"),
			Repo:   m[scpURLRgx.SubexpIndex("repo")],
		}, nil
	case IsSSHURL(raw):
		m := sshURLRgx.FindStringSubmatch(raw)
		return &URL{
			Scheme: SchemeSSH,
			User:   m[sshURLRgx.SubexpIndex("user")],
			Host:   m[sshURLRgx.SubexpIndex("host")],
			Path:   strings.Trim(m[sshURLRgx.SubexpIndex("path")], "/"),
			Repo:   m[sshURLRgx.SubexpIndex("repo")],
		}, nil
	case IsHTTPSURL(raw):
		m := httpsURLRgx.FindStringSubmatch(raw)
		return &URL{
			Scheme: SchemeHTTPS,
			Host:   m[httpsURLRgx.SubexpIndex("host")],
			Path:   strings.Trim(m[httpsURLRgx.SubexpIndex("path")], "/"),
			Repo:   m[httpsURLRgx.SubexpIndex("repo")],
		}, nil
	case fileURLRgx.MatchString(raw):
		p := local[len("file://"):]
		return &URL{Scheme: SchemeLocal, Path: p, Repo: filepath.Base(p)}, nil
	case strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "."):
		return &URL{Scheme: SchemeLocal, Path: local, Repo: filepath.Base(strings.TrimSuffix(local, "/"))}, nil
	default:
		return nil, fmt.Errorf("provided '%s' remote url is invalid, supported urls are "+
			"'user@host.xz:path/to/repo.git', 'ssh://user@host.xz/path/to/repo.git', "+
			"'https://host.xz/path/to/repo.git' or a local filesystem path", rawURL)
	}
}

// Equals returns whether two parsed URLs address the same repository.
func (u *URL) Equals(o *URL) bool {
	if u == nil || o == nil {
		return u == o
	}
	if u.Scheme == SchemeLocal || o.Scheme == SchemeLocal {
		return u.Scheme == o.Scheme && u.Path == o.Path
	}
	return u.Host == o.Host && u.Path == o.Path && u.Repo == o.Repo
}

// IsLocal returns true if the URL addresses a path on the local filesystem.
func (u *URL) IsLocal() bool { return u.Scheme == SchemeLocal }

// EnsureGitSuffix appends ".git" to a remote URL unless it already carries
// it, per spec.md §4.1 ("Appends .git suffix to remote URLs unless
// ensureGitSuffix is disabled"). Local URLs are left untouched.
func EnsureGitSuffix(rawURL string, enabled bool) string {
	if !enabled || !IsRemoteURL(rawURL) {
		return rawURL
	}
	if strings.HasSuffix(rawURL, ".git") {
		return rawURL
	}
	return rawURL + ".git"
}

// CacheDirName computes the stable on-disk cache directory name for a
// remote URL: basename(url) + "-" + sha1(normalized, stripped) + ".git",
// per spec.md §4.2 and the §8 cache-idempotence property.
func CacheDirName(rawURL string) string {
	n := NormaliseURL(rawURL)
	n = strings.TrimSuffix(n, ".git")
	n = strings.TrimRight(n, "/")

	sum := sha1.Sum([]byte(n))

	base := n
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, ":"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".git")

	return fmt.Sprintf("%s-%x.git", base, sum)
}
