package aggregate

import (
	"fmt"
	"path"
	"strings"

	"github.com/tina25311/docaggr/auth"
	"github.com/tina25311/docaggr/giturl"
	"github.com/tina25311/docaggr/refselect"
	"github.com/tina25311/docaggr/repomanager"
)

// BuildOrigin assembles one Origin per spec.md §4.6, one call per
// (repository, ref, startPath) triple. private is the credential-origin
// marker auth.Resolve produced for this repository's URL, threaded through
// rather than re-derived here. editURLOverride is source.Source.EditURL.
func BuildOrigin(repo *repomanager.Repository, ref refselect.Ref, startPath string, private auth.Origin, editURLOverride any) (Origin, error) {
	sanitizedURL := sanitizeGitURL(repo.URL)

	webURL := ""
	if !repo.URL.IsLocal() {
		webURL = strings.TrimSuffix(sanitizedURL, ".git")
	}

	var worktree any
	switch {
	case repo.Local && !repo.Bare:
		worktree = repo.Dir
	case ref.WorktreePath != "":
		worktree = ref.WorktreePath
	default:
		worktree = false
	}

	fileURIPattern := ""
	if wtPath, ok := worktree.(string); ok {
		base := wtPath
		if startPath != "" {
			base = path.Join(wtPath, startPath)
		}
		fileURIPattern = "file://" + base + "/%s"
	}

	branch, tag := "", ""
	switch ref.Type {
	case refselect.TypeBranch:
		branch = ref.Shortname
	case refselect.TypeTag:
		tag = ref.Shortname
	}

	editURLPattern, err := ComputeEditURLPattern(webURL, ref.Shortname, branch, tag, ref.OID, editURLOverride)
	if err != nil {
		return Origin{}, fmt.Errorf("unable to compute edit url for %s: %w", sanitizedURL, err)
	}

	return Origin{
		Type:      "git",
		URL:       sanitizedURL,
		WebURL:    webURL,
		GitDir:    repo.Dir,
		Refname:   ref.Shortname,
		Reftype:   string(ref.Type),
		Branch:    branch,
		Tag:       tag,
		StartPath: startPath,
		Refhash:   ref.OID,

		Worktree: worktree,

		Remote:         repo.Remote,
		FileURIPattern: fileURIPattern,
		EditURLPattern: editURLPattern,
		Private:        private,
	}, nil
}

// sanitizeGitURL renders a parsed, credential-free giturl.URL back into a
// display string (spec.md §4.6 origin.url; §8 credential scrubbing), always
// through the parsed URL rather than echoing the original raw string so
// userinfo embedded in it can never leak.
func sanitizeGitURL(u *giturl.URL) string {
	if u == nil {
		return ""
	}
	if u.IsLocal() {
		return "file://" + u.Path
	}

	full := u.Repo
	if u.Path != "" {
		full = u.Path + "/" + full
	}

	scheme := "https"
	if u.Scheme == giturl.SchemeSSH || u.Scheme == giturl.SchemeSCP {
		scheme = "ssh"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, u.Host, full)
}

// EditURL computes src.editUrl for one file within origin (spec.md §3).
func EditURL(origin Origin, filePath string) string {
	return ExpandEditURL(origin.EditURLPattern, filePath)
}

// FileURI computes src.fileUri for one file within origin (spec.md §3),
// empty unless origin.worktree carries a real disk path.
func FileURI(origin Origin, filePath string) string {
	if origin.FileURIPattern == "" {
		return ""
	}
	return fmt.Sprintf(origin.FileURIPattern, filePath)
}
