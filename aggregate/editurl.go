package aggregate

import (
	"fmt"
	"net/url"
	"strings"
)

// ComputeEditURLPattern builds origin.editUrlPattern (spec.md §4.6): a host
// template keyed off webUrl's hostname, or the source's editUrl override
// when one is given. The returned pattern still contains a literal
// "{path}" token -- per-file substitution happens later, once the file's
// relative path is known (ExpandEditURL).
//
// override is source.Source.EditURL (string | bool | nil, via
// config.ParseNode): a string is a token-substitution template, false
// disables edit URLs outright, nil/unset selects the host template (or no
// edit URL at all for an unrecognized host).
func ComputeEditURLPattern(webURL, refname, branch, tag, refhash string, override any) (string, error) {
	var tmpl string
	switch v := override.(type) {
	case bool:
		if !v {
			return "", nil
		}
		return "", fmt.Errorf("unsupported edit_url value: true")
	case string:
		tmpl = v
	case nil:
		if webURL == "" {
			return "", nil
		}
		tmpl = hostEditURLTemplate(webURL)
		if tmpl == "" {
			return "", nil
		}
	default:
		return "", fmt.Errorf("unsupported edit_url value %v (%T)", v, v)
	}

	repl := strings.NewReplacer(
		"{web_url}", webURL,
		"{refname}", refname,
		"{refhash}", refhash,
		"{branch}", branch,
		"{tag}", tag,
	)
	return repl.Replace(tmpl), nil
}

// ExpandEditURL fills in the "{path}" token left in pattern by
// ComputeEditURLPattern, yielding src.editUrl for one file. An empty
// pattern (no host template matched, no override given) yields "".
func ExpandEditURL(pattern, path string) string {
	if pattern == "" {
		return ""
	}
	return strings.ReplaceAll(pattern, "{path}", path)
}

// hostEditURLTemplate returns the branch/tag-agnostic edit-URL template for
// the handful of hosts spec.md §4.6 names, or "" for anything else -- an
// unrecognized host gets no editUrlPattern unless the source overrides it.
func hostEditURLTemplate(webURL string) string {
	host := strings.ToLower(webURLHostname(webURL))
	switch {
	case strings.Contains(host, "github"):
		return "{web_url}/edit/{refname}/{path}"
	case strings.Contains(host, "gitlab"):
		return "{web_url}/-/edit/{refname}/{path}"
	case strings.Contains(host, "bitbucket"):
		return "{web_url}/src/{refhash}/{path}?at={refname}&mode=edit"
	case strings.Contains(host, "pagure"):
		return "{web_url}/edit/{refname}/f/{path}"
	default:
		return ""
	}
}

func webURLHostname(webURL string) string {
	u, err := url.Parse(webURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
