package aggregate

import (
	"os"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/tina25311/docaggr/auth"
	"github.com/tina25311/docaggr/giturl"
	"github.com/tina25311/docaggr/refselect"
	"github.com/tina25311/docaggr/repomanager"
	"github.com/tina25311/docaggr/source"
	"github.com/tina25311/docaggr/treereader"
)

func TestSplitDescriptorFindsAntoraYML(t *testing.T) {
	files := []treereader.File{
		{Path: "antora.yml", Contents: []byte("name: the-component\ntitle: The Component\n")},
		{Path: "modules/ROOT/pages/index.adoc", Contents: []byte("= Index")},
	}

	d, content, err := splitDescriptor(files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "the-component" || d.Title != "The Component" {
		t.Errorf("got descriptor %+v", d)
	}
	if len(content) != 1 || content[0].Path != "modules/ROOT/pages/index.adoc" {
		t.Errorf("expected antora.yml excluded from published files, got %v", content)
	}
}

func TestSplitDescriptorMissingIsError(t *testing.T) {
	_, _, err := splitDescriptor([]treereader.File{{Path: "modules/ROOT/pages/index.adoc"}})
	if err == nil {
		t.Fatal("expected an error when antora.yml is absent")
	}
}

func TestToVirtualFileComputesPathParts(t *testing.T) {
	f := treereader.File{Path: "modules/ROOT/pages/index.adoc", Contents: []byte("= Index")}
	origin := Origin{Worktree: "/repos/docs", FileURIPattern: "file:///repos/docs/%s", EditURLPattern: "https://example.com/edit/main/{path}"}

	vf := toVirtualFile(f, origin)
	if vf.Dirname != "modules/ROOT/pages" || vf.Basename != "index.adoc" || vf.Stem != "index" || vf.Extname != ".adoc" {
		t.Errorf("got dirname=%q basename=%q stem=%q extname=%q", vf.Dirname, vf.Basename, vf.Stem, vf.Extname)
	}
	if vf.Src.AbsPath != "/repos/docs/modules/ROOT/pages/index.adoc" {
		t.Errorf("absPath: got %q", vf.Src.AbsPath)
	}
	if vf.Src.FileURI != "file:///repos/docs/modules/ROOT/pages/index.adoc" {
		t.Errorf("fileUri: got %q", vf.Src.FileURI)
	}
	if vf.Src.EditURL != "https://example.com/edit/main/modules/ROOT/pages/index.adoc" {
		t.Errorf("editUrl: got %q", vf.Src.EditURL)
	}
}

func TestResolveStartPathsDefaultsToRoot(t *testing.T) {
	paths, err := resolveStartPaths(nil, &source.Source{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 1 || paths[0] != "" {
		t.Errorf("expected a single root start path, got %v", paths)
	}
}

// newLocalRepo creates a real on-disk, non-bare git repository committing
// files at its root, returning its directory and HEAD commit.
func newLocalRepo(t *testing.T, files map[string]string) (string, *object.Commit) {
	t.Helper()

	dir, err := os.MkdirTemp("", "aggregate-repo")
	if err != nil {
		t.Fatalf("unable to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	r, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("unable to init repo: %v", err)
	}
	wt, err := r.Worktree()
	if err != nil {
		t.Fatalf("unable to get worktree: %v", err)
	}

	for name, contents := range files {
		full := dir + "/" + name
		if err := os.MkdirAll(dirOf(full), 0o755); err != nil {
			t.Fatalf("unable to mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
			t.Fatalf("unable to write %s: %v", name, err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("unable to stage %s: %v", name, err)
		}
	}

	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit("initial", &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatalf("unable to commit: %v", err)
	}
	commit, err := r.CommitObject(hash)
	if err != nil {
		t.Fatalf("unable to load commit: %v", err)
	}
	return dir, commit
}

func dirOf(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}
	if i < 0 {
		return "."
	}
	return p[:i]
}

func TestProcessRefLocalWorktreeStartPathBrace(t *testing.T) {
	dir, _ := newLocalRepo(t, map[string]string{
		"docs/antora.yml":                     "name: docs-component\ntitle: Docs\nversion: '1.0'\n",
		"docs/modules/ROOT/pages/index.adoc": "= Docs",
		"moredocs/antora.yml":                     "name: moredocs-component\ntitle: More Docs\nversion: '1.0'\n",
		"moredocs/modules/ROOT/pages/index.adoc": "= More docs",
	})

	repo := &repomanager.Repository{URL: &giturl.URL{Scheme: giturl.SchemeLocal, Path: dir}, Dir: dir, Local: true, Bare: false}
	ref := refselect.Ref{Type: refselect.TypeBranch, Shortname: "master", Fullname: "refs/heads/master"}

	agg := NewAggregator()
	src := &source.Source{StartPaths: []string{"{docs,moredocs}"}}

	if err := processRef(agg, repo, nil, src, ref, auth.OriginNone, func(Event) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buckets := agg.Buckets()
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}

	names := map[string]string{}
	for _, b := range buckets {
		names[b.Name] = b.Origins[0].StartPath
	}
	if names["docs-component"] != "docs" {
		t.Errorf("expected docs-component origin startPath=docs, got %q", names["docs-component"])
	}
	if names["moredocs-component"] != "moredocs" {
		t.Errorf("expected moredocs-component origin startPath=moredocs, got %q", names["moredocs-component"])
	}
}

func TestProcessRefLocalWorktree(t *testing.T) {
	dir, _ := newLocalRepo(t, map[string]string{
		"antora.yml":                     "name: the-component\ntitle: The Component\nversion: '1.0'\n",
		"modules/ROOT/pages/index.adoc": "= Index",
	})

	u := &giturl.URL{Scheme: giturl.SchemeLocal, Path: dir}
	repo := &repomanager.Repository{URL: u, Dir: dir, Local: true, Bare: false}
	ref := refselect.Ref{Type: refselect.TypeBranch, Shortname: "master", Fullname: "refs/heads/master"}

	agg := NewAggregator()
	src := &source.Source{}

	if err := processRef(agg, repo, nil, src, ref, auth.OriginNone, func(Event) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buckets := agg.Buckets()
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if b.Name != "the-component" || b.Version != "1.0" || b.Title != "The Component" {
		t.Errorf("got bucket %+v", b)
	}
	if len(b.Files) != 1 || b.Files[0].Path != "modules/ROOT/pages/index.adoc" {
		t.Errorf("got files %v", b.Files)
	}
	if b.Origins[0].Worktree != dir {
		t.Errorf("expected worktree=%q, got %v", dir, b.Origins[0].Worktree)
	}
}
