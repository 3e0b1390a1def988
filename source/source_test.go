package source

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tina25311/docaggr/config"
)

func TestSplitCSVSimple(t *testing.T) {
	got := splitCSV("v1,v2,v3")
	want := []string{"v1", "v2", "v3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitCSVBraceKeepsCommaIntact(t *testing.T) {
	got := splitCSV("v{1,2,3}.x, v4")
	// splitCSV does not trim; NormalizeList trims each part afterwards.
	want := []string{"v{1,2,3}.x", " v4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitCSVUnbalancedFallsBackToCommaWhitespace(t *testing.T) {
	got := splitCSV("v{1,2, v3")
	want := []string{"v{1,2", "v3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeListFlattensAndTrims(t *testing.T) {
	got := NormalizeList([]string{"v1, v2", "v3"})
	want := []string{"v1", "v2", "v3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeList() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeStartPath(t *testing.T) {
	cases := map[string]string{
		"/docs/":    "docs",
		"//a//b///": "a/b",
		"docs":      "docs",
	}
	for in, want := range cases {
		if got := normalizeStartPath(in); got != want {
			t.Errorf("normalizeStartPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveRemoteURLGetsGitSuffix(t *testing.T) {
	src, err := Resolve(config.Source{URL: "https://github.com/org/repo"}, "", nil, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.URL != "https://github.com/org/repo.git" {
		t.Errorf("got %q", src.URL)
	}
}

func TestResolveUsesContentDefaultsWhenSourceOmitsBranches(t *testing.T) {
	src, err := Resolve(config.Source{URL: "https://github.com/org/repo.git"}, "", []string{"main"}, []string{"v*"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"main"}, src.Branches); diff != "" {
		t.Errorf("branches mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"v*"}, src.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMissingURLIsError(t *testing.T) {
	_, err := Resolve(config.Source{}, "", nil, nil, true)
	if err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestResolveLocalPathExpandsAgainstPlaybookDir(t *testing.T) {
	src, err := Resolve(config.Source{URL: "docs-repo"}, "/srv/playbook", nil, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.URL != "/srv/playbook/docs-repo" {
		t.Errorf("got %q", src.URL)
	}
}
