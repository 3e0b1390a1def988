package giturl

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantScheme Scheme
		wantHost   string
		wantRepo   string
		wantErr    bool
	}{
		{"https", "https://github.com/org/repo.git", SchemeHTTPS, "github.com", "repo.git", false},
		{"https no suffix", "https://github.com/org/repo", SchemeHTTPS, "github.com", "repo", false},
		{"scp", "git@github.com:org/repo.git", SchemeSCP, "github.com", "repo.git", false},
		{"ssh", "ssh://git@github.com/org/repo.git", SchemeSSH, "github.com", "repo.git", false},
		{"file url", "file:///srv/repos/docs.git", SchemeLocal, "", "docs.git", false},
		{"local path", "/srv/repos/docs.git", SchemeLocal, "", "docs.git", false},
		{"invalid", "not a url at all", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Scheme != tt.wantScheme {
				t.Errorf("scheme = %q, want %q", got.Scheme, tt.wantScheme)
			}
			if got.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", got.Host, tt.wantHost)
			}
			if got.Repo != tt.wantRepo {
				t.Errorf("repo = %q, want %q", got.Repo, tt.wantRepo)
			}
		})
	}
}

func TestEquals(t *testing.T) {
	a, _ := Parse("https://github.com/org/repo.git")
	b, _ := Parse("git@github.com:org/repo.git")
	if !a.Equals(b) {
		t.Fatalf("scp and https URLs for the same repo should be equal regardless of scheme")
	}

	c, _ := Parse("https://github.com/org/repo.git")
	if !a.Equals(c) {
		t.Fatalf("identical https URLs should be equal")
	}
}

func TestCacheDirNameStable(t *testing.T) {
	n1 := CacheDirName("https://github.com/org/repo.git")
	n2 := CacheDirName("HTTPS://GITHUB.COM/org/repo/")
	if n1 != n2 {
		t.Fatalf("cache dir name should be stable across case/trailing-slash/.git variance: %q != %q", n1, n2)
	}
	if n1 == "" {
		t.Fatalf("cache dir name must not be empty")
	}
}

func TestEnsureGitSuffix(t *testing.T) {
	if got := EnsureGitSuffix("https://github.com/org/repo", true); got != "https://github.com/org/repo.git" {
		t.Errorf("got %q", got)
	}
	if got := EnsureGitSuffix("https://github.com/org/repo", false); got != "https://github.com/org/repo" {
		t.Errorf("got %q", got)
	}
	if got := EnsureGitSuffix("/local/path", true); got != "/local/path" {
		t.Errorf("local paths must not gain a .git suffix, got %q", got)
	}
}

func TestCoerceSCPToHTTPS(t *testing.T) {
	got := CoerceSCPToHTTPS("git@github.com:org/repo.git")
	want := "https://github.com/org/repo.git"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
