package pattern

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExpandBracesSet(t *testing.T) {
	got, err := ExpandBraces("v{1,2,3}.x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"v1.x", "v2.x", "v3.x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExpandBraces() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandBracesRange(t *testing.T) {
	got, err := ExpandBraces("release-{1..3}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"release-1", "release-2", "release-3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExpandBraces() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandBracesSteppedRange(t *testing.T) {
	got, err := ExpandBraces("v{1..9..2}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"v1", "v3", "v5", "v7", "v9"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExpandBraces() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandBracesNested(t *testing.T) {
	got, err := ExpandBraces("{a,b{1,2}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b1", "b2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExpandBraces() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandBracesNoBraces(t *testing.T) {
	got, err := ExpandBraces("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"main"}, got); diff != "" {
		t.Errorf("ExpandBraces() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandBracesUnbalanced(t *testing.T) {
	if _, err := ExpandBraces("v{1,2"); err == nil {
		t.Fatalf("expected error for unbalanced brace")
	}
}

func TestCompileWildcard(t *testing.T) {
	m, err := Compile("v*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Match("v1.0") {
		t.Errorf("expected v* to match v1.0")
	}
	if m.Match("release/v1.0") {
		t.Errorf("single '*' should not cross '/' segments")
	}
}

func TestCompileDoubleStarCrossesSlash(t *testing.T) {
	m, err := Compile("release/**")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Match("release/1.0/final") {
		t.Errorf("'**' should cross '/' segments")
	}
}

func TestCompileQuestionMark(t *testing.T) {
	m, err := Compile("v?.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Match("v1.0") {
		t.Errorf("expected match")
	}
	if m.Match("v10.0") {
		t.Errorf("'?' must match exactly one character")
	}
}

func TestCompileExtglobAtLeastOne(t *testing.T) {
	m, err := Compile("+(v)1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Match("v1.0") || !m.Match("vv1.0") {
		t.Errorf("+() should match one or more repeats")
	}
	if m.Match("1.0") {
		t.Errorf("+() requires at least one repeat")
	}
}

func TestCompileExtglobOptional(t *testing.T) {
	m, err := Compile("v?(ersion-)1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Match("v1.0") {
		t.Errorf("?() alternative is optional, expected match")
	}
	if !m.Match("version-1.0") {
		t.Errorf("expected optional group to match when present")
	}
}

func TestCompileExtglobNegate(t *testing.T) {
	m, err := Compile("!(main|master)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Match("main") || m.Match("master") {
		t.Errorf("!(...) must not match the listed alternatives")
	}
	if !m.Match("develop") {
		t.Errorf("!(...) should match anything else")
	}
}

func TestDigitLeadingPatternAnchored(t *testing.T) {
	// A version-like pattern beginning with a digit must not be
	// mistaken for (or mis-anchored against) a numeric range.
	m, err := Compile("2.x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Match("2.x") {
		t.Errorf("expected literal match")
	}
	if m.Match("2.xsomething") || m.Match("a2.x") {
		t.Errorf("pattern must be fully anchored")
	}
}

func TestListIncludeExcludeOrdering(t *testing.T) {
	l, err := NewList([]string{"v*", "!v2.*"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Match("v1.0") {
		t.Errorf("v1.0 should be included")
	}
	if l.Match("v2.0") {
		t.Errorf("v2.0 should be excluded after matching the include")
	}
}

func TestListExcludeWithoutPriorIncludeIsNoop(t *testing.T) {
	l, err := NewList([]string{"!main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Match("main") {
		t.Errorf("a bare exclude with no prior include must not itself match")
	}
	if l.Match("develop") {
		t.Errorf("develop was never included")
	}
}

func TestListBraceExpansionOfRawPattern(t *testing.T) {
	l, err := NewList([]string{"release-{1..3}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"release-1", "release-2", "release-3"} {
		if !l.Match(name) {
			t.Errorf("expected %q to match", name)
		}
	}
	if l.Match("release-4") {
		t.Errorf("release-4 is out of range")
	}
}

func TestListFilterPreservesOrder(t *testing.T) {
	l, err := NewList([]string{"v*"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := l.Filter([]string{"main", "v1.0", "v2.0", "other"})
	want := []string{"v1.0", "v2.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}

func TestListEmpty(t *testing.T) {
	l, err := NewList(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Empty() {
		t.Errorf("expected empty list")
	}
	if l.Match("anything") {
		t.Errorf("empty list matches nothing")
	}
}

func TestCompileSegmentAnchoring(t *testing.T) {
	re, err := CompileSegment("mod*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !re.MatchString("modules") {
		t.Errorf("expected modules to match")
	}
	if re.MatchString("xmodules") {
		t.Errorf("pattern must anchor to the full segment")
	}
}

func TestHasMeta(t *testing.T) {
	cases := map[string]bool{
		"plain":        false,
		"modules/abc":  false,
		"mod*":         true,
		"rel-{1,2}":    true,
		"v?.x":         true,
		"a+(b)c":       true,
		"x!(y)z":       true,
	}
	for in, want := range cases {
		if got := HasMeta(in); got != want {
			t.Errorf("HasMeta(%q) = %v, want %v", in, got, want)
		}
	}
}
