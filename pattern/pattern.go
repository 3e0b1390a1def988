// Package pattern implements the brace/extglob/range ref-pattern matcher
// used by the Ref Selector (spec.md §4.3) and the Start Path Resolver
// (spec.md §4.4). It is hand-rolled rather than built on an existing
// globbing library per spec.md §9's explicit design note: host glob
// libraries disagree on anchoring and on numeric-range semantics (a
// pattern beginning with a digit followed by "." is a case that has
// tripped up at least one real-world library), so this package compiles
// every pattern to a single, fully-anchored regexp of our own.
package pattern

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ExpandBraces expands brace expressions in s: literal sets ({a,b,c}),
// numeric ranges ({1..10}), and stepped numeric ranges ({1..9..2}).
// Braces may nest. A string with no braces expands to itself.
func ExpandBraces(s string) ([]string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return []string{s}, nil
	}

	end, err := matchingBrace(s, start)
	if err != nil {
		return nil, err
	}

	prefix := s[:start]
	body := s[start+1 : end]
	suffix := s[end+1:]

	alts, err := splitBraceBody(body)
	if err != nil {
		return nil, err
	}

	suffixExpansions, err := ExpandBraces(suffix)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, alt := range alts {
		altExpansions, err := ExpandBraces(alt)
		if err != nil {
			return nil, err
		}
		for _, a := range altExpansions {
			for _, suf := range suffixExpansions {
				out = append(out, prefix+a+suf)
			}
		}
	}
	return out, nil
}

// matchingBrace finds the index of the '}' matching the '{' at openIdx,
// honoring nesting.
func matchingBrace(s string, openIdx int) (int, error) {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("unbalanced '{' in pattern %q", s)
}

// splitBraceBody splits a brace body into its alternatives, recognizing
// "a..b" and "a..b..c" numeric ranges, falling back to a comma-separated
// literal set. Commas nested inside deeper braces are not split on.
func splitBraceBody(body string) ([]string, error) {
	if m := rangeRgx.FindStringSubmatch(body); m != nil {
		from, err1 := strconv.Atoi(m[1])
		to, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return splitOnTopLevelComma(body), nil
		}
		step := 1
		if m[3] != "" {
			s, err := strconv.Atoi(m[3])
			if err != nil || s == 0 {
				return splitOnTopLevelComma(body), nil
			}
			step = s
		}
		return numericRange(from, to, step), nil
	}
	return splitOnTopLevelComma(body), nil
}

var rangeRgx = regexp.MustCompile(`^(-?\d+)\.\.(-?\d+)(?:\.\.(-?\d+))?$`)

func numericRange(from, to, step int) []string {
	if step < 0 {
		step = -step
	}
	if step == 0 {
		step = 1
	}
	var out []string
	if from <= to {
		for v := from; v <= to; v += step {
			out = append(out, strconv.Itoa(v))
		}
	} else {
		for v := from; v >= to; v -= step {
			out = append(out, strconv.Itoa(v))
		}
	}
	return out
}

func splitOnTopLevelComma(body string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, body[last:])
	return parts
}

// Matcher is a single compiled pattern.
type Matcher struct {
	source  string
	exclude bool
	re      *regexp.Regexp
}

// Exclude reports whether this matcher is a "!"-prefixed exclusion.
func (m *Matcher) Exclude() bool { return m.exclude }

// Source returns the original pattern text (without the leading "!").
func (m *Matcher) Source() string { return m.source }

// Match reports whether name matches this single compiled pattern.
func (m *Matcher) Match(name string) bool { return m.re.MatchString(name) }

// Compile compiles a single glob/extglob pattern (no brace expansion —
// use ExpandBraces first) into a fully-anchored Matcher. "*" matches any
// run of characters excluding "/"; extglob forms ?(...) +(...) *(...)
// !(...) are supported with their usual shell semantics.
func Compile(raw string) (*Matcher, error) {
	exclude := false
	p := raw
	if strings.HasPrefix(p, "!") {
		exclude = true
		p = p[1:]
	}

	body, err := translate(p)
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile("^" + body + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
	}

	return &Matcher{source: p, exclude: exclude, re: re}, nil
}

// CompileSegment compiles a single path segment (no "/", no leading "!"
// exclusion semantics — those apply to a whole pattern, not one segment)
// into a fully-anchored regexp, for callers walking a tree level by level.
func CompileSegment(seg string) (*regexp.Regexp, error) {
	body, err := translate(seg)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile("^" + body + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid pattern segment %q: %w", seg, err)
	}
	return re, nil
}

// HasMeta reports whether s contains any glob/extglob metacharacter, i.e.
// whether it is a pattern rather than a literal path.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?{") || strings.Contains(s, "!(") || strings.Contains(s, "+(")
}

// translate converts one glob/extglob pattern (braces already expanded)
// into a regexp body (no anchors).
func translate(p string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(p) {
		c := p[i]
		switch {
		case c == '*' && i+1 < len(p) && p[i+1] == '*':
			// "**" matches across path segments, including "/".
			b.WriteString(".*")
			i += 2
		case c == '*' && !isExtglobLead(p, i):
			b.WriteString("[^/]*")
			i++
		case c == '?' && !isExtglobLead(p, i):
			b.WriteString("[^/]")
			i++
		case isExtglobLead(p, i):
			kind := c
			groupEnd, err := matchingParen(p, i+1)
			if err != nil {
				return "", err
			}
			inner := p[i+2 : groupEnd]
			var alts []string
			depth, last := 0, 0
			for j := 0; j < len(inner); j++ {
				switch inner[j] {
				case '(':
					depth++
				case ')':
					depth--
				case '|':
					if depth == 0 {
						alts = append(alts, inner[last:j])
						last = j + 1
					}
				}
			}
			alts = append(alts, inner[last:])
			var translatedAlts []string
			for _, a := range alts {
				t, err := translate(a)
				if err != nil {
					return "", err
				}
				translatedAlts = append(translatedAlts, t)
			}
			group := "(?:" + strings.Join(translatedAlts, "|") + ")"
			switch kind {
			case '?':
				b.WriteString(group + "?")
			case '+':
				b.WriteString(group + "+")
			case '*':
				b.WriteString(group + "*")
			case '!':
				// negated match: any run of non-"/" characters that never
				// lands on one of the alternatives at its current position.
				b.WriteString("(?:(?!(?:" + strings.Join(translatedAlts, "|") + ")(?:$|/))[^/])*")
			}
			i = groupEnd + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String(), nil
}

func isExtglobLead(p string, i int) bool {
	c := p[i]
	if c != '?' && c != '+' && c != '*' && c != '!' {
		return false
	}
	return i+1 < len(p) && p[i+1] == '('
}

func matchingParen(p string, openIdx int) (int, error) {
	depth := 0
	for i := openIdx; i < len(p); i++ {
		switch p[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("unbalanced '(' in pattern %q", p)
}

// List is an ordered set of include/exclude patterns compiled from brace
// expansions of the raw pattern strings, implementing spec.md §4.3 rule 3:
// exclusions (leading "!") only take effect once at least one include has
// matched.
type List struct {
	matchers []*Matcher
}

// NewList expands braces in each raw pattern and compiles the result.
func NewList(raws []string) (*List, error) {
	var matchers []*Matcher
	for _, raw := range raws {
		exclude := strings.HasPrefix(raw, "!")
		body := strings.TrimPrefix(raw, "!")

		expansions, err := ExpandBraces(body)
		if err != nil {
			return nil, err
		}
		for _, e := range expansions {
			text := e
			if exclude {
				text = "!" + e
			}
			m, err := Compile(text)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
		}
	}
	return &List{matchers: matchers}, nil
}

// Match applies the ordered include/exclude matchers to name.
func (l *List) Match(name string) bool {
	matched := false
	for _, m := range l.matchers {
		if !m.Match(name) {
			continue
		}
		if m.Exclude() {
			if matched {
				matched = false
			}
			continue
		}
		matched = true
	}
	return matched
}

// Filter returns the subset of names that match, preserving order.
func (l *List) Filter(names []string) []string {
	var out []string
	for _, n := range names {
		if l.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// Empty reports whether the list has no patterns at all.
func (l *List) Empty() bool { return len(l.matchers) == 0 }
