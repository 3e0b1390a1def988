package aggregate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tina25311/docaggr/config"
)

// ResolveVersion derives a component version string for one (source, ref)
// pair per spec.md §4.6:
//
//   - a non-empty descriptor version string is used as-is
//   - version === true derives the version from refShortname via the
//     source's version pattern map (first matching entry wins)
//   - version === null yields the empty string
//   - version === false is a hard error
//   - if the descriptor omits version and the source's default is true, the
//     same pattern-map derivation applies
//   - if both omit version, it is an error
//
// srcVersion is source.Source.Version (string | bool | []config.OrderedPair |
// nil); descVersion/descVersionSet are Descriptor.Version/VersionSet.
func ResolveVersion(srcVersion any, descVersion any, descVersionSet bool, refShortname string) (string, error) {
	spec := srcVersion
	specSet := srcVersion != nil
	if descVersionSet {
		spec = descVersion
		specSet = true
	}
	if !specSet {
		return "", fmt.Errorf("unable to determine version for ref %q: neither the component descriptor nor the content source specify one", refShortname)
	}

	switch v := spec.(type) {
	case string:
		if v == "" {
			return "", nil
		}
		return v, nil
	case bool:
		if !v {
			return "", fmt.Errorf("version is explicitly disabled (false) for ref %q", refShortname)
		}
		pairs, _ := srcVersion.([]config.OrderedPair)
		return deriveVersionFromRef(pairs, refShortname)
	case []config.OrderedPair:
		return deriveVersionFromRef(v, refShortname)
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported version value %v (%T) for ref %q", v, v, refShortname)
	}
}

// deriveVersionFromRef walks pairs in declaration order, returning the
// substituted value of the first pattern that matches refShortname. With no
// match (or an empty pattern map) the raw shortname is used, slashes
// replaced with dashes either way (spec.md §3).
func deriveVersionFromRef(pairs []config.OrderedPair, refShortname string) (string, error) {
	for _, p := range pairs {
		re, err := compileVersionPattern(p.Key)
		if err != nil {
			return "", fmt.Errorf("invalid version pattern %q: %w", p.Key, err)
		}
		groups := re.FindStringSubmatch(refShortname)
		if groups == nil {
			continue
		}
		return sanitizeVersion(expandVersionTemplate(p.Value, re, groups)), nil
	}
	return sanitizeVersion(refShortname), nil
}

func sanitizeVersion(s string) string {
	return strings.ReplaceAll(s, "/", "-")
}

var versionPatternCache = map[string]*regexp.Regexp{}

func compileVersionPattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := versionPatternCache[pattern]; ok {
		return re, nil
	}
	translated, err := translateVersionPattern(pattern)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile("^(?:" + translated + ")$")
	if err != nil {
		return nil, err
	}
	versionPatternCache[pattern] = re
	return re, nil
}

// expandVersionTemplate substitutes $<name>, $&, and $1.."$9"+ tokens in
// tmpl against groups, the submatch slice produced by matching re.
func expandVersionTemplate(tmpl string, re *regexp.Regexp, groups []string) string {
	names := re.SubexpNames()
	var sb strings.Builder
	runes := []rune(tmpl)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '$' || i+1 >= len(runes) {
			sb.WriteRune(runes[i])
			continue
		}
		switch {
		case runes[i+1] == '&':
			sb.WriteString(groups[0])
			i++
		case runes[i+1] == '<':
			end := -1
			for j := i + 2; j < len(runes); j++ {
				if runes[j] == '>' {
					end = j
					break
				}
			}
			if end < 0 {
				sb.WriteRune(runes[i])
				continue
			}
			name := string(runes[i+2 : end])
			for gi, n := range names {
				if n == name && gi < len(groups) {
					sb.WriteString(groups[gi])
				}
			}
			i = end
		case runes[i+1] >= '0' && runes[i+1] <= '9':
			j := i + 1
			for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
				j++
			}
			idx, _ := strconv.Atoi(string(runes[i+1 : j]))
			if idx < len(groups) {
				sb.WriteString(groups[idx])
			}
			i = j - 1
		default:
			sb.WriteRune(runes[i])
		}
	}
	return sb.String()
}

// translateVersionPattern rewrites a version-pattern-map key into a regexp
// the standard library can compile. Version pattern keys are a distinct
// mini-language from the ref-name glob patterns the pattern package handles:
// they mix true regex named capture groups, "(?<name>...)", with extglob
// repetition operators, "+()"/"*()"/"?()", and brace ranges like "{0..9}"
// nested *inside* those operators that must become an in-place character
// class or alternation rather than a whole-pattern expansion.
func translateVersionPattern(pattern string) (string, error) {
	out, pos, err := translateVersionSegment([]rune(pattern), 0, false)
	if err != nil {
		return "", err
	}
	if pos != len(pattern) {
		return "", fmt.Errorf("unbalanced parenthesis")
	}
	return out, nil
}

// translateVersionSegment translates runs[i:] up to either the end of the
// input or (if stopAtParen) an unescaped ")". It returns the translated
// text and the index of the terminator (len(runes) or the ")" position).
func translateVersionSegment(runes []rune, i int, stopAtParen bool) (string, int, error) {
	var sb strings.Builder
	for i < len(runes) {
		c := runes[i]
		if stopAtParen && c == ')' {
			return sb.String(), i, nil
		}

		switch {
		case c == '(' && i+2 < len(runes) && runes[i+1] == '?' && runes[i+2] == '<' &&
			i+3 < len(runes) && runes[i+3] != '=' && runes[i+3] != '!':
			end := -1
			for j := i + 3; j < len(runes); j++ {
				if runes[j] == '>' {
					end = j
					break
				}
			}
			if end < 0 {
				return "", 0, fmt.Errorf("unterminated named group starting at %d", i)
			}
			name := string(runes[i+3 : end])
			inner, closeIdx, err := translateVersionSegment(runes, end+1, true)
			if err != nil {
				return "", 0, err
			}
			sb.WriteString("(?P<")
			sb.WriteString(name)
			sb.WriteString(">")
			sb.WriteString(inner)
			sb.WriteString(")")
			i = closeIdx + 1

		case (c == '+' || c == '*' || c == '?') && i+1 < len(runes) && runes[i+1] == '(':
			inner, closeIdx, err := translateVersionSegment(runes, i+2, true)
			if err != nil {
				return "", 0, err
			}
			sb.WriteString("(?:")
			sb.WriteString(inner)
			sb.WriteString(")")
			sb.WriteRune(c)
			i = closeIdx + 1

		case c == '!' && i+1 < len(runes) && runes[i+1] == '(':
			return "", 0, fmt.Errorf("negated extglob pattern !(...) is not supported in version patterns")

		case c == '(':
			inner, closeIdx, err := translateVersionSegment(runes, i+1, true)
			if err != nil {
				return "", 0, err
			}
			sb.WriteString("(")
			sb.WriteString(inner)
			sb.WriteString(")")
			i = closeIdx + 1

		case c == '{':
			replaced, next, ok := translateBraceRange(runes, i)
			if ok {
				sb.WriteString(replaced)
				i = next
			} else {
				sb.WriteRune(c)
				i++
			}

		default:
			sb.WriteRune(c)
			i++
		}
	}
	if stopAtParen {
		return "", 0, fmt.Errorf("unbalanced parenthesis")
	}
	return sb.String(), i, nil
}

// translateBraceRange recognizes a "{m..n}" numeric range starting at
// runes[i] == '{' and rewrites it to an in-place character class (single
// digits) or alternation (multi-digit), matching the way it is meant to
// combine with an enclosing extglob quantifier rather than expand the whole
// pattern into a cross-product of strings (pattern.ExpandBraces's job for
// ref-name globs, which does not apply here).
func translateBraceRange(runes []rune, i int) (string, int, bool) {
	close := -1
	for j := i + 1; j < len(runes); j++ {
		if runes[j] == '}' {
			close = j
			break
		}
	}
	if close < 0 {
		return "", 0, false
	}
	body := string(runes[i+1 : close])
	sep := strings.Index(body, "..")
	if sep < 0 {
		return "", 0, false
	}
	loStr, hiStr := body[:sep], body[sep+2:]
	lo, err1 := strconv.Atoi(loStr)
	hi, err2 := strconv.Atoi(hiStr)
	if err1 != nil || err2 != nil || lo > hi {
		return "", 0, false
	}
	if len(loStr) == 1 && len(hiStr) == 1 {
		return fmt.Sprintf("[%d-%d]", lo, hi), close + 1, true
	}
	if hi-lo > 1000 {
		return "", 0, false
	}
	alts := make([]string, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		alts = append(alts, strconv.Itoa(n))
	}
	return "(?:" + strings.Join(alts, "|") + ")", close + 1, true
}
