// Package glob implements Find's pattern language: "*" matches any run of
// characters including "/"; "?" matches exactly one character, any
// character including "/". Patterns are anchored at both ends and matching
// is case-sensitive. There are no character classes and no escaping - a
// deliberately narrower language than the teacher's own
// fs.globToRegexp/fs/filter.GlobToRegexp, which support brace groups and
// POSIX classes this language has no room for.
package glob

import (
	"regexp"
	"strings"

	"github.com/christopher22/matryoshka/merrors"
)

// Matcher compiles a pattern once and matches many paths against it.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile builds a Matcher for pattern. An empty pattern matches only the
// empty path, mirroring the anchored-regexp translation of "*" => ".*".
func Compile(pattern string) (*Matcher, error) {
	re, err := regexp.Compile(toRegexp(pattern))
	if err != nil {
		return nil, merrors.Wrapf(merrors.InvalidArgument, err, "compile pattern %q", pattern)
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// MatchString reports whether path matches the compiled pattern in full.
func (m *Matcher) MatchString(path string) bool {
	return m.re.MatchString(path)
}

// String returns the original pattern text.
func (m *Matcher) String() string { return m.pattern }

// toRegexp translates the two-wildcard glob language into an anchored
// regular expression: "*" -> ".*" (greedy, backtracking - exactly what
// Go's RE2-derived engine gives a plain ".*"), "?" -> ".", everything else
// quoted literally. The s flag is set so "." also matches a newline.
func toRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// ToLike translates pattern into a SQL LIKE-compatible pattern string
// ("*" -> "%", "?" -> "_"), escaping literal '%'/'_'/'\' in the source
// pattern with '\'. The companion LikeEscape constant must be passed as the
// LIKE clause's ESCAPE character by callers.
func ToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LikeEscape is the ESCAPE character ToLike's translated patterns require.
const LikeEscape = `\`
