package policy

import (
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// RequestMatcher matches a request by path pattern and, optionally, method.
// Patterns use doublestar syntax: "/api/admin/**" matches /api/admin and
// everything below it. An empty pattern list matches every path.
type RequestMatcher struct {
	Patterns []string
	Methods  []string
}

// Paths matches any method on the given patterns.
func Paths(patterns ...string) RequestMatcher {
	return RequestMatcher{Patterns: patterns}
}

// AnyRequest matches everything.
func AnyRequest() RequestMatcher {
	return RequestMatcher{}
}

// WithMethods restricts m to the given HTTP methods.
func (m RequestMatcher) WithMethods(methods ...string) RequestMatcher {
	m.Methods = methods
	return m
}

// Matches reports whether m accepts method and urlPath.
func (m RequestMatcher) Matches(method, urlPath string) bool {
	if len(m.Methods) > 0 && !slices.Contains(m.Methods, method) {
		return false
	}
	if len(m.Patterns) == 0 {
		return true
	}
	p := CleanPath(urlPath)
	for _, pattern := range m.Patterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// IsCatchAll reports whether m matches every request.
func (m RequestMatcher) IsCatchAll() bool {
	return len(m.Patterns) == 0 && len(m.Methods) == 0
}

// CleanPath normalizes a request path before matching so that dot segments
// and duplicate slashes cannot move a request into another chain.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

func matchPattern(pattern, p string) bool {
	if ok, err := doublestar.Match(pattern, p); err == nil && ok {
		return true
	}
	if base, ok := strings.CutSuffix(pattern, "/**"); ok {
		return p == base
	}
	return false
}

// literalPrefix is the pattern up to its first wildcard, without the
// trailing separator.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		pattern = pattern[:i]
	}
	return strings.TrimSuffix(pattern, "/")
}

func prefixesOverlap(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// Common method sets.
var (
	SafeMethods     = []string{http.MethodGet, http.MethodHead}
	MutatingMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
)
