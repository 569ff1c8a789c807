package policy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestMatcher(t *testing.T) {
	tests := []struct {
		name    string
		matcher RequestMatcher
		method  string
		path    string
		want    bool
	}{
		{name: "subtree root", matcher: Paths("/api/admin/**"), method: http.MethodGet, path: "/api/admin", want: true},
		{name: "subtree child", matcher: Paths("/api/admin/**"), method: http.MethodGet, path: "/api/admin/users/1", want: true},
		{name: "sibling prefix", matcher: Paths("/api/admin/**"), method: http.MethodGet, path: "/api/administrator", want: false},
		{name: "exact", matcher: Paths("/userinfo"), method: http.MethodGet, path: "/userinfo", want: true},
		{name: "exact child", matcher: Paths("/userinfo"), method: http.MethodGet, path: "/userinfo/x", want: false},
		{name: "dot segments", matcher: Paths("/api/admin/**"), method: http.MethodGet, path: "/api/auth/../admin/users", want: true},
		{name: "double slash", matcher: Paths("/api/admin/**"), method: http.MethodGet, path: "//api//admin", want: true},
		{name: "method allowed", matcher: Paths("/api/exercises/**").WithMethods(MutatingMethods...), method: http.MethodDelete, path: "/api/exercises/3", want: true},
		{name: "method rejected", matcher: Paths("/api/exercises/**").WithMethods(MutatingMethods...), method: http.MethodGet, path: "/api/exercises/3", want: false},
		{name: "any request", matcher: AnyRequest(), method: http.MethodPatch, path: "/whatever", want: true},
		{name: "any path options", matcher: AnyRequest().WithMethods(http.MethodOptions), method: http.MethodOptions, path: "/api/admin/x", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.matcher.Matches(tt.method, tt.path))
		})
	}
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "/", CleanPath(""))
	assert.Equal(t, "/a/b", CleanPath("a//b/"))
	assert.Equal(t, "/b", CleanPath("/a/../b"))
	assert.Equal(t, "/", CleanPath("/../.."))
}

func TestPrefixesOverlap(t *testing.T) {
	assert.True(t, prefixesOverlap("/oauth2", "/oauth2"))
	assert.True(t, prefixesOverlap("/api", "/api/openid"))
	assert.False(t, prefixesOverlap("/oauth2", "/api/oauth2"))
	assert.False(t, prefixesOverlap("/api/openid", "/api/openidx"))
	assert.Equal(t, "/api/openid", literalPrefix("/api/openid/**"))
	assert.Equal(t, "/userinfo", literalPrefix("/userinfo"))
}
