package server

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginalURL(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		host    string
		tls     bool
		forward string
		want    string
	}{
		{"non-default port kept", "/oauth2/authorize?client_id=a&scope=openid%20profile", "localhost:8080", false, "", "http://localhost:8080/oauth2/authorize?client_id=a&scope=openid%20profile"},
		{"default http port dropped", "/oauth2/authorize", "api.example.com:80", false, "", "http://api.example.com/oauth2/authorize"},
		{"default https port dropped", "/oauth2/authorize?x=1", "api.example.com:443", true, "", "https://api.example.com/oauth2/authorize?x=1"},
		{"forwarded proto", "/oauth2/authorize", "api.example.com", false, "https", "https://api.example.com/oauth2/authorize"},
		{"no query", "/connect/register", "api.example.com:9443", true, "", "https://api.example.com:9443/connect/register"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			r.Host = tt.host
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			}
			if tt.forward != "" {
				r.Header.Set("X-Forwarded-Proto", tt.forward)
			}
			assert.Equal(t, tt.want, OriginalURL(r))
		})
	}
}

func TestLoginRedirectURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?client_id=fitapi-web&state=xyz", nil)
	r.Host = "localhost:8080"

	got := LoginRedirectURL(testLoginURL, r)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3001", u.Host)
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, "http://localhost:8080/oauth2/authorize?client_id=fitapi-web&state=xyz", u.Query().Get(ReturnURLParam))

	got = LoginRedirectURL(testLoginURL+"?app=web", r)
	u, err = url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "web", u.Query().Get("app"))
	assert.NotEmpty(t, u.Query().Get(ReturnURLParam))
}

func TestLoginEntryPoint(t *testing.T) {
	h := NewLoginEntryPoint(testLoginURL)

	tests := []struct {
		accept   string
		redirect bool
	}{
		{"text/html", true},
		{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", true},
		{"application/json", false},
		{"*/*", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?client_id=fitapi-web", nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			if tt.redirect {
				assert.Equal(t, http.StatusFound, rec.Code)
				assert.Contains(t, rec.Header().Get("Location"), testLoginURL+"?returnUrl=")
				return
			}
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}
