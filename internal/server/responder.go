package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/elnormous/contenttype"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
)

// ReturnURLParam carries the original request to the frontend login page.
const ReturnURLParam = "returnUrl"

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
	htmlMediaType = contenttype.NewMediaType("text/html")
	// JSON first, so a bare */* is answered with JSON.
	entryPointMediaTypes = []contenttype.MediaType{jsonMediaType, htmlMediaType}
)

// NewLoginEntryPoint answers unauthenticated requests to the protocol
// surface. Browsers that ask for HTML are redirected to loginURL with the
// original URL attached as returnUrl; everything else gets the JSON 401.
func NewLoginEntryPoint(loginURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !acceptsHTML(r) {
			Unauthorized(w, r)
			return
		}
		http.Redirect(w, r, LoginRedirectURL(loginURL, r), http.StatusFound)
	})
}

// Unauthorized writes the stable 401 body.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, apierror.AuthenticationRequired)
}

// LoginRedirectURL appends the URL-encoded original request to loginURL.
func LoginRedirectURL(loginURL string, r *http.Request) string {
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	return loginURL + sep + ReturnURLParam + "=" + url.QueryEscape(OriginalURL(r))
}

// OriginalURL rebuilds the absolute URL the client requested: scheme, host,
// port when it is not the scheme default, path and raw query.
func OriginalURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}

	host := r.Host
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]"
			}
		}
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
	return u.String()
}

// acceptsHTML reports whether the Accept header explicitly prefers HTML.
// A missing header or a bare wildcard does not.
func acceptsHTML(r *http.Request) bool {
	if r.Header.Get("Accept") == "" {
		return false
	}
	accepted, _, err := contenttype.GetAcceptableMediaType(r, entryPointMediaTypes)
	if err != nil {
		return false
	}
	return accepted.Subtype == htmlMediaType.Subtype
}
