package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
)

// NewCSRFMiddleware rejects unsafe requests that carry the session cookie
// but come from another site, judged by Sec-Fetch-Site and Origin. Form
// handlers additionally check the session's CSRF token.
func NewCSRFMiddleware(sessionCookie string, trustedOrigins []string) func(http.Handler) http.Handler {
	trusted := make([]string, 0, len(trustedOrigins))
	for _, origin := range trustedOrigins {
		trusted = append(trusted, strings.TrimSuffix(origin, "/"))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || sessionCookie == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := r.Cookie(sessionCookie); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get("Sec-Fetch-Site") == "cross-site" || !originAllowed(r, trusted) {
				apierror.Write(w, r, http.StatusForbidden, apierror.Forbidden, "Cross-site request rejected")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// originAllowed accepts a missing Origin, the request's own host, or a
// trusted origin.
func originAllowed(r *http.Request, trusted []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(trusted, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host != "" && u.Host == r.Host
}
