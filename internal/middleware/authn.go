// Package middleware holds the per-chain request filters: authenticators,
// chain dispatch, authorization, CSRF and request logging.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
)

// Authenticator establishes a principal from one kind of credential. It
// never fails the request: every problem is an Unauthenticated result.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) auth.Result
	Scheme() auth.Scheme
}

// NewAuthenticationMiddleware tries authenticators in order and attaches
// the first principal established. A request that already carries a
// principal is left alone. next runs exactly once whatever the outcome;
// rejecting anonymous requests is the authorization step's job.
func NewAuthenticationMiddleware(authenticators []Authenticator, metrics *Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := auth.PrincipalFromContext(ctx); ok {
				next.ServeHTTP(w, r)
				return
			}

			for _, authenticator := range authenticators {
				result := authenticator.AuthenticateRequest(r)
				metrics.observeAuthentication(authenticator.Scheme(), result)

				if principal, ok := result.Principal(); ok {
					r = r.WithContext(auth.WithPrincipal(ctx, principal))
					break
				}
				if result.Reason() != auth.ReasonNoCredentials {
					logger.DebugContext(ctx, "request left unauthenticated",
						"scheme", authenticator.Scheme(),
						"reason", result.Reason(),
						"path", r.URL.Path,
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
