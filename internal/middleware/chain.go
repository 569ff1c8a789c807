package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/policy"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/telemetry"
)

// ChainBinding attaches the runtime pieces of one policy.Chain.
type ChainBinding struct {
	// Authenticators run in order before authorization.
	Authenticators []Authenticator
	// CORS is applied to this chain only. Nil disables CORS handling.
	CORS *cors.Options
	// EntryPoint answers NoCredentials decisions. Defaults to a 401 body.
	EntryPoint http.Handler
	// Forbidden answers insufficient role or scope. Defaults to a 403 body.
	Forbidden http.Handler
	// Handler serves authorized requests.
	Handler http.Handler
}

// ChainDeps configures NewChainDispatcher.
type ChainDeps struct {
	Selector *policy.Selector
	// Bindings is keyed by chain name and must cover every chain.
	Bindings map[string]ChainBinding
	// SessionCookie names the cookie whose presence on an unsafe request
	// triggers the CSRF check in chains that enable it.
	SessionCookie  string
	TrustedOrigins []string
	Metrics        *Metrics
	Logger         *slog.Logger
}

// ChainDispatcher sends each request through exactly one chain.
type ChainDispatcher struct {
	selector *policy.Selector
	handlers map[string]http.Handler
}

// NewChainDispatcher compiles every chain of deps.Selector into a handler:
// CORS, CSRF, authentication, authorization, then the bound handler.
func NewChainDispatcher(deps ChainDeps) (*ChainDispatcher, error) {
	if deps.Selector == nil {
		return nil, fmt.Errorf("chain dispatcher requires a selector")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handlers := make(map[string]http.Handler, len(deps.Bindings))
	for _, chain := range deps.Selector.Chains() {
		binding, ok := deps.Bindings[chain.Name]
		if !ok || binding.Handler == nil {
			return nil, fmt.Errorf("chain %q has no handler bound", chain.Name)
		}
		if chain.Session == policy.Stateless {
			for _, a := range binding.Authenticators {
				if a.Scheme() == auth.SchemeSession {
					return nil, fmt.Errorf("chain %q is stateless but binds a session authenticator", chain.Name)
				}
			}
		}
		if binding.EntryPoint == nil {
			binding.EntryPoint = http.HandlerFunc(unauthorized)
		}
		if binding.Forbidden == nil {
			binding.Forbidden = http.HandlerFunc(forbidden)
		}

		h := authorize(chain, binding, deps.Metrics)(binding.Handler)
		h = NewAuthenticationMiddleware(binding.Authenticators, deps.Metrics, logger)(h)
		if chain.CSRF {
			h = NewCSRFMiddleware(deps.SessionCookie, deps.TrustedOrigins)(h)
		}
		if binding.CORS != nil {
			h = cors.Handler(*binding.CORS)(h)
		}
		handlers[chain.Name] = h
	}
	return &ChainDispatcher{selector: deps.Selector, handlers: handlers}, nil
}

// ServeHTTP canonicalizes the request path before selecting a chain, so
// the policy and the bound handler's router see the same path.
func (d *ChainDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if clean := policy.CleanPath(r.URL.Path); clean != r.URL.Path {
		u := *r.URL
		u.Path = clean
		u.RawPath = ""
		r2 := r.WithContext(r.Context())
		r2.URL = &u
		r2.RequestURI = u.RequestURI()
		r = r2
	}
	chain := d.selector.Select(r.Method, r.URL.Path)
	d.handlers[chain.Name].ServeHTTP(w, r)
}

func authorize(chain *policy.Chain, binding ChainBinding, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var principal *auth.Principal
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				principal = &p
			}

			decision := chain.Authorize(r.Method, r.URL.Path, principal)
			metrics.observeAuthorization(chain.Name, decision)

			_, span := telemetry.StartSpan(r.Context(), telemetry.TracerPolicy, "policy.Authorize",
				attribute.String(telemetry.AttrChainName, chain.Name),
				attribute.String(telemetry.AttrPolicyDecision, decision.String()),
			)
			span.End()

			switch {
			case decision == policy.Allow:
				next.ServeHTTP(w, r)
			case decision.Forbidden():
				binding.Forbidden.ServeHTTP(w, r)
			default:
				binding.EntryPoint.ServeHTTP(w, r)
			}
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, apierror.AuthenticationRequired)
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, r, http.StatusForbidden, apierror.Forbidden, "Access denied")
}
