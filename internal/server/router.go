// Package server assembles the HTTP surface: the outer chi router, the four
// security chains bound to their authenticators and handlers, and the
// unauthenticated-access responder.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/keys"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/middleware"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/oidcissuer"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/policy"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

// RouterOptions are the collaborators of NewRouter. Config, Issuer, Tokens
// and both bearer authenticators are required.
type RouterOptions struct {
	Config *config.Config
	Issuer *oidcissuer.Issuer
	Tokens *iam.TokenService

	// LegacyBearer authenticates the default chain only.
	LegacyBearer middleware.Authenticator
	// ProtocolBearer verifies tokens minted by Issuer.
	ProtocolBearer middleware.Authenticator

	// Registry receives the auth metrics and is served at /metrics. Nil
	// disables both.
	Registry *prometheus.Registry
	Logger   *slog.Logger

	// ExtraRoutes mounts domain resources on the default chain, behind its
	// authorization rules.
	ExtraRoutes func(chi.Router)
}

// NewProtocolBearer builds the openid-api verifier over the issuer's
// published key set. accounts re-resolves every token subject.
func NewProtocolBearer(issuer *oidcissuer.Issuer, keySet *keys.KeySet, accounts iam.AccountLookup, logger *slog.Logger) (*middleware.ScopedBearerAuthenticator, error) {
	jwks, err := keySet.JWKSJSON()
	if err != nil {
		return nil, err
	}
	return middleware.NewScopedBearerAuthenticator(jwks, issuer.Issuer(), issuer.Client().GetID(), issuer.Storage(), accounts, logger)
}

// NewRouter returns the service's root handler. Every request passes the
// shared middleware and then exactly one chain.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	if opts.Config == nil || opts.Issuer == nil || opts.Tokens == nil {
		return nil, fmt.Errorf("router needs config, issuer and token service")
	}
	if opts.LegacyBearer == nil || opts.ProtocolBearer == nil {
		return nil, fmt.Errorf("router needs both bearer authenticators")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var metrics *middleware.Metrics
	if opts.Registry != nil {
		m, err := middleware.NewMetrics(opts.Registry)
		if err != nil {
			return nil, fmt.Errorf("register auth metrics: %w", err)
		}
		metrics = m
	}

	selector, err := policy.NewStandardSelector()
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	sessions := opts.Issuer.Sessions()
	origins := cfg.CORS.AllowedOrigins

	dispatcher, err := middleware.NewChainDispatcher(middleware.ChainDeps{
		Selector: selector,
		Bindings: map[string]middleware.ChainBinding{
			policy.ChainAuthorizationServer: {
				Authenticators: []middleware.Authenticator{sessions, opts.ProtocolBearer},
				CORS:           corsOptions(origins, http.MethodGet, http.MethodPost),
				EntryPoint:     NewLoginEntryPoint(cfg.Frontend.LoginURL),
				Handler:        opts.Issuer.ProtocolHandler(),
			},
			policy.ChainOAuth2Login: {
				Authenticators: []middleware.Authenticator{sessions},
				CORS:           corsOptions(origins, http.MethodGet, http.MethodPost),
				Handler:        opts.Issuer.LoginHandler(),
			},
			policy.ChainOpenIDAPI: {
				Authenticators: []middleware.Authenticator{opts.ProtocolBearer},
				CORS:           corsOptions(origins, http.MethodGet),
				Handler:        openIDRouter(),
			},
			policy.ChainDefault: {
				Authenticators: []middleware.Authenticator{opts.LegacyBearer},
				CORS: corsOptions(origins,
					http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete),
				Handler: defaultRouter(opts, logger),
			},
		},
		SessionCookie:  oidcissuer.SessionCookieName,
		TrustedOrigins: slices.Concat(origins, []string{opts.Issuer.Issuer()}),
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Handle("/*", dispatcher)
	return r, nil
}

// NewH2CHandler serves h over HTTP/2 cleartext as well as HTTP/1.1.
func NewH2CHandler(h http.Handler) http.Handler {
	return h2c.NewHandler(h, &http2.Server{})
}

func openIDRouter() chi.Router {
	r := chi.NewRouter()
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)
	r.Get("/api/openid/userinfo", HandleOpenIDUserinfo)
	return r
}

func defaultRouter(opts RouterOptions, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", HandleLogin(opts.Tokens, logger))
		r.Post("/refresh", HandleRefresh(opts.Tokens, logger))
		r.Get("/me", HandleMe)
	})
	r.Get("/health", handleHealth)
	r.Get("/actuator/health", handleHealth)
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{Registry: opts.Registry}))
	}

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}
	return r
}

func corsOptions(origins []string, methods ...string) *cors.Options {
	return &cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   append(methods, http.MethodOptions),
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "X-Requested-With"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}
