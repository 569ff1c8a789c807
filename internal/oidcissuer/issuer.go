// Package oidcissuer is the delegated-authorization issuer: an OpenID
// provider built on zitadel/oidc serving the single registered client,
// together with the browser session, consent and device verification pages
// it needs.
package oidcissuer

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"github.com/zitadel/oidc/v3/pkg/op"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/keys"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/policy"
)

const (
	deviceCodeLifetime = 10 * time.Minute
	devicePollInterval = 5 * time.Second
)

// CredentialVerifier is the slice of iam.CredentialVerifier the issuer uses.
type CredentialVerifier interface {
	Lookup(ctx context.Context, email string) (*models.Account, error)
	Verify(ctx context.Context, email, password string) (*models.Account, error)
}

// Options configures New.
type Options struct {
	Config   config.OAuth2Config
	Session  config.SessionConfig
	Keys     *keys.KeySet
	Verifier CredentialVerifier
	// Claims overrides the default EnrichClaims hook.
	Claims ClaimsHook
	Logger *slog.Logger
}

// Issuer owns the provider, its storage and the registered client. All of
// them are created once and never replaced.
type Issuer struct {
	issuer   string
	client   *RegisteredClient
	storage  *Storage
	provider *op.Provider
	protocol chi.Router
	sessions *Sessions
	verifier CredentialVerifier
	logger   *slog.Logger
}

// New builds the issuer for cfg.Issuer.
func New(opts Options) (*Issuer, error) {
	if opts.Keys == nil || opts.Verifier == nil {
		return nil, fmt.Errorf("issuer needs key material and a credential verifier")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	issuer := strings.TrimSuffix(opts.Config.Issuer, "/")

	client, err := NewRegisteredClient(opts.Config)
	if err != nil {
		return nil, err
	}
	hook := opts.Claims
	if hook == nil {
		hook = EnrichClaims(issuer)
	}
	storage, err := NewStorage(StorageDeps{
		Client:   client,
		Keys:     opts.Keys,
		Accounts: opts.Verifier,
		Claims:   hook,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise oidc storage: %w", err)
	}

	secure := strings.HasPrefix(issuer, "https://")
	sessions, err := NewSessions(opts.Session, secure, opts.Verifier, logger)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(issuer, client, storage, secure)
	if err != nil {
		return nil, fmt.Errorf("create openid provider: %w", err)
	}

	return &Issuer{
		issuer:   issuer,
		client:   client,
		storage:  storage,
		provider: provider,
		protocol: op.CreateRouter(provider),
		sessions: sessions,
		verifier: opts.Verifier,
		logger:   logger,
	}, nil
}

func newProvider(issuer string, client *RegisteredClient, storage *Storage, secure bool) (*op.Provider, error) {
	var cryptoKey [32]byte
	if _, err := rand.Read(cryptoKey[:]); err != nil {
		return nil, fmt.Errorf("generate provider crypto key: %w", err)
	}

	logoutRedirect := issuer + "/"
	if uris := client.PostLogoutRedirectURIs(); len(uris) > 0 {
		logoutRedirect = uris[0]
	}

	opConfig := &op.Config{
		CryptoKey:                cryptoKey,
		DefaultLogoutRedirectURI: logoutRedirect,
		CodeMethodS256:           true,
		AuthMethodPost:           true,
		GrantTypeRefreshToken:    true,
		SupportedScopes:          append(client.Scopes(), oidc.ScopeEmail),
		SupportedClaims:          slices.Concat(op.DefaultSupportedClaims, []string{ClaimUsername, ClaimAuthorities, ClaimScope}),
		DeviceAuthorization: op.DeviceAuthorizationConfig{
			Lifetime:     deviceCodeLifetime,
			PollInterval: devicePollInterval,
			UserFormURL:  issuer + policy.PathDeviceVerification,
			UserCode:     op.UserCodeBase20,
		},
	}

	options := []op.Option{
		op.WithCustomAuthEndpoint(op.NewEndpoint(policy.PathAuthorize)),
		op.WithCustomTokenEndpoint(op.NewEndpoint(policy.PathToken)),
		op.WithCustomIntrospectionEndpoint(op.NewEndpoint(policy.PathIntrospect)),
		op.WithCustomUserinfoEndpoint(op.NewEndpoint(policy.PathUserinfo)),
		op.WithCustomRevocationEndpoint(op.NewEndpoint(policy.PathRevoke)),
		op.WithCustomEndSessionEndpoint(op.NewEndpoint(policy.PathLogout)),
		op.WithCustomKeysEndpoint(op.NewEndpoint(policy.PathJWKS)),
		op.WithCustomDeviceAuthorizationEndpoint(op.NewEndpoint(policy.PathDeviceAuthorization)),
	}
	if !secure {
		options = append(options, op.WithAllowInsecure())
	}

	return op.NewProvider(opConfig, storage, op.StaticIssuer(issuer), options...)
}

// Issuer returns the issuer URL without a trailing slash.
func (i *Issuer) Issuer() string { return i.issuer }

// Client returns the registered client.
func (i *Issuer) Client() *RegisteredClient { return i.client }

// Storage returns the token store, which also answers revocation checks.
func (i *Issuer) Storage() *Storage { return i.storage }

// Sessions returns the browser session manager.
func (i *Issuer) Sessions() *Sessions { return i.sessions }

// ProtocolHandler serves the authorization-server chain: the library's
// endpoints plus consent, device verification, logout and client
// configuration.
func (i *Issuer) ProtocolHandler() http.Handler {
	r := chi.NewRouter()
	r.Get(policy.PathConsent, i.consentPage)
	r.Post(policy.PathConsent, i.consentDecision)
	r.Get(policy.PathDeviceVerification, i.devicePage)
	r.Post(policy.PathDeviceVerification, i.deviceDecision)
	r.HandleFunc(policy.PathLogout, i.endSession)
	r.HandleFunc(policy.PathRegister, i.clientConfiguration)
	r.Mount("/", i.protocol)
	return r
}

// LoginHandler serves the oauth2-login chain under /api/oauth2.
func (i *Issuer) LoginHandler() http.Handler {
	r := chi.NewRouter()
	r.Post(PathLogin, i.login)
	r.Post(PathLogoutSession, i.logout)
	r.Get(PathSession, i.currentSession)
	return r
}

// callbackURL is where the browser goes after consent; the library's
// callback handler turns the approved request into a code.
func (i *Issuer) callbackURL(requestID string) string {
	return i.issuer + policy.PathAuthorizeCallback + "?id=" + url.QueryEscape(requestID)
}

// endSession clears the browser session before the library's end-session
// handling redirects back to the client.
func (i *Issuer) endSession(w http.ResponseWriter, r *http.Request) {
	i.sessions.End(w)
	i.protocol.ServeHTTP(w, r)
}
