package oidcissuer

import (
	"fmt"
	"slices"
	"time"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"github.com/zitadel/oidc/v3/pkg/op"
	"golang.org/x/crypto/bcrypt"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/policy"
)

const (
	// AccessTokenLifetime bounds every access token the issuer signs.
	AccessTokenLifetime = 15 * time.Minute
	// RefreshTokenLifetime is counted from the first issue of a refresh
	// token. Refresh tokens are reused, not rotated.
	RefreshTokenLifetime = 60 * time.Minute
	IDTokenLifetime      = 15 * time.Minute

	// ScopeWorkoutsRead and the other domain scopes grant read access to one
	// resource family each.
	ScopeWorkoutsRead    = "workouts.read"
	ScopeProgramsRead    = "programs.read"
	ScopeAssessmentsRead = "assessments.read"
	ScopeAthletesRead    = "athletes.read"
)

// DomainScopes lists the read scopes the registered client may request in
// addition to openid and profile.
var DomainScopes = []string{ScopeWorkoutsRead, ScopeProgramsRead, ScopeAssessmentsRead, ScopeAthletesRead}

// RegisteredClient is the single confidential client provisioned at startup.
// It is read-only after construction and shared by the storage and the HTTP
// handlers.
type RegisteredClient struct {
	id                     string
	secretHash             []byte
	redirectURIs           []string
	postLogoutRedirectURIs []string
	scopes                 []string
	devMode                bool
}

// NewRegisteredClient provisions the client described by cfg. The secret is
// kept only as a bcrypt hash.
func NewRegisteredClient(cfg config.OAuth2Config) (*RegisteredClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("registered client needs an id and a secret")
	}
	if len(cfg.RedirectURIs) == 0 {
		return nil, fmt.Errorf("registered client %s has no redirect uris", cfg.ClientID)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.ClientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash client secret: %w", err)
	}

	scopes := []string{oidc.ScopeOpenID, oidc.ScopeProfile}
	scopes = append(scopes, DomainScopes...)
	scopes = append(scopes, oidc.ScopeOfflineAccess)

	return &RegisteredClient{
		id:                     cfg.ClientID,
		secretHash:             hash,
		redirectURIs:           slices.Clone(cfg.RedirectURIs),
		postLogoutRedirectURIs: slices.Clone(cfg.PostLogoutRedirectURIs),
		scopes:                 scopes,
		devMode:                cfg.DevMode,
	}, nil
}

// VerifySecret reports whether secret matches the provisioned one.
func (c *RegisteredClient) VerifySecret(secret string) bool {
	return bcrypt.CompareHashAndPassword(c.secretHash, []byte(secret)) == nil
}

// Scopes returns the scopes the client may be granted.
func (c *RegisteredClient) Scopes() []string {
	return slices.Clone(c.scopes)
}

func (c *RegisteredClient) GetID() string {
	return c.id
}

func (c *RegisteredClient) RedirectURIs() []string {
	return slices.Clone(c.redirectURIs)
}

func (c *RegisteredClient) PostLogoutRedirectURIs() []string {
	return slices.Clone(c.postLogoutRedirectURIs)
}

func (c *RegisteredClient) ApplicationType() op.ApplicationType {
	return op.ApplicationTypeWeb
}

func (c *RegisteredClient) AuthMethod() oidc.AuthMethod {
	return oidc.AuthMethodBasic
}

func (c *RegisteredClient) ResponseTypes() []oidc.ResponseType {
	return []oidc.ResponseType{oidc.ResponseTypeCode}
}

func (c *RegisteredClient) GrantTypes() []oidc.GrantType {
	return []oidc.GrantType{
		oidc.GrantTypeCode,
		oidc.GrantTypeRefreshToken,
		oidc.GrantTypeDeviceCode,
	}
}

// LoginURL sends the browser to the consent page once the library has
// stored the authorization request. The session check happens there.
func (c *RegisteredClient) LoginURL(requestID string) string {
	return policy.PathConsent + "?id=" + requestID
}

func (c *RegisteredClient) AccessTokenType() op.AccessTokenType {
	return op.AccessTokenTypeJWT
}

func (c *RegisteredClient) IDTokenLifetime() time.Duration {
	return IDTokenLifetime
}

func (c *RegisteredClient) DevMode() bool {
	return c.devMode
}

func (c *RegisteredClient) RestrictAdditionalIdTokenScopes() func(scopes []string) []string {
	return func(scopes []string) []string { return scopes }
}

func (c *RegisteredClient) RestrictAdditionalAccessTokenScopes() func(scopes []string) []string {
	return func(scopes []string) []string { return scopes }
}

func (c *RegisteredClient) IsScopeAllowed(scope string) bool {
	return slices.Contains(c.scopes, scope)
}

func (c *RegisteredClient) IDTokenUserinfoClaimsAssertion() bool {
	return false
}

func (c *RegisteredClient) ClockSkew() time.Duration {
	return 0
}
