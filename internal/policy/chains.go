package policy

import (
	"net/http"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
)

// Chain names, in evaluation order.
const (
	ChainAuthorizationServer = "authorization-server"
	ChainOAuth2Login         = "oauth2-login"
	ChainOpenIDAPI           = "openid-api"
	ChainDefault             = "default"
)

// Protocol surface paths.
const (
	PathAuthorize           = "/oauth2/authorize"
	PathAuthorizeCallback   = "/oauth2/authorize/callback"
	PathToken               = "/oauth2/token"
	PathIntrospect          = "/oauth2/introspect"
	PathRevoke              = "/oauth2/revoke"
	PathJWKS                = "/oauth2/jwks"
	PathDeviceAuthorization = "/oauth2/device_authorization"
	PathDeviceVerification  = "/oauth2/device_verification"
	PathConsent             = "/oauth2/consent"
	PathLogout              = "/connect/logout"
	PathRegister            = "/connect/register"
	PathUserinfo            = "/userinfo"
)

// ScopeOpenID is required under the openid API sub-tree.
const ScopeOpenID = "openid"

// StandardChains returns the service's four chains in priority order.
//
//  1. authorization-server: the protocol endpoints
//  2. oauth2-login: public login flow for the protocol session
//  3. openid-api: protocol bearer tokens, scope openid
//  4. default: legacy bearer API and public utility endpoints
func StandardChains() []*Chain {
	return []*Chain{
		{
			Name:    ChainAuthorizationServer,
			Matcher: Paths("/oauth2/**", "/connect/**", PathUserinfo, "/.well-known/**"),
			Session: SessionIfRequired,
			CSRF:    true,
			Rules: []Rule{
				{Matcher: Paths(PathAuthorize+"/**", PathConsent, PathDeviceVerification), Policy: RequireAuthentication{}},
				{Matcher: Paths(PathUserinfo, PathRegister), Policy: RequireAuthentication{}},
			},
			Default: Public{},
		},
		{
			Name:    ChainOAuth2Login,
			Matcher: Paths("/api/oauth2/**"),
			Session: SessionIfRequired,
			Default: Public{},
		},
		{
			Name:    ChainOpenIDAPI,
			Matcher: Paths("/api/openid/**"),
			Session: Stateless,
			Rules: []Rule{
				{Matcher: Paths("/api/openid/userinfo"), Policy: HasScope(ScopeOpenID)},
			},
			Default: RequireAuthentication{},
		},
		{
			Name:    ChainDefault,
			Matcher: AnyRequest(),
			Session: Stateless,
			Rules: []Rule{
				{Matcher: AnyRequest().WithMethods(http.MethodOptions), Policy: Public{}},
				{Matcher: Paths(
					"/api/auth/**",
					"/h2-console/**",
					"/swagger-ui/**", "/swagger-ui.html", "/v3/api-docs/**",
					"/health", "/actuator/health", "/metrics",
				), Policy: Public{}},
				{Matcher: Paths("/api/admin/**"), Policy: HasRole(auth.RoleAdmin)},
				{Matcher: Paths("/api/coach/**"), Policy: HasRole(auth.RoleCoach)},
				{Matcher: Paths("/api/athlete/**"), Policy: HasRole(auth.RoleAthlete)},
				{Matcher: Paths("/api/exercises/**").WithMethods(SafeMethods...), Policy: RequireAuthentication{}},
				{Matcher: Paths("/api/exercises/**").WithMethods(MutatingMethods...), Policy: HasRole(auth.RoleCoach, auth.RoleAdmin)},
			},
			Default: RequireAuthentication{},
		},
	}
}

// NewStandardSelector builds a Selector over StandardChains.
func NewStandardSelector() (*Selector, error) {
	return NewSelector(StandardChains()...)
}
