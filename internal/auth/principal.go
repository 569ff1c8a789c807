package auth

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the single primary role of an account.
type Role string

const (
	RoleAthlete Role = "ATHLETE"
	RoleCoach   Role = "COACH"
	RoleAdmin   Role = "ADMIN"
)

const (
	rolePrefix  = "ROLE_"
	scopePrefix = "SCOPE_"
)

// ParseRole accepts a role name in any case, with or without the ROLE_ prefix.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), rolePrefix))
	switch r {
	case RoleAthlete, RoleCoach, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Authority returns the granted-authority string for the role, e.g. ROLE_COACH.
func (r Role) Authority() string {
	return rolePrefix + string(r)
}

// ScopeAuthority returns the granted-authority string for a protocol scope.
func ScopeAuthority(scope string) string {
	return scopePrefix + scope
}

// Scheme identifies how a principal was established.
type Scheme string

const (
	// SchemeLegacyBearer is the HMAC bearer token used by the mobile API.
	SchemeLegacyBearer Scheme = "legacy_bearer"
	// SchemeProtocolBearer is an RS256 access token from the protocol issuer.
	SchemeProtocolBearer Scheme = "protocol_bearer"
	// SchemeSession is the browser session on the protocol surface.
	SchemeSession Scheme = "session"
)

// Principal is the authenticated actor for one request. It is built per
// request and never persisted; pass it by value.
type Principal struct {
	// ID is the account ID. Empty for protocol tokens whose subject no longer
	// resolves to an account.
	ID string
	// Email is the canonical identifier and the token subject.
	Email string
	Role  Role
	// Scopes granted by a protocol token. Empty for legacy and session principals.
	Scopes []string
	// ClientID is the protocol client the token was issued to.
	ClientID string
	Scheme   Scheme
}

// Authorities flattens role and scopes into granted-authority strings.
func (p Principal) Authorities() []string {
	out := make([]string, 0, len(p.Scopes)+1)
	if p.Role != "" {
		out = append(out, p.Role.Authority())
	}
	for _, s := range p.Scopes {
		out = append(out, ScopeAuthority(s))
	}
	return out
}

// HasAnyRole reports whether the principal's role is one of roles.
func (p Principal) HasAnyRole(roles ...Role) bool {
	return p.Role != "" && slices.Contains(roles, p.Role)
}

// HasAnyScope reports whether any of scopes was granted.
func (p Principal) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if slices.Contains(p.Scopes, s) {
			return true
		}
	}
	return false
}

func (p Principal) clone() Principal {
	p.Scopes = slices.Clone(p.Scopes)
	return p
}
