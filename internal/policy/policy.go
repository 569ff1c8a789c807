// Package policy selects and evaluates the security chain for a request.
//
// A Selector holds an ordered list of chains. The first chain whose matcher
// accepts the request is the only one applied; exactly one catch-all chain
// sits last. Each chain holds ordered rules that pair a request matcher with a
// Policy. Everything in this package is a pure function of method, path and
// principal, so it is safe for concurrent use without locking.
package policy

import (
	"fmt"
	"strings"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
)

// Decision is the outcome of evaluating a Policy.
type Decision int

const (
	// Allow lets the request through.
	Allow Decision = iota
	// NoCredentials means the policy needs a principal and there is none.
	NoCredentials
	// InsufficientRole means a principal exists but has none of the roles.
	InsufficientRole
	// InsufficientScope means a principal exists but lacks every scope.
	InsufficientScope
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case NoCredentials:
		return "no_credentials"
	case InsufficientRole:
		return "insufficient_role"
	case InsufficientScope:
		return "insufficient_scope"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Forbidden reports whether d should be answered with 403.
func (d Decision) Forbidden() bool {
	return d == InsufficientRole || d == InsufficientScope
}

// Policy is one of Public, RequireAuthentication, RequireRole or
// RequireScope.
type Policy interface {
	fmt.Stringer
	isPolicy()
}

// Public admits anonymous requests.
type Public struct{}

// RequireAuthentication admits any principal.
type RequireAuthentication struct{}

// RequireRole admits principals holding any of Roles.
type RequireRole struct {
	Roles []auth.Role
}

// RequireScope admits principals granted any of Scopes.
type RequireScope struct {
	Scopes []string
}

func (Public) isPolicy()                {}
func (RequireAuthentication) isPolicy() {}
func (RequireRole) isPolicy()           {}
func (RequireScope) isPolicy()          {}

func (Public) String() string                { return "permitAll" }
func (RequireAuthentication) String() string { return "authenticated" }

func (r RequireRole) String() string {
	names := make([]string, len(r.Roles))
	for i, role := range r.Roles {
		names[i] = string(role)
	}
	return "hasAnyRole(" + strings.Join(names, ",") + ")"
}

func (r RequireScope) String() string {
	return "hasAnyScope(" + strings.Join(r.Scopes, ",") + ")"
}

// HasRole is shorthand for RequireRole with the given roles.
func HasRole(roles ...auth.Role) RequireRole { return RequireRole{Roles: roles} }

// HasScope is shorthand for RequireScope with the given scopes.
func HasScope(scopes ...string) RequireScope { return RequireScope{Scopes: scopes} }

// Evaluate applies pol to an optional principal.
func Evaluate(pol Policy, principal *auth.Principal) Decision {
	switch p := pol.(type) {
	case Public:
		return Allow
	case RequireAuthentication:
		if principal == nil {
			return NoCredentials
		}
		return Allow
	case RequireRole:
		if principal == nil {
			return NoCredentials
		}
		if !principal.HasAnyRole(p.Roles...) {
			return InsufficientRole
		}
		return Allow
	case RequireScope:
		if principal == nil {
			return NoCredentials
		}
		if !principal.HasAnyScope(p.Scopes...) {
			return InsufficientScope
		}
		return Allow
	}
	// Unknown variants deny.
	if principal == nil {
		return NoCredentials
	}
	return InsufficientRole
}
