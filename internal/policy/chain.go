package policy

import (
	"errors"
	"fmt"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
)

// ErrOverlappingChains is returned when two prefixed chains could both match
// the same request.
var ErrOverlappingChains = errors.New("policy: chains overlap")

// SessionPolicy controls whether a chain may use a server-side session.
type SessionPolicy int

const (
	// Stateless chains never read or create a session.
	Stateless SessionPolicy = iota
	// SessionIfRequired chains read an existing session and create one only
	// when a handler asks for it (e.g. interactive login).
	SessionIfRequired
)

// Rule pairs a matcher with the policy applied when it matches.
type Rule struct {
	Matcher RequestMatcher
	Policy  Policy
}

// Chain is one independently configured guard chain.
type Chain struct {
	Name string
	// Matcher selects requests for this chain. The zero value is a catch-all.
	Matcher RequestMatcher
	Session SessionPolicy
	// CSRF enables cross-site request forgery protection for the chain.
	CSRF bool
	// Rules are evaluated in order; the first match decides.
	Rules []Rule
	// Default applies when no rule matches. Nil means RequireAuthentication.
	Default Policy
}

// Matches reports whether the chain applies to the request.
func (c *Chain) Matches(method, urlPath string) bool {
	return c.Matcher.Matches(method, urlPath)
}

// PolicyFor returns the policy of the first matching rule.
func (c *Chain) PolicyFor(method, urlPath string) Policy {
	for _, rule := range c.Rules {
		if rule.Matcher.Matches(method, urlPath) {
			return rule.Policy
		}
	}
	if c.Default != nil {
		return c.Default
	}
	return RequireAuthentication{}
}

// Authorize evaluates the chain's policy for the request.
func (c *Chain) Authorize(method, urlPath string, principal *auth.Principal) Decision {
	return Evaluate(c.PolicyFor(method, urlPath), principal)
}

// Selector picks the chain for a request.
type Selector struct {
	chains []*Chain
}

// NewSelector validates the chain order: every chain but the last matches on
// explicit, mutually disjoint prefixes, and the last is the only catch-all.
func NewSelector(chains ...*Chain) (*Selector, error) {
	if len(chains) == 0 {
		return nil, errors.New("policy: at least one chain is required")
	}
	last := chains[len(chains)-1]
	if !last.Matcher.IsCatchAll() {
		return nil, fmt.Errorf("policy: last chain %q must be a catch-all", last.Name)
	}

	prefixed := chains[:len(chains)-1]
	for i, c := range prefixed {
		if len(c.Matcher.Patterns) == 0 {
			return nil, fmt.Errorf("policy: chain %q has no path prefix and would shadow later chains", c.Name)
		}
		for _, other := range prefixed[i+1:] {
			for _, a := range c.Matcher.Patterns {
				for _, b := range other.Matcher.Patterns {
					if prefixesOverlap(literalPrefix(a), literalPrefix(b)) {
						return nil, fmt.Errorf("%w: %q (%s) and %q (%s)", ErrOverlappingChains, c.Name, a, other.Name, b)
					}
				}
			}
		}
	}

	return &Selector{chains: append([]*Chain(nil), chains...)}, nil
}

// Select returns the first chain that matches. It never returns nil.
func (s *Selector) Select(method, urlPath string) *Chain {
	for _, c := range s.chains {
		if c.Matches(method, urlPath) {
			return c
		}
	}
	return s.chains[len(s.chains)-1]
}

// Chains returns the chains in evaluation order.
func (s *Selector) Chains() []*Chain {
	return append([]*Chain(nil), s.chains...)
}
