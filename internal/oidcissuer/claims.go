package oidcissuer

import (
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
)

const (
	ClaimUsername    = "username"
	ClaimAuthorities = "authorities"
	ClaimScope       = "scope"
)

// ClaimsHook returns the extra claims for one issued token. principal is nil
// when the token subject no longer resolves to an account.
type ClaimsHook func(principal *auth.Principal, client *RegisteredClient) map[string]any

// EnrichClaims is the service's claims hook. It adds username and the
// flattened authorities when a principal is present, and always pins iss to
// issuer and aud to the requesting client.
func EnrichClaims(issuer string) ClaimsHook {
	return func(principal *auth.Principal, client *RegisteredClient) map[string]any {
		claims := map[string]any{
			"iss": issuer,
			"aud": client.GetID(),
		}
		if principal != nil {
			claims[ClaimUsername] = principal.Email
			claims[ClaimAuthorities] = principal.Authorities()
		}
		return claims
	}
}
