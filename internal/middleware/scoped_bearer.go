package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

// TokenActivity reports whether a protocol access token, by jti, is still
// known to the issuer. Revoked and expired tokens are not.
type TokenActivity interface {
	IsActive(jti string) bool
}

// ScopedBearerAuthenticator verifies RS256 access tokens minted by the
// service's own issuer against its published key set. The token subject
// must still resolve to an enabled account; role and id come from that
// account, scopes and client from the token.
type ScopedBearerAuthenticator struct {
	keyfunc  keyfunc.Keyfunc
	parser   *jwt.Parser
	activity TokenActivity
	accounts iam.AccountLookup
	logger   *slog.Logger
}

// NewScopedBearerAuthenticator builds a verifier over jwks. activity may be
// nil, in which case any signed unexpired token is accepted.
func NewScopedBearerAuthenticator(jwks json.RawMessage, issuer, audience string, activity TokenActivity, accounts iam.AccountLookup, logger *slog.Logger) (*ScopedBearerAuthenticator, error) {
	if accounts == nil {
		return nil, fmt.Errorf("protocol bearer requires an account lookup")
	}
	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		return nil, fmt.Errorf("load issuer key set: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScopedBearerAuthenticator{
		keyfunc: kf,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
		activity: activity,
		accounts: accounts,
		logger:   logger,
	}, nil
}

// Scheme labels the authenticator in metrics.
func (a *ScopedBearerAuthenticator) Scheme() auth.Scheme { return auth.SchemeProtocolBearer }

// AuthenticateRequest verifies the bearer token of r.
func (a *ScopedBearerAuthenticator) AuthenticateRequest(r *http.Request) (result auth.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.ErrorContext(r.Context(), "panic during protocol bearer authentication", "panic", rec)
			result = auth.Unauthenticated(auth.ReasonInternalError)
		}
	}()

	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Unauthenticated(auth.ReasonNoCredentials)
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Unauthenticated(auth.ReasonNotBearer)
	}
	raw, err := oidctoken.GetTokenString(r.Header.Get, [][]options.TokenStringOption{{}})
	if err != nil {
		return auth.Unauthenticated(auth.ReasonMalformedToken)
	}

	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.keyfunc.Keyfunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.Unauthenticated(auth.ReasonExpiredToken)
		}
		return auth.Unauthenticated(auth.ReasonMalformedToken)
	}

	subject, _ := claims.GetSubject()
	if strings.TrimSpace(subject) == "" {
		return auth.Unauthenticated(auth.ReasonEmptySubject)
	}
	if a.activity != nil {
		jti, _ := claims["jti"].(string)
		if jti == "" || !a.activity.IsActive(jti) {
			return auth.Unauthenticated(auth.ReasonRevokedToken)
		}
	}

	ctx := r.Context()
	account, err := a.accounts.Lookup(ctx, subject)
	if err != nil {
		if errors.Is(err, iam.ErrAccountNotFound) {
			return auth.Unauthenticated(auth.ReasonAccountNotFound)
		}
		a.logger.WarnContext(ctx, "account lookup failed during protocol bearer authentication", "error", err)
		return auth.Unauthenticated(auth.ReasonInternalError)
	}
	principal, err := iam.PrincipalFor(account, auth.SchemeProtocolBearer)
	if err != nil {
		a.logger.WarnContext(ctx, "account has no usable role", "error", err)
		return auth.Unauthenticated(auth.ReasonInternalError)
	}
	return auth.Authenticated(withTokenGrant(principal, claims))
}

// withTokenGrant copies the scopes and client of the token onto p.
func withTokenGrant(p auth.Principal, claims jwt.MapClaims) auth.Principal {
	p.Scopes = stringsClaim(claims["scope"])
	if clientID, ok := claims["client_id"].(string); ok && clientID != "" {
		p.ClientID = clientID
	} else if aud, err := claims.GetAudience(); err == nil && len(aud) > 0 {
		p.ClientID = aud[0]
	}
	return p
}

// stringsClaim accepts a space-delimited string or a JSON array of strings.
func stringsClaim(v any) []string {
	switch value := v.(type) {
	case string:
		return strings.Fields(value)
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return value
	}
	return nil
}
