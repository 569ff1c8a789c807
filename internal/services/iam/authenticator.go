package iam

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/token"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/telemetry"
)

const bearerPrefix = "Bearer "

// BearerAuthenticator authenticates requests carrying a legacy bearer token.
//
// States:
//
//	no header              → Unauthenticated(no_credentials)
//	header, not Bearer     → Unauthenticated(not_bearer)
//	Bearer → decode        → Unauthenticated(malformed_token | empty_subject)
//	decode → resolve       → Unauthenticated(account_not_found)
//	resolve → validate     → Authenticated | Unauthenticated(expired_token | subject_mismatch)
//
// It never returns an error: every failure, including a panic in a
// collaborator, becomes an Unauthenticated result.
type BearerAuthenticator struct {
	codec    *token.Codec
	accounts AccountLookup
	logger   *slog.Logger
}

// NewBearerAuthenticator creates the legacy bearer authenticator.
func NewBearerAuthenticator(codec *token.Codec, accounts AccountLookup, logger *slog.Logger) *BearerAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BearerAuthenticator{codec: codec, accounts: accounts, logger: logger}
}

// Authenticate runs the state machine over the request headers.
func (a *BearerAuthenticator) Authenticate(ctx context.Context, headers http.Header) (result auth.Result) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Authenticate",
		attribute.String(telemetry.AttrAuthScheme, string(auth.SchemeLegacyBearer)),
	)
	defer func() {
		span.SetAttributes(attribute.String(telemetry.AttrAuthOutcome, result.Outcome()))
		span.End()
	}()
	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "panic during bearer authentication", "panic", r)
			result = auth.Unauthenticated(auth.ReasonInternalError)
		}
	}()

	header := headers.Get("Authorization")
	if header == "" {
		return auth.Unauthenticated(auth.ReasonNoCredentials)
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return auth.Unauthenticated(auth.ReasonNotBearer)
	}

	raw, err := oidctoken.GetTokenString(headers.Get, [][]options.TokenStringOption{{}})
	if err != nil {
		return auth.Unauthenticated(auth.ReasonMalformedToken)
	}

	claims, err := a.codec.Decode(strings.TrimSpace(raw))
	if err != nil {
		return auth.Unauthenticated(auth.ReasonMalformedToken)
	}
	subject, ok := claims.Subject()
	if !ok {
		return auth.Unauthenticated(auth.ReasonEmptySubject)
	}

	account, err := a.accounts.Lookup(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return auth.Unauthenticated(auth.ReasonAccountNotFound)
		}
		a.logger.WarnContext(ctx, "account lookup failed during bearer authentication", "error", err)
		telemetry.RecordError(span, err)
		return auth.Unauthenticated(auth.ReasonInternalError)
	}

	if err := a.codec.Validate(claims, account.Email); err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return auth.Unauthenticated(auth.ReasonExpiredToken)
		}
		return auth.Unauthenticated(auth.ReasonSubjectMismatch)
	}

	principal, err := PrincipalFor(account, auth.SchemeLegacyBearer)
	if err != nil {
		a.logger.WarnContext(ctx, "account has no usable role", "error", err)
		return auth.Unauthenticated(auth.ReasonInternalError)
	}
	return auth.Authenticated(principal)
}

// AuthenticateRequest adapts Authenticate to the per-chain filter.
func (a *BearerAuthenticator) AuthenticateRequest(r *http.Request) auth.Result {
	return a.Authenticate(r.Context(), r.Header)
}

// Scheme labels the authenticator in metrics.
func (a *BearerAuthenticator) Scheme() auth.Scheme { return auth.SchemeLegacyBearer }
