package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/keys"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

const (
	testIssuer   = "http://localhost:8080"
	testClientID = "fitapi-web"
)

type activeSet map[string]bool

func (s activeSet) IsActive(jti string) bool { return s[jti] }

// accountSet resolves emails the way iam.CredentialVerifier does: missing
// and disabled accounts both report iam.ErrAccountNotFound.
type accountSet struct {
	accounts map[string]*models.Account
	err      error
}

func newAccountSet() *accountSet {
	return &accountSet{accounts: map[string]*models.Account{
		"coach@example.com": {ID: "acct-coach", Email: "coach@example.com", Role: "COACH"},
	}}
}

func (s *accountSet) Lookup(_ context.Context, email string) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	account, ok := s.accounts[email]
	if !ok || account.Disabled() {
		return nil, fmt.Errorf("%w: %s", iam.ErrAccountNotFound, email)
	}
	return account, nil
}

func (s *accountSet) disable(email string) {
	now := time.Now()
	s.accounts[email].DisabledAt = &now
}

func signRS256(t *testing.T, ks *keys.KeySet, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = ks.KeyID()
	signed, err := tok.SignedString(ks.PrivateKey())
	require.NoError(t, err)
	return signed
}

func protocolClaims(overrides jwt.MapClaims) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":         testIssuer,
		"sub":         "coach@example.com",
		"aud":         testClientID,
		"client_id":   testClientID,
		"exp":         now.Add(15 * time.Minute).Unix(),
		"iat":         now.Unix(),
		"jti":         "jti-1",
		"scope":       "openid profile workouts.read",
		"username":    "coach@example.com",
		"authorities": []string{"ROLE_COACH"},
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return claims
}

type scopedFixture struct {
	authn    *ScopedBearerAuthenticator
	keys     *keys.KeySet
	active   activeSet
	accounts *accountSet
}

func newScopedFixture(t *testing.T) scopedFixture {
	t.Helper()
	ks, err := keys.Generate()
	require.NoError(t, err)
	jwks, err := ks.JWKSJSON()
	require.NoError(t, err)
	active := activeSet{"jti-1": true}
	accounts := newAccountSet()
	a, err := NewScopedBearerAuthenticator(jwks, testIssuer, testClientID, active, accounts, nil)
	require.NoError(t, err)
	return scopedFixture{authn: a, keys: ks, active: active, accounts: accounts}
}

func requestWithBearer(tok string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/openid/userinfo", nil)
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	return r
}

func TestScopedBearer_ValidToken(t *testing.T) {
	f := newScopedFixture(t)

	result := f.authn.AuthenticateRequest(requestWithBearer(signRS256(t, f.keys, protocolClaims(nil))))
	require.True(t, result.Authenticated(), "reason: %s", result.Reason())

	p, _ := result.Principal()
	assert.Equal(t, "acct-coach", p.ID)
	assert.Equal(t, "coach@example.com", p.Email)
	assert.Equal(t, auth.RoleCoach, p.Role)
	assert.Equal(t, []string{"openid", "profile", "workouts.read"}, p.Scopes)
	assert.Equal(t, testClientID, p.ClientID)
	assert.Equal(t, auth.SchemeProtocolBearer, p.Scheme)
	assert.True(t, p.HasAnyScope("openid"))
}

func TestScopedBearer_Rejections(t *testing.T) {
	f := newScopedFixture(t)
	a, ks := f.authn, f.keys
	other, err := keys.Generate()
	require.NoError(t, err)

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, protocolClaims(nil)).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   auth.Reason
	}{
		{"no header", "", auth.ReasonNoCredentials},
		{"basic", "Basic dXNlcjpwYXNz", auth.ReasonNotBearer},
		{"garbage", "Bearer not-a-jwt", auth.ReasonMalformedToken},
		{"wrong key", "Bearer " + signRS256(t, other, protocolClaims(nil)), auth.ReasonMalformedToken},
		{"hs256", "Bearer " + hs, auth.ReasonMalformedToken},
		{"wrong issuer", "Bearer " + signRS256(t, ks, protocolClaims(jwt.MapClaims{"iss": "http://evil"})), auth.ReasonMalformedToken},
		{"wrong audience", "Bearer " + signRS256(t, ks, protocolClaims(jwt.MapClaims{"aud": "other"})), auth.ReasonMalformedToken},
		{"expired", "Bearer " + signRS256(t, ks, protocolClaims(jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})), auth.ReasonExpiredToken},
		{"no expiry", "Bearer " + signRS256(t, ks, protocolClaims(jwt.MapClaims{"exp": nil})), auth.ReasonMalformedToken},
		{"no subject", "Bearer " + signRS256(t, ks, protocolClaims(jwt.MapClaims{"sub": nil})), auth.ReasonEmptySubject},
		{"revoked", "Bearer " + signRS256(t, ks, protocolClaims(jwt.MapClaims{"jti": "jti-2"})), auth.ReasonRevokedToken},
		{"unknown account", "Bearer " + signRS256(t, ks, protocolClaims(jwt.MapClaims{"sub": "ghost@example.com"})), auth.ReasonAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/openid/userinfo", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			result := a.AuthenticateRequest(r)
			assert.False(t, result.Authenticated())
			assert.Equal(t, tt.want, result.Reason())
		})
	}
}

func TestScopedBearer_RevokedAfterIssue(t *testing.T) {
	f := newScopedFixture(t)
	tok := signRS256(t, f.keys, protocolClaims(nil))

	require.True(t, f.authn.AuthenticateRequest(requestWithBearer(tok)).Authenticated())
	delete(f.active, "jti-1")
	assert.Equal(t, auth.ReasonRevokedToken, f.authn.AuthenticateRequest(requestWithBearer(tok)).Reason())
}

func TestScopedBearer_DisabledAfterIssue(t *testing.T) {
	f := newScopedFixture(t)
	tok := signRS256(t, f.keys, protocolClaims(nil))

	require.True(t, f.authn.AuthenticateRequest(requestWithBearer(tok)).Authenticated())
	f.accounts.disable("coach@example.com")

	result := f.authn.AuthenticateRequest(requestWithBearer(tok))
	assert.False(t, result.Authenticated())
	assert.Equal(t, auth.ReasonAccountNotFound, result.Reason())
}

func TestScopedBearer_RoleFollowsAccount(t *testing.T) {
	f := newScopedFixture(t)
	tok := signRS256(t, f.keys, protocolClaims(nil))
	f.accounts.accounts["coach@example.com"].Role = "ATHLETE"

	result := f.authn.AuthenticateRequest(requestWithBearer(tok))
	require.True(t, result.Authenticated(), "reason: %s", result.Reason())
	p, _ := result.Principal()
	assert.Equal(t, auth.RoleAthlete, p.Role)
}

func TestScopedBearer_LookupFailure(t *testing.T) {
	f := newScopedFixture(t)
	tok := signRS256(t, f.keys, protocolClaims(nil))
	f.accounts.err = errors.New("database is locked")

	assert.Equal(t, auth.ReasonInternalError, f.authn.AuthenticateRequest(requestWithBearer(tok)).Reason())
}

func TestNewScopedBearerAuthenticator_RequiresAccounts(t *testing.T) {
	ks, err := keys.Generate()
	require.NoError(t, err)
	jwks, err := ks.JWKSJSON()
	require.NoError(t, err)

	_, err = NewScopedBearerAuthenticator(jwks, testIssuer, testClientID, nil, nil, nil)
	assert.Error(t, err)
}

func TestStringsClaim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringsClaim("a  b"))
	assert.Equal(t, []string{"a", "b"}, stringsClaim([]any{"a", 3, "b", ""}))
	assert.Nil(t, stringsClaim(42))
}
