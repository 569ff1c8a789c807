package oidcissuer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/crypto/bcrypt"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/keys"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

const (
	testIssuer       = "http://localhost:8080"
	testClientID     = "fitapi-web"
	testClientSecret = "fitapi-secret"
	testRedirectURI  = "http://localhost:3000/callback"
	testPassword     = "correct horse"
)

// fakeAccounts is an in-memory CredentialVerifier keyed by email.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newFakeAccounts(t *testing.T, accounts ...*models.Account) *fakeAccounts {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	f := &fakeAccounts{accounts: map[string]*models.Account{}}
	for _, a := range accounts {
		a.PasswordHash = string(hash)
		f.accounts[a.Email] = a
	}
	return f
}

func (f *fakeAccounts) Lookup(ctx context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[strings.ToLower(email)]
	if !ok || a.Disabled() {
		return nil, fmt.Errorf("%w: %s", iam.ErrAccountNotFound, email)
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAccounts) Verify(ctx context.Context, email, password string) (*models.Account, error) {
	f.mu.Lock()
	a, ok := f.accounts[strings.ToLower(email)]
	f.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, iam.ErrInvalidCredentials
	}
	if a.Disabled() {
		return nil, iam.ErrAccountDisabled
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAccounts) disable(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.accounts[email].DisabledAt = &now
}

func coachAccount() *models.Account {
	return &models.Account{ID: "acc-coach", Email: "coach@example.com", Name: "Casey Coach", Role: "COACH"}
}

func athleteAccount() *models.Account {
	return &models.Account{ID: "acc-athlete", Email: "athlete@example.com", Name: "Alex Athlete", Role: "ATHLETE"}
}

func testOAuth2Config() config.OAuth2Config {
	return config.OAuth2Config{
		Issuer:                 testIssuer,
		ClientID:               testClientID,
		ClientSecret:           testClientSecret,
		RedirectURIs:           []string{testRedirectURI},
		PostLogoutRedirectURIs: []string{"http://localhost:3000/"},
		DevMode:                true,
	}
}

func newTestStorage(t *testing.T, accounts *fakeAccounts) *Storage {
	t.Helper()
	client, err := NewRegisteredClient(testOAuth2Config())
	require.NoError(t, err)
	keySet, err := keys.Generate()
	require.NoError(t, err)
	s, err := NewStorage(StorageDeps{
		Client:   client,
		Keys:     keySet,
		Accounts: accounts,
		Claims:   EnrichClaims(testIssuer),
	})
	require.NoError(t, err)
	return s
}

func newTestIssuer(t *testing.T, accounts *fakeAccounts) *Issuer {
	t.Helper()
	keySet, err := keys.Generate()
	require.NoError(t, err)
	issuer, err := New(Options{
		Config:   testOAuth2Config(),
		Keys:     keySet,
		Verifier: accounts,
	})
	require.NoError(t, err)
	return issuer
}

// pkceRequest is an authorization request as the library hands it to
// CreateAuthRequest.
func pkceRequest(scopes ...string) *oidc.AuthRequest {
	return &oidc.AuthRequest{
		Scopes:              oidc.SpaceDelimitedArray(scopes),
		ResponseType:        oidc.ResponseTypeCode,
		ClientID:            testClientID,
		RedirectURI:         testRedirectURI,
		State:               "af0ifjsldkj",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: oidc.CodeChallengeMethodS256,
	}
}

// signedIn starts a session for email on a recorder and returns the cookie
// and its CSRF token.
func signedIn(t *testing.T, sessions *Sessions, email string) (*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	csrf, err := sessions.Begin(rec, email)
	require.NoError(t, err)
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c, csrf
		}
	}
	t.Fatalf("session cookie %s not set", SessionCookieName)
	return nil, ""
}

func withPrincipal(r *http.Request, email string, role auth.Role) *http.Request {
	p := auth.Principal{Email: email, Role: role, Scheme: auth.SchemeSession}
	return r.WithContext(auth.WithPrincipal(r.Context(), p))
}
