package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/bunx"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/migrations"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

const (
	testClientID     = "fitapi-web"
	testClientSecret = "fitapi-web-secret"
	testRedirectURI  = "http://localhost:3001/callback"
	testLoginURL     = "http://localhost:3001/login"
	testPassword     = "s3cret-password"
)

type testApp struct {
	*App
	cfg      *config.Config
	registry *prometheus.Registry
}

func testConfig(issuer string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{URL: ":memory:"},
		JWT: config.JWTConfig{
			Secret:               "0123456789abcdef0123456789abcdef",
			AccessTokenLifetime:  time.Hour,
			RefreshTokenLifetime: 24 * time.Hour,
		},
		OAuth2: config.OAuth2Config{
			Issuer:                 issuer,
			ClientID:               testClientID,
			ClientSecret:           testClientSecret,
			RedirectURIs:           []string{testRedirectURI},
			PostLogoutRedirectURIs: []string{"http://localhost:3001/"},
			DevMode:                true,
		},
		Frontend: config.FrontendConfig{LoginURL: testLoginURL},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:3001"}},
	}
}

// newTestApp wires the real service over an in-memory sqlite store seeded
// with one account per role.
func newTestApp(t *testing.T, issuer string) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	cfg := testConfig(issuer)
	registry := prometheus.NewRegistry()
	app, err := NewApp(cfg, db, registry, nil)
	require.NoError(t, err)

	hash, err := iam.HashPassword(testPassword)
	require.NoError(t, err)
	athleteID, coachID := int64(7), int64(3)
	for _, a := range []*models.Account{
		{Email: "athlete@example.com", Name: "Alex Athlete", Role: "ATHLETE", AthleteID: &athleteID},
		{Email: "coach@example.com", Name: "Casey Coach", Role: "COACH", CoachID: &coachID},
		{Email: "admin@example.com", Name: "Ada Admin", Role: "ADMIN"},
	} {
		a.PasswordHash = hash
		require.NoError(t, app.Accounts.Create(ctx, a))
	}

	return &testApp{App: app, cfg: cfg, registry: registry}
}

func (a *testApp) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, r)
	return rec
}

// legacyLogin returns the access and refresh tokens for email.
func (a *testApp) legacyLogin(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := a.do(t, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+testPassword+`"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken, resp.RefreshToken
}

func jsonRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

func withBearer(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func decodeMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}
