package iam

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/token"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type panickingLookup struct{}

func (panickingLookup) Lookup(context.Context, string) (*models.Account, error) {
	panic("boom")
}

func newAuthFixture(t *testing.T) (*BearerAuthenticator, *token.Codec, *mockAccountRepository, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	codec, err := token.NewCodec(testSecret, token.WithClock(clock.Now))
	require.NoError(t, err)
	repo := newMockAccountRepository()
	authn := NewBearerAuthenticator(codec, NewCredentialVerifier(repo, nil), nil)
	return authn, codec, repo, clock
}

func bearer(tok string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok)
	return h
}

func TestBearerAuthenticator_States(t *testing.T) {
	authn, codec, repo, _ := newAuthFixture(t)
	repo.addAccount(t, "acc-1", "athlete@example.com", "ATHLETE")

	valid, err := codec.Issue("athlete@example.com", map[string]any{token.ClaimRole: "ATHLETE"}, time.Hour)
	require.NoError(t, err)
	unknown, err := codec.Issue("ghost@example.com", nil, time.Hour)
	require.NoError(t, err)
	noSubject, err := codec.Issue("", nil, time.Hour)
	require.NoError(t, err)

	basic := http.Header{}
	basic.Set("Authorization", "Basic dXNlcjpwYXNz")
	emptyBearer := http.Header{}
	emptyBearer.Set("Authorization", "Bearer ")

	tests := []struct {
		name    string
		headers http.Header
		want    auth.Reason
	}{
		{name: "no header", headers: http.Header{}, want: auth.ReasonNoCredentials},
		{name: "basic scheme", headers: basic, want: auth.ReasonNotBearer},
		{name: "empty bearer", headers: emptyBearer, want: auth.ReasonMalformedToken},
		{name: "garbage", headers: bearer("abc.def.ghi"), want: auth.ReasonMalformedToken},
		{name: "empty subject", headers: bearer(noSubject), want: auth.ReasonEmptySubject},
		{name: "unknown account", headers: bearer(unknown), want: auth.ReasonAccountNotFound},
		{name: "valid", headers: bearer(valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := authn.Authenticate(context.Background(), tt.headers)
			if tt.want == "" {
				require.True(t, result.Authenticated(), "reason: %s", result.Reason())
				p, _ := result.Principal()
				assert.Equal(t, "athlete@example.com", p.Email)
				assert.Equal(t, auth.RoleAthlete, p.Role)
				assert.Equal(t, auth.SchemeLegacyBearer, p.Scheme)
				return
			}
			assert.False(t, result.Authenticated())
			assert.Equal(t, tt.want, result.Reason())
		})
	}
}

func TestBearerAuthenticator_Expired(t *testing.T) {
	authn, codec, repo, clock := newAuthFixture(t)
	repo.addAccount(t, "acc-1", "athlete@example.com", "ATHLETE")

	tok, err := codec.Issue("athlete@example.com", nil, time.Minute)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	result := authn.Authenticate(context.Background(), bearer(tok))
	assert.Equal(t, auth.ReasonExpiredToken, result.Reason())
}

func TestBearerAuthenticator_DeactivatedAfterIssuance(t *testing.T) {
	authn, codec, repo, _ := newAuthFixture(t)
	account := repo.addAccount(t, "acc-1", "coach@example.com", "COACH")

	tok, err := codec.Issue("coach@example.com", map[string]any{token.ClaimRole: "COACH"}, time.Hour)
	require.NoError(t, err)
	require.True(t, authn.Authenticate(context.Background(), bearer(tok)).Authenticated())

	require.NoError(t, repo.SetDisabled(context.Background(), account.ID, true))

	_, err = codec.Decode(tok)
	require.NoError(t, err, "signature still verifies")
	result := authn.Authenticate(context.Background(), bearer(tok))
	assert.False(t, result.Authenticated())
	assert.Equal(t, auth.ReasonAccountNotFound, result.Reason())
}

func TestBearerAuthenticator_RoleFromLiveAccount(t *testing.T) {
	authn, codec, repo, _ := newAuthFixture(t)
	account := repo.addAccount(t, "acc-1", "user@example.com", "ATHLETE")

	tok, err := codec.Issue("user@example.com", map[string]any{token.ClaimRole: "ATHLETE"}, time.Hour)
	require.NoError(t, err)

	account.Role = "COACH"
	result := authn.Authenticate(context.Background(), bearer(tok))
	p, ok := result.Principal()
	require.True(t, ok)
	assert.Equal(t, auth.RoleCoach, p.Role, "authorities come from the account, not the token snapshot")
}

func TestBearerAuthenticator_CollaboratorFailures(t *testing.T) {
	authn, codec, repo, _ := newAuthFixture(t)
	tok, err := codec.Issue("athlete@example.com", nil, time.Hour)
	require.NoError(t, err)

	repo.err = errors.New("database is down")
	result := authn.Authenticate(context.Background(), bearer(tok))
	assert.Equal(t, auth.ReasonInternalError, result.Reason())

	panicky := NewBearerAuthenticator(codec, panickingLookup{}, nil)
	assert.NotPanics(t, func() {
		result = panicky.Authenticate(context.Background(), bearer(tok))
	})
	assert.Equal(t, auth.ReasonInternalError, result.Reason())
}
