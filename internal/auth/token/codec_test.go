package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewCodec(testSecret, WithClock(clock.Now))
	require.NoError(t, err)
	return codec, clock
}

func TestNewCodec_RejectsEmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.Error(t, err)
}

func TestIssueDecode_RoundTrip(t *testing.T) {
	codec, _ := newTestCodec(t)

	tests := []struct {
		subject  string
		role     string
		lifetime time.Duration
	}{
		{subject: "athlete@example.com", role: "ATHLETE", lifetime: time.Minute},
		{subject: "coach@example.com", role: "COACH", lifetime: 24 * time.Hour},
		{subject: "admin@example.com", role: "ADMIN", lifetime: 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			raw, err := codec.Issue(tt.subject, map[string]any{ClaimRole: tt.role}, tt.lifetime)
			require.NoError(t, err)

			claims, err := codec.Decode(raw)
			require.NoError(t, err)

			sub, ok := claims.Subject()
			require.True(t, ok)
			assert.Equal(t, tt.subject, sub)

			role, ok := claims.Role()
			require.True(t, ok)
			assert.Equal(t, tt.role, role)

			assert.True(t, codec.IsValid(raw, tt.subject))
		})
	}
}

func TestIsValid_Expiry(t *testing.T) {
	codec, clock := newTestCodec(t)

	raw, err := codec.Issue("athlete@example.com", nil, time.Hour)
	require.NoError(t, err)
	assert.True(t, codec.IsValid(raw, "athlete@example.com"))

	clock.Advance(59 * time.Minute)
	assert.True(t, codec.IsValid(raw, "athlete@example.com"))

	clock.Advance(time.Minute)
	assert.False(t, codec.IsValid(raw, "athlete@example.com"), "now == exp is expired")

	clock.Advance(time.Hour)
	assert.False(t, codec.IsValid(raw, "athlete@example.com"))

	claims, err := codec.Decode(raw)
	require.NoError(t, err, "an expired token still decodes")
	assert.ErrorIs(t, codec.Validate(claims, "athlete@example.com"), ErrExpiredToken)
}

func TestIsValid_SubjectMismatch(t *testing.T) {
	codec, _ := newTestCodec(t)

	raw, err := codec.Issue("athlete@example.com", nil, time.Hour)
	require.NoError(t, err)

	assert.False(t, codec.IsValid(raw, "coach@example.com"))
	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.ErrorIs(t, codec.Validate(claims, "coach@example.com"), ErrSubjectMismatch)
}

func TestDecode_TamperedSignature(t *testing.T) {
	codec, _ := newTestCodec(t)

	raw, err := codec.Issue("athlete@example.com", map[string]any{ClaimRole: "ATHLETE"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	for i := range sig {
		tampered := append([]byte(nil), sig...)
		tampered[i] ^= 0x01
		token := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(tampered)

		_, err := codec.Decode(token)
		require.ErrorIs(t, err, ErrInvalidToken, "flipping signature byte %d must fail", i)
		assert.False(t, codec.IsValid(token, "athlete@example.com"))
	}
}

func TestDecode_Rejects(t *testing.T) {
	codec, _ := newTestCodec(t)

	other, err := NewCodec([]byte("another-secret-another-secret-abc"))
	require.NoError(t, err)
	foreign, err := other.Issue("athlete@example.com", nil, time.Hour)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "athlete@example.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":           "",
		"garbage":         "not-a-token",
		"two segments":    "a.b",
		"other secret":    foreign,
		"alg none":        noneToken,
		"payload not b64": "eyJhbGciOiJIUzI1NiJ9.%%%.abc",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssue_DropsNilClaims(t *testing.T) {
	codec, _ := newTestCodec(t)

	var coachID *int64
	athleteID := int64(7)
	raw, err := codec.Issue("athlete@example.com", map[string]any{
		ClaimRole:      "ATHLETE",
		ClaimAthleteID: &athleteID,
		ClaimCoachID:   coachID,
		"nothing":      nil,
		"sub":          "ignored@example.com",
	}, time.Hour)
	require.NoError(t, err)

	claims, err := codec.Decode(raw)
	require.NoError(t, err)

	assert.NotContains(t, claims, ClaimCoachID)
	assert.NotContains(t, claims, "nothing")
	id, ok := claims.AthleteID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	sub, _ := claims.Subject()
	assert.Equal(t, "athlete@example.com", sub, "subject argument wins over extra claims")
}

func TestIssue_Deterministic(t *testing.T) {
	codec, _ := newTestCodec(t)

	claims := map[string]any{ClaimRole: "COACH", ClaimAuthorities: []string{"ROLE_COACH"}}
	a, err := codec.Issue("coach@example.com", claims, time.Hour)
	require.NoError(t, err)
	b, err := codec.Issue("coach@example.com", claims, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same inputs at the same instant produce the same token")
}

func TestDecode_Idempotent(t *testing.T) {
	codec, _ := newTestCodec(t)

	raw, err := codec.Issue("coach@example.com", map[string]any{
		ClaimRole:        "COACH",
		ClaimAuthorities: []string{"ROLE_COACH"},
		ClaimCoachID:     int64(3),
	}, time.Hour)
	require.NoError(t, err)

	first, err := codec.Decode(raw)
	require.NoError(t, err)
	second, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"ROLE_COACH"}, second.Authorities())
}
