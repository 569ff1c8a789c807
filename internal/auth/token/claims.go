package token

import (
	"encoding/json"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// Claims is a decoded token payload. Accessors return ok=false for a claim
// that is missing or has the wrong shape instead of failing.
type Claims map[string]any

// Subject returns the non-empty sub claim.
func (c Claims) Subject() (string, bool) {
	return c.String("sub")
}

// Role returns the role claim as written, e.g. "COACH".
func (c Claims) Role() (string, bool) {
	return c.String(ClaimRole)
}

// AthleteID returns the athleteId claim.
func (c Claims) AthleteID() (int64, bool) {
	return c.Int64(ClaimAthleteID)
}

// CoachID returns the coachId claim.
func (c Claims) CoachID() (int64, bool) {
	return c.Int64(ClaimCoachID)
}

// Authorities returns the string members of the authorities claim.
func (c Claims) Authorities() []string {
	raw, ok := c[ClaimAuthorities].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ExpiresAt returns the exp claim.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IssuedAt returns the iat claim.
func (c Claims) IssuedAt() (time.Time, bool) {
	iat, err := jwt.MapClaims(c).GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}, false
	}
	return iat.Time, true
}

// String returns a non-empty string claim.
func (c Claims) String(name string) (string, bool) {
	s, ok := c[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Int64 returns an integer claim encoded either as a JSON number or as a
// numeric string. Fractional numbers, booleans and other shapes are absent.
func (c Claims) Int64(name string) (int64, bool) {
	v, ok := c[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case string:
		if n == "" {
			return 0, false
		}
	case json.Number, int, int32, int64:
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
	default:
		return 0, false
	}

	var out int64
	if err := mapstructure.WeakDecode(v, &out); err != nil {
		return 0, false
	}
	return out, true
}
