// Package token implements the legacy HMAC bearer-token codec used by the
// mobile API. Access and refresh tokens share one payload shape and differ
// only by the lifetime they are issued with.
package token

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and
	// unparsable claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned by Validate once now >= exp.
	ErrExpiredToken = errors.New("token expired")
	// ErrSubjectMismatch is returned by Validate when sub differs from the
	// expected username.
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// Claim names written by the service.
const (
	ClaimRole        = "role"
	ClaimAuthorities = "authorities"
	ClaimAthleteID   = "athleteId"
	ClaimCoachID     = "coachId"
)

// Codec issues and decodes HS256 tokens under a fixed secret.
// A Codec is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat, exp and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a codec for secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Expiry is checked by Validate so that an expired token still decodes.
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithJSONNumber(),
		jwt.WithoutClaimsValidation(),
	)
	return c, nil
}

// Issue signs a token for subject valid for lifetime. Extra claims with nil
// values (including typed nil pointers) are dropped; sub, iat and exp always
// reflect the arguments.
func (c *Codec) Issue(subject string, claims map[string]any, lifetime time.Duration) (string, error) {
	now := c.now()
	mc := jwt.MapClaims{}
	for k, v := range claims {
		if isNil(v) {
			continue
		}
		mc[k] = v
	}
	mc["sub"] = subject
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(lifetime))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. It does not check
// expiry.
func (c *Codec) Decode(raw string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, err := c.parser.ParseWithClaims(raw, mc, c.keyFunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Claims(mc), nil
}

// Validate checks already-decoded claims against the expected subject and
// the current time.
func (c *Codec) Validate(claims Claims, expectedSubject string) error {
	sub, ok := claims.Subject()
	if !ok || sub != expectedSubject {
		return ErrSubjectMismatch
	}
	exp, ok := claims.ExpiresAt()
	if !ok || !c.now().Before(exp) {
		return ErrExpiredToken
	}
	return nil
}

// IsValid reports whether raw decodes, names expectedSubject and has not
// expired.
func (c *Codec) IsValid(raw, expectedSubject string) bool {
	claims, err := c.Decode(raw)
	if err != nil {
		return false
	}
	return c.Validate(claims, expectedSubject) == nil
}

func (c *Codec) keyFunc(*jwt.Token) (any, error) {
	return c.secret, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
