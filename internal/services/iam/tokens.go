package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/token"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
)

// TokenPair is returned by legacy login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

// TokenService issues legacy token pairs. Access and refresh tokens have the
// same claims and differ only in lifetime.
type TokenService struct {
	codec           *token.Codec
	verifier        *CredentialVerifier
	accessLifetime  time.Duration
	refreshLifetime time.Duration
}

// NewTokenService creates a legacy token service.
func NewTokenService(codec *token.Codec, verifier *CredentialVerifier, accessLifetime, refreshLifetime time.Duration) *TokenService {
	return &TokenService{
		codec:           codec,
		verifier:        verifier,
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
	}
}

// Login verifies credentials and issues a fresh pair.
func (s *TokenService) Login(ctx context.Context, email, password string) (*TokenPair, *models.Account, error) {
	account, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.Issue(account)
	if err != nil {
		return nil, nil, err
	}
	return pair, account, nil
}

// Refresh issues a new access token for a valid refresh token. The refresh
// token itself is returned unchanged; the legacy scheme has no rotation or
// revocation.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return nil, err
	}
	subject, ok := claims.Subject()
	if !ok {
		return nil, fmt.Errorf("%w: missing subject", token.ErrInvalidToken)
	}
	account, err := s.verifier.Lookup(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %v", token.ErrInvalidToken, err)
		}
		return nil, err
	}
	if err := s.codec.Validate(claims, account.Email); err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrInvalidToken, err)
	}

	access, err := s.codec.Issue(account.Email, AccountClaims(account), s.accessLifetime)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessLifetime / time.Second),
	}, nil
}

// Issue signs an access and a refresh token for account.
func (s *TokenService) Issue(account *models.Account) (*TokenPair, error) {
	claims := AccountClaims(account)
	access, err := s.codec.Issue(account.Email, claims, s.accessLifetime)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Issue(account.Email, claims, s.refreshLifetime)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessLifetime / time.Second),
	}, nil
}

// AccountClaims is the role snapshot embedded in legacy tokens. Nil athlete
// and coach IDs are dropped by the codec.
func AccountClaims(account *models.Account) map[string]any {
	role := auth.Role(account.Role)
	return map[string]any{
		token.ClaimRole:        account.Role,
		token.ClaimAuthorities: []string{role.Authority()},
		token.ClaimAthleteID:   account.AthleteID,
		token.ClaimCoachID:     account.CoachID,
	}
}
