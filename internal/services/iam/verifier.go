package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/repository"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/telemetry"
)

var (
	// ErrAccountNotFound is returned for unknown and deactivated accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned by Verify when the password matched a
	// deactivated account.
	ErrAccountDisabled = errors.New("account disabled")
)

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)

// AccountLookup resolves a username to a live account.
type AccountLookup interface {
	Lookup(ctx context.Context, email string) (*models.Account, error)
}

// CredentialVerifier resolves emails to canonical accounts.
type CredentialVerifier struct {
	accounts repository.AccountRepository
	logger   *slog.Logger
}

// NewCredentialVerifier creates a verifier over the account store.
func NewCredentialVerifier(accounts repository.AccountRepository, logger *slog.Logger) *CredentialVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifier{accounts: accounts, logger: logger}
}

// Lookup returns the active account for email, or ErrAccountNotFound.
func (v *CredentialVerifier) Lookup(ctx context.Context, email string) (*models.Account, error) {
	account, err := v.find(ctx, email)
	if err != nil {
		return nil, err
	}
	if account.Disabled() {
		return nil, fmt.Errorf("%w: %s is disabled", ErrAccountNotFound, email)
	}
	return account, nil
}

// Verify checks password for email and records the login.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*models.Account, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.VerifyCredentials")
	defer span.End()

	account, err := v.find(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		telemetry.AddEvent(span, "credentials.rejected")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		telemetry.AddEvent(span, "credentials.rejected")
		return nil, ErrInvalidCredentials
	}
	if account.Disabled() {
		telemetry.AddEvent(span, "credentials.account_disabled")
		return nil, ErrAccountDisabled
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrAccountID, account.ID),
		attribute.String(telemetry.AttrAccountRole, account.Role),
	)

	if err := v.accounts.UpdateLastLogin(ctx, account.ID); err != nil {
		v.logger.WarnContext(ctx, "failed to record last login", "account_id", account.ID, "error", err)
	}
	return account, nil
}

func (v *CredentialVerifier) find(ctx context.Context, email string) (*models.Account, error) {
	account, err := v.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}

// PrincipalFor builds the request principal from a live account.
func PrincipalFor(account *models.Account, scheme auth.Scheme) (auth.Principal, error) {
	role, err := auth.ParseRole(account.Role)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("account %s: %w", account.ID, err)
	}
	return auth.Principal{
		ID:     account.ID,
		Email:  account.Email,
		Role:   role,
		Scheme: scheme,
	}, nil
}

// HashPassword returns the bcrypt hash stored in accounts.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
