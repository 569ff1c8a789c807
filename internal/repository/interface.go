package repository

import (
	"context"
	"errors"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
)

// ErrAccountNotFound is returned when no account matches the lookup key.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository exposes persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, id string) error
	// SetDisabled deactivates (true) or reactivates (false) an account.
	SetDisabled(ctx context.Context, id string, disabled bool) error
	List(ctx context.Context) ([]models.Account, error)
}
