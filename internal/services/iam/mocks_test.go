package iam

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/repository"
)

// mockAccountRepository for testing
type mockAccountRepository struct {
	accounts map[string]*models.Account // email → account
	err      error                      // returned by every read when set
	lookups  int
}

func newMockAccountRepository() *mockAccountRepository {
	return &mockAccountRepository{accounts: map[string]*models.Account{}}
}

func (m *mockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	m.accounts[strings.ToLower(account.Email)] = account
	return nil
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	for _, a := range m.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", repository.ErrAccountNotFound, id)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	if a, ok := m.accounts[strings.ToLower(email)]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: %s", repository.ErrAccountNotFound, email)
}

func (m *mockAccountRepository) UpdateLastLogin(ctx context.Context, id string) error {
	for _, a := range m.accounts {
		if a.ID == id {
			now := time.Now()
			a.LastLoginAt = &now
			return nil
		}
	}
	return fmt.Errorf("%w: %s", repository.ErrAccountNotFound, id)
}

func (m *mockAccountRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	for _, a := range m.accounts {
		if a.ID == id {
			if disabled {
				now := time.Now()
				a.DisabledAt = &now
			} else {
				a.DisabledAt = nil
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", repository.ErrAccountNotFound, id)
}

func (m *mockAccountRepository) List(ctx context.Context) ([]models.Account, error) {
	result := make([]models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		result = append(result, *a)
	}
	return result, nil
}

// addAccount stores an account whose password is "password-<role>".
func (m *mockAccountRepository) addAccount(t *testing.T, id, email, role string) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password-"+strings.ToLower(role)), bcrypt.MinCost)
	require.NoError(t, err)
	account := &models.Account{ID: id, Email: email, Name: id, PasswordHash: string(hash), Role: role}
	require.NoError(t, m.Create(context.Background(), account))
	return account
}
