package repository

import (
	"context"
	"testing"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/bunx"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// setupTestDB opens an in-memory sqlite database with all migrations applied
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := bunx.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func newAccount(email, role string) *models.Account {
	return &models.Account{
		Email:        email,
		Name:         "Test " + role,
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderplace",
		Role:         role,
	}
}

func TestBunAccountRepository_CreateAndGet(t *testing.T) {
	repo := NewBunAccountRepository(setupTestDB(t))
	ctx := context.Background()

	athleteID := int64(42)
	account := newAccount("  Runner@Example.COM ", "ATHLETE")
	account.AthleteID = &athleteID
	require.NoError(t, repo.Create(ctx, account))

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "runner@example.com", account.Email)

	t.Run("by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, account.Email, got.Email)
		require.NotNil(t, got.AthleteID)
		assert.Equal(t, int64(42), *got.AthleteID)
		assert.Nil(t, got.CoachID)
	})

	t.Run("by email is case-insensitive", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "RUNNER@example.com")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, bunx.NewUUIDv7())
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		err := repo.Create(ctx, newAccount("runner@example.com", "COACH"))
		assert.Error(t, err)
	})
}

func TestBunAccountRepository_SetDisabled(t *testing.T) {
	repo := NewBunAccountRepository(setupTestDB(t))
	ctx := context.Background()

	account := newAccount("coach@example.com", "COACH")
	require.NoError(t, repo.Create(ctx, account))

	require.NoError(t, repo.SetDisabled(ctx, account.ID, true))
	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled())

	require.NoError(t, repo.SetDisabled(ctx, account.ID, false))
	got, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, got.Disabled())

	err = repo.SetDisabled(ctx, bunx.NewUUIDv7(), true)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestBunAccountRepository_UpdateLastLogin(t *testing.T) {
	repo := NewBunAccountRepository(setupTestDB(t))
	ctx := context.Background()

	account := newAccount("admin@example.com", "ADMIN")
	require.NoError(t, repo.Create(ctx, account))
	require.NoError(t, repo.UpdateLastLogin(ctx, account.ID))

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
}

func TestBunAccountRepository_List(t *testing.T) {
	repo := NewBunAccountRepository(setupTestDB(t))
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, repo.Create(ctx, newAccount(email, "ATHLETE")))
	}

	accounts, err := repo.List(ctx)
	require.NoError(t, err)

	emails := make([]string, 0, len(accounts))
	for _, a := range accounts {
		emails = append(emails, a.Email)
	}
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com", "c@example.com"}, emails)
}
