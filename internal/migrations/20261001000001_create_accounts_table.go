package migrations

import (
	"context"
	"fmt"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000001, down_20261001000001)
}

// up_20261001000001 creates the account store
func up_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating accounts table...")
	_, err := db.NewCreateTable().
		Model((*models.Account)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email)`)
	if err != nil {
		return fmt.Errorf("failed to create accounts email index: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts(role)`)
	if err != nil {
		return fmt.Errorf("failed to create accounts role index: %w", err)
	}

	if isPostgreSQL(db) {
		_, err = db.ExecContext(ctx, `ALTER TABLE accounts ADD CONSTRAINT chk_accounts_role CHECK (role IN ('ATHLETE', 'COACH', 'ADMIN'))`)
		if err != nil {
			return fmt.Errorf("failed to add accounts role constraint: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping accounts table...")
	_, err := db.NewDropTable().
		Model((*models.Account)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop accounts table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
