// Package accounts holds the operator commands for the account store.
package accounts

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/bunx"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/repository"
)

// AccountsCmd is the parent command for account management operations
var AccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage athlete, coach and admin accounts",
	Long:  `Commands for managing accounts directly against the database.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the account (its login name)")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Display name")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password (use --stdin to avoid shell history)")
	createCmd.Flags().StringVar(&roleFlag, "role", "", "ATHLETE, COACH or ADMIN (required)")
	createCmd.Flags().Int64Var(&athleteIDFlag, "athlete-id", 0, "Linked athlete profile id")
	createCmd.Flags().Int64Var(&coachIDFlag, "coach-id", 0, "Linked coach profile id")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	AccountsCmd.AddCommand(createCmd, disableCmd, enableCmd, listCmd)
}

// withAccounts opens the configured database for the duration of fn.
func withAccounts(ctx context.Context, fn func(repository.AccountRepository) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := bunx.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer bunx.Close(db)
	return fn(repository.NewBunAccountRepository(db))
}
