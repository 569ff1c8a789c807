package accounts

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/repository"
)

var disableCmd = &cobra.Command{
	Use:   "disable <email>",
	Short: "Disable an account; existing tokens stop working immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDisabled(cmd, args[0], true)
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable <email>",
	Short: "Re-enable a disabled account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDisabled(cmd, args[0], false)
	},
}

func setDisabled(cmd *cobra.Command, email string, disabled bool) error {
	ctx := cmd.Context()
	return withAccounts(ctx, func(repo repository.AccountRepository) error {
		account, err := repo.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to find account %q: %w", email, err)
		}
		if err := repo.SetDisabled(ctx, account.ID, disabled); err != nil {
			return fmt.Errorf("failed to update account %q: %w", email, err)
		}
		state := "enabled"
		if disabled {
			state = "disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account %s %s\n", account.Email, state)
		return nil
	})
}
