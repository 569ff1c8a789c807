package accounts

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/repository"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withAccounts(ctx, func(repo repository.AccountRepository) error {
			accounts, err := repo.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tLAST_LOGIN\tDISABLED")
			for _, a := range accounts {
				lastLogin := "never"
				if a.LastLoginAt != nil {
					lastLogin = a.LastLoginAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", a.Email, a.Name, a.Role, lastLogin, a.Disabled())
			}
			return w.Flush()
		})
	},
}
