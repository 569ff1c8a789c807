package accounts

import (
	"bufio"
	"fmt"
	"net/mail"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/repository"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

var (
	emailFlag     string
	nameFlag      string
	passwordFlag  string
	roleFlag      string
	athleteIDFlag int64
	coachIDFlag   int64
	stdinFlag     bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if _, err := mail.ParseAddress(emailFlag); err != nil {
			return fmt.Errorf("invalid email format: %w", err)
		}
		role, err := auth.ParseRole(roleFlag)
		if err != nil {
			return fmt.Errorf("--role: %w", err)
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		hash, err := iam.HashPassword(password)
		if err != nil {
			return err
		}
		account := &models.Account{
			Email:        emailFlag,
			Name:         nameFlag,
			PasswordHash: hash,
			Role:         string(role),
		}
		if athleteIDFlag > 0 {
			account.AthleteID = &athleteIDFlag
		}
		if coachIDFlag > 0 {
			account.CoachID = &coachIDFlag
		}

		return withAccounts(cmd.Context(), func(repo repository.AccountRepository) error {
			if err := repo.Create(cmd.Context(), account); err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Account created successfully!")
			fmt.Fprintf(out, "ID:    %s\n", account.ID)
			fmt.Fprintf(out, "Email: %s\n", account.Email)
			fmt.Fprintf(out, "Role:  %s\n", account.Role)
			return nil
		})
	},
}
