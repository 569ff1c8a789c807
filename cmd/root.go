package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/cmd/accounts"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/telemetry"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fitapi",
	Short: "Identity and access control for the athlete performance tracker",
	Long: `fitapi serves the legacy bearer-token API, the OAuth 2.1 / OpenID Connect
authorization server and the role-based access rules in front of the
athlete performance tracker.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfigFile(cmd); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err = telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to configure logging: %w", err)
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML, JSON or TOML config file")
	flags.String("db-url", "", "Database URL (env: FITAPI_DATABASE_URL)")
	flags.String("log-level", "", "Log level: debug, info, warn or error (env: FITAPI_LOG_LEVEL)")
	flags.String("log-format", "", "Log format: text or json (env: FITAPI_LOG_FORMAT)")

	_ = viper.BindPFlag("database.url", flags.Lookup("db-url"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(accounts.AccountsCmd)
}

// readConfigFile loads --config, or ./fitapi.{yaml,json,toml} when present.
func readConfigFile(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("fitapi")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
