package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/zoombulk/internal/config"
	"github.com/teemow/zoombulk/internal/logging"
)

// rootCmd represents the base command for the zoombulk application
var rootCmd = &cobra.Command{
	Use:   "zoombulk",
	Short: "Creates Zoom meetings in bulk from spreadsheets",
	Long: `zoombulk creates Zoom meetings for every row of a CSV or XLSX file using
server-to-server OAuth credentials, and writes the join URLs back next to
the original rows.

Access tokens and the account's email to user ID mapping are cached locally
so repeated runs do not hit the OAuth and user endpoints.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// version will be set by main
var version = "dev"

var (
	envFile   string
	logLevel  string
	logFormat string

	// cfg and logger are populated before any subcommand runs.
	cfg    config.Config
	logger *slog.Logger
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "zoombulk version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load variables from this .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error. Can also use LOG_LEVEL env var.")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json. Can also use LOG_FORMAT env var.")

	rootCmd.AddCommand(newBulkCreateCmd())
	rootCmd.AddCommand(newCreateMeetingCmd())
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// setup loads the configuration and installs the logger.
func setup(_ *cobra.Command, _ []string) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return err
	}

	var err error
	cfg, err = config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return nil
}
