package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootFlags holds the persistent flag values shared by every command.
var rootFlags struct {
	verbose     bool
	configDir   string
	envFile     string
	metricsFile string
}

var rootCmd = &cobra.Command{
	Use:   "deadpool",
	Short: "Resilient scoreboard administration for the dead pool game",
	Long: `deadpool records the fate of list items and keeps every player's total
score consistent, retrying through dropped database connections.

Connection settings come from the environment (DB_HOST, DB_PORT, DB_USER,
DB_PASSWORD, DB_NAME or DATABASE_URL), from a .env file and from
deadpool.yaml, in that order of precedence.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid or missing configuration
  11 - Database unreachable after all retry attempts
  12 - Referenced record not found
  13 - Invalid input
  14 - Statement rejected by the database`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(rootFlags.envFile)
	},
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}

	// interrupting cancels retry waits and in-flight statements
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable verbose output, including every SQL statement")
	rootCmd.PersistentFlags().StringVar(&rootFlags.configDir, "config-dir", ".", "Directory containing deadpool.yaml")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env", "Environment file to load before resolving the connection")
	rootCmd.PersistentFlags().StringVar(&rootFlags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit (textfile collector format)")
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
