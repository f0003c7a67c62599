// Package cli implements the csvimport command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NaN-tic/csvimport/internal/logging"
)

var (
	schemaPath string
	storeName  string
	dbURL      string
	logLevel   string
	logFormat  string
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "csvimport",
	Short: "Profile-driven CSV importer",
	Long: `csvimport turns CSV files into business records under an import profile.
A profile fixes the CSV dialect, maps columns to record fields with typed
coercion, and decides how repeated records are handled. Records go to an
in-memory store or to PostgreSQL.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(logLevel, logFormat)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "schema.yaml", "YAML file declaring the record collections")
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "memory", "record store backend: memory, postgres")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string for the postgres store")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "minimum log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
}
