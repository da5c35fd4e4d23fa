package main

import (
	"fmt" // Error formatting
	"os"  // Files and environment

	"bank_system/internal/config" // Configuration
	"bank_system/internal/db"     // Database helpers
	"bank_system/internal/export" // CSV export

	"github.com/sirupsen/logrus" // Logging
	"github.com/spf13/cobra"     // CLI framework
)

var rootCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger tables to CSV",
	Long:  `Reads users, accounts, transfers and audit_log and writes one CSV file per table. Amounts are written in currency units.`,
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringP("out", "o", "export", "Directory the CSV files are written to")
	rootCmd.Flags().String("driver", "", "Database driver (mysql or sqlite), overrides DB_DRIVER")
	rootCmd.Flags().String("sqlite-path", "", "SQLite file, overrides SQLITE_PATH")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	cfg.SetupLogger()
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("sqlite-path"); v != "" {
		cfg.SQLitePath = v
	}
	if cfg.DBDriver == "sqlite" {
		if _, err := os.Stat(cfg.SQLitePath); err != nil {
			return fmt.Errorf("database %s not found: %w", cfg.SQLitePath, err)
		}
	}
	out, _ := cmd.Flags().GetString("out")

	gdb, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	results, err := export.All(cmd.Context(), gdb, out)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%d rows)\n", r.Path, r.Rows)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
