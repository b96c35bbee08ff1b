package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/config"
	"github.com/example/comcin/internal/database"
)

var Version = "dev"

var dsn string

func main() {
	rootCmd := &cobra.Command{
		Use:     "comcinctl",
		Short:   "Administrative tasks for the COMCIN backend",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "database-url", "", "Postgres DSN (defaults to DATABASE_URL)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	url := dsn
	if url == "" {
		url = config.DatabaseURL()
	}
	conn, err := database.Open(url)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return conn, nil
}
