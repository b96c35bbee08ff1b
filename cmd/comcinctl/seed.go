package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/comcin/internal/database"
)

var seedFile string

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load admins, members, payment methods and content",
		Long: `Load initial data from a YAML file. Rows that already exist are skipped,
so the command can be run repeatedly.

Without --file the built-in demo accounts are seeded.

Examples:
  comcinctl seed
  comcinctl seed --file seed.yaml`,
		RunE: runSeed,
	}
	cmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	seed := database.DefaultSeed()
	if seedFile != "" {
		var err error
		if seed, err = database.LoadSeedFile(seedFile); err != nil {
			return err
		}
	}

	conn, err := openDB()
	if err != nil {
		return err
	}
	if err := database.Migrate(conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	result, err := database.Seed(cmd.Context(), conn, seed)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Users created:           %d\n", result.Users)
	fmt.Fprintf(out, "Institutions created:    %d\n", result.Institutions)
	fmt.Fprintf(out, "Payment methods created: %d\n", result.PaymentMethods)
	fmt.Fprintf(out, "Content keys created:    %d\n", result.Content)
	return nil
}
