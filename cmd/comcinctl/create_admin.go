package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/comcin/internal/database"
)

func createAdminCmd() *cobra.Command {
	var in database.SeedUser

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(in.Password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}
			conn, err := openDB()
			if err != nil {
				return err
			}

			user, created, err := database.CreateAdmin(cmd.Context(), conn, in)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %s already exists (%s)\n", user.Email, user.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.Name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
