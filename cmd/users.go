/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tech-e/apiserver/internal/auth"
	"github.com/tech-e/apiserver/internal/db"
	"github.com/tech-e/apiserver/internal/services"
	"github.com/tech-e/apiserver/internal/store"
	"github.com/tech-e/apiserver/types"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Operator commands for user accounts",
}

var (
	promoteEmail string
	promoteRole  string
)

// usersPromoteCmd is the only way to grant a role other than the default.
var usersPromoteCmd = &cobra.Command{
	Use:     "promote",
	Short:   "Set the role of an existing user",
	Example: `  apiserver users promote --email admin@example.com --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		svc := services.NewUserService(
			store.NewUserRepository(conn),
			auth.NewPasswordHasher(cfg.Auth.BcryptCost),
			auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
			logger,
		)
		user, err := svc.SetRole(cmd.Context(), promoteEmail, types.Role(promoteRole))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", user.Email, user.ID, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersPromoteCmd)

	usersPromoteCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the user to update")
	usersPromoteCmd.Flags().StringVar(&promoteRole, "role", string(types.RoleAdmin), "role to assign (user or admin)")
	_ = usersPromoteCmd.MarkFlagRequired("email")
}
