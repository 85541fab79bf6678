/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/reckon-app/apiserver/internal/db"
	"github.com/reckon-app/apiserver/internal/security"
	"github.com/reckon-app/apiserver/internal/services"
	"github.com/reckon-app/apiserver/internal/store"
	"github.com/reckon-app/apiserver/types"
	"github.com/spf13/cobra"
)

var (
	superuserEmail    string
	superuserPassword string
	superuserFullName string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts directly in the database",
}

var createSuperuserCmd = &cobra.Command{
	Use:   "create-superuser",
	Short: "Create an active superuser, or promote an existing account",
	Long: `Creates an active superuser. If the email is already registered the account
is promoted, reactivated and its password replaced. Usage:

	reckon user create-superuser --email admin@example.com --password s3cret
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		hasher := security.NewPasswordHasher(cfg.Auth.BcryptCost)
		var user types.User
		err = db.WithTx(cmd.Context(), conn, nil, func(ctx context.Context, tx db.DBTX) error {
			users := services.NewUserService(store.NewUserRepository(tx), hasher, nil, log)
			created, txErr := ensureSuperuser(ctx, users, superuserEmail, superuserPassword, superuserFullName)
			user = created
			return txErr
		})
		if err != nil {
			return err
		}

		log.Info(cmd.Context(), "superuser ready", "user_id", user.ID, "email", user.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(createSuperuserCmd)

	createSuperuserCmd.Flags().StringVar(&superuserEmail, "email", "", "superuser email")
	createSuperuserCmd.Flags().StringVar(&superuserPassword, "password", "", "superuser password")
	createSuperuserCmd.Flags().StringVar(&superuserFullName, "full-name", "", "optional display name")
	_ = createSuperuserCmd.MarkFlagRequired("email")
	_ = createSuperuserCmd.MarkFlagRequired("password")
}

// ensureSuperuser looks the email up first: a failed insert would abort the
// surrounding postgres transaction.
func ensureSuperuser(ctx context.Context, users *services.UserService, email, password, fullName string) (types.User, error) {
	var name *string
	if fullName != "" {
		name = &fullName
	}

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user, err := users.Create(ctx, types.UserCreate{
			Email:       email,
			Password:    password,
			FullName:    name,
			IsSuperuser: true,
		})
		if err != nil {
			return types.User{}, fmt.Errorf("create superuser: %w", err)
		}
		return user, nil
	case err != nil:
		return types.User{}, fmt.Errorf("load existing user: %w", err)
	}

	active, super := true, true
	user, err := users.Update(ctx, existing, types.UserPatch{
		Password:    &password,
		FullName:    name,
		IsActive:    &active,
		IsSuperuser: &super,
	})
	if err != nil {
		return types.User{}, fmt.Errorf("promote %s: %w", existing.Email, err)
	}
	return user, nil
}
