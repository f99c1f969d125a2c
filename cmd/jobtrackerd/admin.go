package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/jobtracker/internal/directory"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
)

var adminFlags struct {
	name     string
	code     string
	password string
}

// createAdminCmd is the only way to grant the admin role.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		repos := db.Repos()
		provider, err := identity.NewProvider(repos.Identities, identity.Config{
			ServiceKey: cfg.Auth.ServiceKey,
			TokenTTL:   cfg.Auth.TokenTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		}, logger)
		if err != nil {
			return err
		}
		workers := directory.NewWorkerService(repos.Accounts, provider, roles.NewResolver(cfg.Roles.FallbackRole),
			cfg.Auth.LoginDomain, logger)

		w, err := workers.CreateAdmin(ctx, adminFlags.name, adminFlags.code, adminFlags.password)
		if err != nil {
			return err
		}
		fmt.Printf("admin %s created (login %s)\n", w.EmployeeCode, identity.LoginFor(w.EmployeeCode, cfg.Auth.LoginDomain))
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.name, "name", "", "full name")
	f.StringVar(&adminFlags.code, "code", "", "employee code")
	f.StringVar(&adminFlags.password, "password", "", "password (at least 6 characters)")
	_ = createAdminCmd.MarkFlagRequired("name")
	_ = createAdminCmd.MarkFlagRequired("code")
	_ = createAdminCmd.MarkFlagRequired("password")
}
