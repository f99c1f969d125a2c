package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/jobtracker/constants"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("migrations applied", "dialect", db.Dialect())
		return nil
	},
}

var seedProcessesCmd = &cobra.Command{
	Use:   "seed-processes",
	Short: "Insert the default process list (idempotent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := db.Repos().Processes.Seed(ctx, constants.DefaultProcesses)
		if err != nil {
			return err
		}
		logger.Info("processes seeded", "inserted", n, "known", len(constants.DefaultProcesses))
		return nil
	},
}

var dbhealthTimeout time.Duration

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Ping the database and list the known processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.HealthCheck(ctx, dbhealthTimeout); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		fmt.Println("DB health: OK")

		processes, err := db.Repos().Processes.List(ctx)
		if err != nil {
			return fmt.Errorf("listing processes: %w", err)
		}
		fmt.Printf("processes count: %d\n", len(processes))
		for _, p := range processes {
			fmt.Printf("- [%d] %s\n", p.ID, p.Name)
		}
		return nil
	},
}

func init() {
	dbhealthCmd.Flags().DurationVar(&dbhealthTimeout, "timeout", time.Second, "ping timeout")
}
