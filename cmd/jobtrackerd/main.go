// Command jobtrackerd runs the print-shop job tracker and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
)

var (
	configPath string

	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "jobtrackerd",
	Short:         "Print-shop job tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := common.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}
		cfg = c
		logger = common.NewLogger(c.Log)
		logger.Debug("configuration loaded", "auth", c.Auth, "db_driver", c.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env vars override it)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedProcessesCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(dbhealthCmd)
}

// openDB connects to the configured database.
func openDB(ctx context.Context) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, fmt.Errorf("opening DB: %w", err)
	}
	return db, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
