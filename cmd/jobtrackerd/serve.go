package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/directory"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/intake"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/reports"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
	"github.com/joseph-ayodele/jobtracker/internal/server"
	"github.com/joseph-ayodele/jobtracker/internal/session"
	"github.com/joseph-ayodele/jobtracker/internal/tracker"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, change stream and gRPC health service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply the schema and seed processes before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		return fmt.Errorf("DB health failed: %w", err)
	}
	logger.Info("DB health OK", "dialect", db.Dialect())

	repos := db.Repos()
	if serveMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		if _, err := repos.Processes.Seed(ctx, constants.DefaultProcesses); err != nil {
			return err
		}
	}

	broker := notify.New(ctx, cfg.Notify, logger)
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Error("closing change broker", "error", err)
		}
	}()

	provider, err := identity.NewProvider(repos.Identities, identity.Config{
		ServiceKey: cfg.Auth.ServiceKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, logger, identity.WithPublisher(broker))
	if err != nil {
		return err
	}
	resolver := roles.NewResolver(cfg.Roles.FallbackRole)
	holder := session.NewHolder(logger)
	in, err := intake.NewService(db, broker, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Server:        cfg.Server,
		Auth:          cfg.Auth,
		Authenticator: provider,
		Gate:          session.NewGate(provider, repos.Accounts, resolver, holder, logger),
		Resolver:      resolver,
		Provisioner:   roles.NewProvisioner(repos.Accounts, nil, logger),
		Intake:        in,
		Tracker:       tracker.NewService(repos, broker, logger),
		Workers: directory.NewWorkerService(repos.Accounts, provider, resolver, cfg.Auth.LoginDomain, logger,
			directory.WithWorkerPublisher(broker)),
		Machines: directory.NewMachineService(repos.Machines, broker, logger),
		Reports:  reports.NewService(repos, logger),
		Repos:    repos,
		Broker:   broker,
		Health:   db,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	if err := holder.Start(gctx, broker); err != nil {
		return fmt.Errorf("subscribe to identity changes: %w", err)
	}
	g.Go(func() error { return srv.Run(gctx) })
	if cfg.Server.GRPCHealthAddr != "" {
		hs := server.NewHealthService(db, logger)
		g.Go(func() error { return hs.Run(gctx, cfg.Server.GRPCHealthAddr) })
	}
	err = g.Wait()
	<-holder.Done()
	logger.Info("stopped")
	return err
}
