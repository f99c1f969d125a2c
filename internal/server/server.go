// Package server exposes the job tracker over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/directory"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/intake"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/reports"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
	"github.com/joseph-ayodele/jobtracker/internal/session"
	"github.com/joseph-ayodele/jobtracker/internal/tracker"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Server        common.ServerConfig
	Auth          common.AuthConfig
	Authenticator identity.Authenticator
	Gate          *session.Gate
	Resolver      *roles.Resolver
	Provisioner   *roles.Provisioner
	Intake        *intake.Service
	Tracker       *tracker.Service
	Workers       *directory.WorkerService
	Machines      *directory.MachineService
	Reports       *reports.Service
	Repos         *repository.Repos
	Broker        notify.Broker
	Health        HealthChecker
	Logger        *slog.Logger
}

type Server struct {
	cfg            common.ServerConfig
	clientKeyValue string
	loginDomain    string

	auth        identity.Authenticator
	gate        *session.Gate
	resolver    *roles.Resolver
	provisioner *roles.Provisioner
	intake      *intake.Service
	tracker     *tracker.Service
	workers     *directory.WorkerService
	machines    *directory.MachineService
	reports     *reports.Service
	repos       *repository.Repos
	broker      notify.Broker
	health      HealthChecker
	logger      *slog.Logger

	limiter *rate.Limiter
	router  *mux.Router
	// closing ends open change streams when the server shuts down.
	closing chan struct{}
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:            d.Server,
		clientKeyValue: d.Auth.ClientKey,
		loginDomain:    d.Auth.LoginDomain,
		auth:           d.Authenticator,
		gate:           d.Gate,
		resolver:       d.Resolver,
		provisioner:    d.Provisioner,
		intake:         d.Intake,
		tracker:        d.Tracker,
		workers:        d.Workers,
		machines:       d.Machines,
		reports:        d.Reports,
		repos:          d.Repos,
		broker:         d.Broker,
		health:         d.Health,
		logger:         logger,
		limiter:        newLimiter(d.Server.RequestsPerSec, d.Server.Burst),
		closing:        make(chan struct{}),
	}
	if s.cfg.AllowedOrigin == "" {
		s.cfg.AllowedOrigin = "*"
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog, s.cors)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimit, s.clientKey)
	// Preflight requests are answered by cors before routing reaches these handlers.
	api.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/auth/gate", s.handleGate).Methods(http.MethodGet)

	api.HandleFunc("/submit-job", s.admin(s.handleSubmitJob)).Methods(http.MethodPost)
	api.HandleFunc("/processes", s.authed(s.handleListProcesses)).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{job_id}", s.authed(s.handleGetJob)).Methods(http.MethodGet)

	api.HandleFunc("/work-items", s.authed(s.handleListWorkItems)).Methods(http.MethodGet)
	api.HandleFunc("/work-items/complete", s.authed(s.handleCompleteWorkItem)).Methods(http.MethodPost)
	api.HandleFunc("/work-items/{id}/complete", s.authed(s.handleCompleteWorkItemByID)).Methods(http.MethodPost)
	api.HandleFunc("/work-items/{id}/revert", s.authed(s.handleRevertWorkItem)).Methods(http.MethodPost)

	api.HandleFunc("/workers", s.admin(s.handleListWorkers)).Methods(http.MethodGet)
	api.HandleFunc("/workers", s.admin(s.handleCreateWorker)).Methods(http.MethodPost)
	api.HandleFunc("/workers", s.admin(s.handleUpdateWorker)).Methods(http.MethodPut)
	api.HandleFunc("/workers", s.admin(s.handleDeleteWorker)).Methods(http.MethodDelete)

	api.HandleFunc("/machines", s.admin(s.handleListMachines)).Methods(http.MethodGet)
	api.HandleFunc("/machines", s.admin(s.handleCreateMachine)).Methods(http.MethodPost)
	api.HandleFunc("/machines/{id}", s.admin(s.handleGetMachine)).Methods(http.MethodGet)
	api.HandleFunc("/machines/{id}", s.admin(s.handleUpdateMachine)).Methods(http.MethodPut)
	api.HandleFunc("/machines/{id}", s.admin(s.handleDeleteMachine)).Methods(http.MethodDelete)

	api.HandleFunc("/reports", s.admin(s.handleReports)).Methods(http.MethodGet)
	api.HandleFunc("/reports/summary", s.admin(s.handleReportSummary)).Methods(http.MethodGet)
	api.HandleFunc("/reports/export", s.admin(s.handleReportExport)).Methods(http.MethodGet)

	api.HandleFunc("/changes", s.authed(s.handleChanges)).Methods(http.MethodGet)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	close(s.closing)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server forced to shutdown", "error", err)
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
