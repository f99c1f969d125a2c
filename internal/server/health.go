package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	healthTimeout  = 2 * time.Second
	healthInterval = 10 * time.Second
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context(), healthTimeout); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthService publishes database reachability over the standard gRPC health protocol.
type HealthService struct {
	checker HealthChecker
	hs      *health.Server
	grpc    *grpc.Server
	logger  *slog.Logger
}

func NewHealthService(checker HealthChecker, logger *slog.Logger) *HealthService {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	// Reflection for grpcurl
	reflection.Register(grpcServer)
	return &HealthService{checker: checker, hs: hs, grpc: grpcServer, logger: logger}
}

// Refresh pings the database once and updates the serving status.
func (h *HealthService) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.checker.HealthCheck(ctx, healthTimeout); err != nil {
		h.logger.Warn("health.check.failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", status)
	return status
}

// Serve answers health checks on lis until ctx is done.
func (h *HealthService) Serve(ctx context.Context, lis net.Listener) error {
	h.Refresh(ctx)
	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("grpc health serving", "addr", lis.Addr().String())
		errCh <- h.grpc.Serve(lis)
	}()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			h.Refresh(ctx)
		case <-ctx.Done():
			h.hs.Shutdown()
			h.grpc.GracefulStop()
			h.logger.Info("grpc health stopped")
			return nil
		}
	}
}

// Run listens on addr and serves until ctx is done.
func (h *HealthService) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return h.Serve(ctx, lis)
}
