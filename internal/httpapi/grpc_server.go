package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"kenoadmin.org/internal/obs"
)

// GRPCServer publishes readiness through the standard grpc.health.v1 service,
// both for the empty service name and for serviceName.
type GRPCServer struct {
	health    *health.Server
	readiness readinessChecker
}

func NewGRPCServer(r readinessChecker) *GRPCServer {
	s := &GRPCServer{health: health.NewServer(), readiness: r}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register attaches the health service to server.
func (s *GRPCServer) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, s.health)
}

// Refresh runs the readiness check once and publishes the result.
func (s *GRPCServer) Refresh(ctx context.Context) error {
	var err error
	if s.readiness != nil {
		err = s.readiness.Check(ctx)
	}
	if err != nil {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		obs.SetReady(false)
		return err
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	obs.SetReady(true)
	return nil
}

// Watch refreshes every interval until ctx is done, then marks the service
// as shutting down.
func (s *GRPCServer) Watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		checkCtx, cancel := context.WithTimeout(ctx, every)
		if err := s.Refresh(checkCtx); err != nil && ctx.Err() == nil {
			obs.Logger().Warn("readiness check failed", zap.Error(err))
		}
		cancel()
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

func (s *GRPCServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(serviceName, st)
}
