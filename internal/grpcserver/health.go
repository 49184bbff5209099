// Package grpcserver exposes the internal gRPC health endpoint used by
// orchestrators and sidecars.
package grpcserver

import (
	"context"
	"errors"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"dm-service/internal/logging"
	"dm-service/internal/observability"
)

// ServiceName is the health service key reported alongside the overall status.
const ServiceName = "dm-service"

// HealthServer wraps a grpc.Server that only carries the health service.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	log    logging.Logger
}

// NewHealthServer builds a server that starts out NOT_SERVING.
func NewHealthServer(log logging.Logger) *HealthServer {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	h := &HealthServer{srv: srv, health: hs, log: log}
	h.SetServing(false)
	return h
}

// SetServing flips the overall and per-service status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// Serve blocks accepting connections on lis until Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.log.Info(context.Background(), "grpc health server listening", "addr", lis.Addr().String())
	if err := h.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight calls, or stops hard once ctx is done.
func (h *HealthServer) Stop(ctx context.Context) {
	h.health.Shutdown()

	done := make(chan struct{})
	go func() {
		h.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.srv.Stop()
	}
}
