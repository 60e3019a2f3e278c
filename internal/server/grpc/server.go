// Package grpc exposes backend health over the standard grpc.health.v1
// service, one entry per backend plus the overall "" entry.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/logging"
	"github.com/dmitrijs2005/pilosopo/internal/server/backends"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health service names.
const (
	ServiceOverall   = ""
	ServiceIdentity  = "identity"
	ServiceDocuments = "documents"
	ServiceRecords   = "records"
)

// AvailabilitySource reports which backends are usable right now.
type AvailabilitySource interface {
	Availability() backends.Availability
}

type HealthServer struct {
	address  string
	source   AvailabilitySource
	interval time.Duration
	health   *health.Server
	logger   logging.Logger
}

// NewHealthServer refreshes statuses from source every interval while
// running.
func NewHealthServer(a string, source AvailabilitySource, interval time.Duration, l logging.Logger) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s := &HealthServer{
		address:  a,
		source:   source,
		interval: interval,
		health:   health.NewServer(),
		logger:   l.With("module", "grpc_server"),
	}
	s.Refresh(context.Background())
	return s
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Refresh publishes the current availability. The process is serving while
// any backend can answer reads.
func (s *HealthServer) Refresh(ctx context.Context) {
	a := s.source.Availability()
	s.logger.Debug(ctx, "health status refreshed", "identity", a.Identity, "documents", a.Documents, "records", a.Records)
	s.health.SetServingStatus(ServiceIdentity, servingStatus(a.Identity))
	s.health.SetServingStatus(ServiceDocuments, servingStatus(a.Documents))
	s.health.SetServingStatus(ServiceRecords, servingStatus(a.Records))
	s.health.SetServingStatus(ServiceOverall, servingStatus(backends.Resolve(a, backends.Read) != backends.None))
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
