// Package healthcheck expose le health check gRPC standard (K8s/Docker) de chaque service.
// L'état suit la santé du bus : NOT_SERVING quand le broker est injoignable ou le circuit ouvert.
package healthcheck

import (
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Source émet les changements de santé (eventbus.Client).
type Source interface {
	OnHealthChange(fn func(healthy bool))
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func New(logger *slog.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health: health.NewServer(),
		logger: logger,
	}
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	// Active la reflection pour grpcurl
	reflection.Register(s.grpc)
	// On démarre NOT_SERVING tant que le bus n'est pas connecté
	s.SetServing(false)
	return s
}

func (s *Server) SetServing(ok bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Follow branche l'état du health check sur src.
func (s *Server) Follow(src Source) {
	src.OnHealthChange(func(healthy bool) {
		s.logger.Info("health changed", "serving", healthy)
		s.SetServing(healthy)
	})
}

// Serve bloque jusqu'à GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
