package health

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the standard grpc.health.v1 service for orchestrators that probe over gRPC.
type GRPCServer struct {
	port   string
	server *grpc.Server
	health *grpchealth.Server
	logger *logrus.Logger
}

// NewGRPCServer creates a gRPC health server. Every service starts as NOT_SERVING.
func NewGRPCServer(port string, logger *logrus.Logger) *GRPCServer {
	if port == "" {
		port = "9090"
	}

	server := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	return &GRPCServer{
		port:   port,
		server: server,
		health: healthServer,
		logger: logger,
	}
}

// SetStatus updates the status of the named service and of the overall server
func (g *GRPCServer) SetStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	g.health.SetServingStatus("", status)
	if service != "" {
		g.health.SetServingStatus(service, status)
	}
}

// Start listens on the configured port and serves in the background
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", ":"+g.port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.port, err)
	}
	return g.Serve(lis)
}

// Serve serves on an existing listener in the background
func (g *GRPCServer) Serve(lis net.Listener) error {
	g.logger.WithField("addr", lis.Addr().String()).Info("gRPC health server starting")
	go func() {
		if err := g.server.Serve(lis); err != nil {
			g.logger.WithError(err).Error("gRPC health server error")
		}
	}()
	return nil
}

// Stop marks every service NOT_SERVING and drains open calls
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
