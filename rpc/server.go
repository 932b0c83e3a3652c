package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/wfunc/hexarace/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server manages the gRPC listener for the admin and health services.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	address    string
}

// NewServer creates a new RPC server.
func NewServer(addr string, admin AdminServer) *Server {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor))
	healthServer := health.NewServer()

	RegisterAdminServer(grpcServer, admin)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(adminServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		address:    addr,
	}
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logger.Log.Infof("RPC server listening on %s", listener.Addr())
	return s.Serve(listener)
}

func (s *Server) Serve(listener net.Listener) error {
	if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the services NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	logger.Log.Info("Stopping RPC server.")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logger.Log.Debugw("RPC call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}
