package app

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	ac "github.com/interviewhub/authcore"
	acgrpc "github.com/interviewhub/authcore/grpc"
	"github.com/interviewhub/authcore/logging"
)

// Health checks stay reachable without a session.
var publicGRPCMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/Watch",
	"/grpc.health.v1.Health/List",
}

// newGRPCServer returns a server whose every call passes the session
// interceptors, with the standard health service registered.
func newGRPCServer(resolver ac.SessionResolver) (*grpc.Server, *health.Server) {
	cfg := acgrpc.NewInterceptorConfig(resolver, publicGRPCMethods...)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(acgrpc.UnaryAuthInterceptor(cfg)),
		grpc.ChainStreamInterceptor(acgrpc.StreamAuthInterceptor(cfg)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// serveGRPC runs srv on addr until ctx is done.
func serveGRPC(ctx context.Context, srv *grpc.Server, hs *health.Server, addr string, logger logging.Logger) error {
	listen, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	logger.Info(ctx, "Starting gRPC server", "address", addr)
	if err := srv.Serve(listen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
