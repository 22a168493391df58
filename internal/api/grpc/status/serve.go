package status

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/fire-sentinel/internal/logger"
)

// Board is what the gRPC surface reads from.
type Board interface {
	Source
	Subscriber
}

// Serve listens on address and serves the status and health services until
// ctx is cancelled.
func Serve(ctx context.Context, address string, board Board) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return ServeListener(ctx, lis, board)
}

// ServeListener serves on an existing listener until ctx is cancelled.
func ServeListener(ctx context.Context, lis net.Listener, board Board) error {
	ctx = logger.WithName(ctx, "grpc")

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()

	RegisterStatusServiceServer(grpcServer, NewServer(board))
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	go WatchHealth(watchCtx, board, healthServer)

	logger.InfoKV(ctx, "gRPC status server listening", "listen_address", lis.Addr().String())

	// done is closed once GracefulStop returns so Serve never returns early.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "gRPC server stopped")

	return nil
}
