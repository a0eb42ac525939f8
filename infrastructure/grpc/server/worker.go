package server

import (
	"anonchat/infrastructure/grpc/chatv1"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
)

const gracefulStopTimeout = 5 * time.Second

// GrpcWorker serves the chat service until its context is canceled.
// A Serve failure is returned so the supervisor restarts the listener.
type GrpcWorker struct {
	log     *slog.Logger
	address string
	server  chatv1.ChatServiceServer
}

func NewGrpcWorker(log *slog.Logger, address string, server chatv1.ChatServiceServer) GrpcWorker {
	return GrpcWorker{log: log, address: address, server: server}
}

func (w GrpcWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}
	return w.Serve(ctx, listener)
}

// Serve runs the gRPC server on an existing listener.
func (w GrpcWorker) Serve(ctx context.Context, listener net.Listener) error {
	s := grpc.NewServer()
	chatv1.RegisterChatServiceServer(s, w.server)

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC server", "address", listener.Addr().String())
		if err := s.Serve(listener); err != nil && err != grpc.ErrServerStopped {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		w.log.Info("Stopping gRPC server")
	case err := <-errChan:
		return err
	}

	// Subscribe streams only end when their client leaves: do not wait forever.
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(gracefulStopTimeout):
		s.Stop()
	}
	return nil
}
