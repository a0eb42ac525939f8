package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Server runs the gateway under the supervisor.
type Server struct {
	log     *slog.Logger
	address string
	handler http.Handler
}

func NewServer(log *slog.Logger, address string, handler http.Handler) Server {
	return Server{log: log, address: address, handler: handler}
}

func (s Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

func (s Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP gateway", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP gateway error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Stopping HTTP gateway")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Hijacked websockets are not tracked by Shutdown
		_ = srv.Close()
	}
	return nil
}
