package main

import (
	"anonchat/broker"
	"anonchat/infrastructure/gateway"
	"anonchat/infrastructure/grpc/server"
	"anonchat/observability"
	"anonchat/repositories"
	"anonchat/runtime/workers"
	"anonchat/services"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets the deferred store and broker cleanup run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Message store
	store, err := repositories.Open(config.StoreDriver, config.BadgerFilepath, config.SQLiteFilepath, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("message store opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing message store...", "driver", config.StoreDriver)
		_ = store.Close()
	}()

	// 3. Broadcast channel
	channel, err := broker.Open(config.BrokerDriver, config.NatsURL, config.Channel, log, config.SinkTimeout)
	if err != nil {
		return exitRuntime, fmt.Errorf("broker opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing broker...", "driver", config.BrokerDriver)
		_ = channel.Close()
	}()

	// 4. Metrics & coordinator
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	coordinator := services.NewChatService(log, store, channel, metrics, config.MaxTextLength)

	// 5. Supervised servers
	chatServer := server.NewChatServer(log, coordinator, config.ConnectionBufferSize, config.HistoryLimit)
	handler := gateway.NewHandler(log, coordinator, registry, config.ConnectionBufferSize, config.HistoryLimit)
	sup := workers.NewSupervisor(log, config.RestartInterval).
		OnRestart(func(worker string) { metrics.WorkerRestarts.WithLabelValues(worker).Inc() })
	sup.Add(
		server.NewGrpcWorker(log, config.GrpcAddress(), chatServer),
		gateway.NewServer(log, config.HttpAddress(), handler.Router()),
	)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("anonchat server started",
		"grpc", config.GrpcAddress(),
		"http", config.HttpAddress(),
		"store", config.StoreDriver,
		"broker", config.BrokerDriver,
		"channel", config.Channel)

	// 7. Wait for Stop
	sup.Run(ctx)
	log.Info("Program stopped cleanly")
	return exitOK, nil
}
