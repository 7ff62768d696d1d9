package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/0surface/Remittance/config"
	"github.com/0surface/Remittance/core"
	"github.com/0surface/Remittance/core/events"
	"github.com/0surface/Remittance/observability"
	"github.com/0surface/Remittance/observability/logging"
	telemetry "github.com/0surface/Remittance/observability/otel"
	"github.com/0surface/Remittance/rpc"
	"github.com/0surface/Remittance/storage"
)

const (
	serviceName     = "remitd"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run starts the daemon and blocks until ctx is cancelled or the listener
// fails. ready, when set, receives the bound address.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	return runWithReady(ctx, args, stderr, nil)
}

func runWithReady(ctx context.Context, args []string, stderr io.Writer, ready chan<- string) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "./remitd.toml", "Path to the configuration file (.toml, .yaml or .yml)")
	listen := fs.String("listen", "", "Override the configured RPC listen address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if strings.TrimSpace(*listen) != "" {
		cfg.RPCAddress = *listen
	}

	env := cfg.Environment
	if env == "" {
		env = strings.TrimSpace(os.Getenv("REMIT_ENV"))
	}
	logger, logCloser := logging.Setup(serviceName, env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", slog.Any("error", err))
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	node, history, err := openNode(cfg, logger)
	if err != nil {
		logger.Error("failed to start node", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := node.Close(); err != nil {
			logger.Warn("close database", slog.Any("error", err))
		}
	}()

	server, err := rpc.NewServer(node, history, rpc.Config{
		ServiceName:       serviceName,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		TrustedProxies:    append([]string{}, cfg.RateLimit.TrustedProxies...),
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to build RPC server", slog.Any("error", err))
		return 1
	}
	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(server.Handler(), serviceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		logger.Error("failed to listen", slog.String("address", cfg.RPCAddress), slog.Any("error", err))
		return 1
	}
	logger.Info("JSON-RPC server listening",
		slog.String("address", listener.Addr().String()),
		slog.String("backend", cfg.Backend),
		slog.String("data_dir", cfg.DataDir))
	if ready != nil {
		ready <- listener.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server stopped", slog.Any("error", err))
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		return 1
	}
	return 0
}

// openNode opens the configured backend and boots the contract on it.
func openNode(cfg *config.Config, logger *slog.Logger) (*core.Node, *events.Log, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, nil, err
	}
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return nil, nil, err
	}
	genesis, err := cfg.GenesisAllocs()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", cfg.Backend, err)
	}

	history := events.NewLog(cfg.EventHistory)
	node, err := core.NewNode(db, params, core.NodeOptions{
		Owner:        owner,
		LockDuration: cfg.Contract.LockDuration,
		Genesis:      genesis,
		Emitter:      events.Multi{history, observability.EventCounter{}},
		Logger:       logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	custody, outstanding, _ := node.Solvency()
	if custody != nil && outstanding != nil {
		observability.Ledger().SetSolvency(custody, outstanding)
	}
	return node, history, nil
}
