package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/tokenforge/service/config"
	"github.com/brojonat/tokenforge/service/db"
	"github.com/brojonat/tokenforge/service/metrics"
	"github.com/brojonat/tokenforge/service/nats"
	"github.com/brojonat/tokenforge/service/server"
	"github.com/brojonat/tokenforge/service/solana"
	"github.com/brojonat/tokenforge/service/tokentx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Fails fast if any config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"network", cfg.SolanaNetwork,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Solana RPC client. Premium endpoints carry their API key in the URL, so
	// metrics and logs only ever see EndpointLabel's short name.
	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	commitment, err := solana.ParseCommitment(cfg.SolanaCommitment)
	if err != nil {
		logger.Error("invalid commitment", "error", err)
		os.Exit(1)
	}
	rpcClient := solana.NewRPCClient(endpoint, cfg.RPCTimeout)
	endpointLabel := solana.EndpointLabel(endpoint)
	ledger := solana.NewClient(rpcClient, endpointLabel, commitment, m, logger)
	logger.Info("initialized solana RPC client",
		"network", cfg.SolanaNetwork,
		"endpoint", endpointLabel,
		"endpoints", len(cfg.SolanaRPCURLs),
		"commitment", cfg.SolanaCommitment,
	)

	encoding, err := tokentx.ParseEncoding(cfg.EnvelopeEncoding)
	if err != nil {
		logger.Error("invalid envelope encoding", "error", err)
		os.Exit(1)
	}
	svc := tokentx.NewService(ledger,
		tokentx.WithEncoding(encoding),
		tokentx.WithLogger(logger),
		tokentx.WithMetrics(m),
	)

	// Build records are optional
	var store *db.Store
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		store = db.NewStore(dbPool, m)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")
	}

	// Build events are optional
	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		jsPublisher, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher
	}

	httpServer := server.New(cfg, svc, store, publisher, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"build_records", store != nil,
		"build_events", publisher != nil,
		"encoding", encoding,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
