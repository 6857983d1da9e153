package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dtftp/internal/logger"
	"github.com/marmos91/dtftp/pkg/config"
	"github.com/marmos91/dtftp/pkg/metrics"
	"github.com/marmos91/dtftp/pkg/server"
	"github.com/marmos91/dtftp/pkg/stats"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	port := flag.Int("port", 0, "UDP port override")
	root := flag.String("root", "", "Serve files from this directory (overrides configured source)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// flag overrides beat both file and environment
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Source = config.SourceConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"root": *root},
		}
	}

	if err := setupLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("dtftp starting")

	provider, err := config.CreateSourceProvider(ctx, &cfg.Source)
	if err != nil {
		logger.Error("Failed to create data source: %v", err)
		os.Exit(1)
	}
	if closer, ok := provider.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("Closing data source: %v", err)
			}
		}()
	}

	collector, metricsServer := config.CreateMetrics(&cfg.Metrics)
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	cfg.Server.OnSessionStats = logSessionStats
	if promCallback := metrics.ServerStatsCallback(); promCallback != nil {
		cfg.Server.OnServerStats = func(s *stats.ServerStats) {
			counters := s.GetAllCounters()
			promCallback(s)
			logServerCounters(counters)
		}
	} else {
		cfg.Server.OnServerStats = func(s *stats.ServerStats) {
			logServerCounters(s.GetAndResetAllCounters())
		}
	}

	srv, err := server.New(cfg.Server, server.ProviderHandler(provider), collector)
	if err != nil {
		logger.Error("Failed to create server: %v", err)
		os.Exit(1)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("dtftp is running on port %d. Press Ctrl+C to stop.", cfg.Server.Port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}

func setupLogger(cfg *config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)

	switch cfg.Output {
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		logger.SetOutput(f)
	}
	return nil
}

func logSessionStats(rec stats.SessionStats) {
	switch rec.Outcome {
	case stats.OutcomeComplete:
		logger.Info("Transfer complete: peer=%s path=%q bytes=%d packets=%d retransmits=%d duration=%v",
			rec.Peer, rec.Path, rec.BytesSent, rec.PacketsSent, rec.Retransmits, rec.Duration())
	case stats.OutcomeTimedOut:
		logger.Warn("Transfer timed out: peer=%s path=%q bytes=%d retransmits=%d",
			rec.Peer, rec.Path, rec.BytesSent, rec.Retransmits)
	default:
		code := uint16(0)
		message := ""
		if rec.Error != nil {
			code = rec.Error.Code
			message = rec.Error.Message
		}
		logger.Warn("Transfer failed: peer=%s path=%q error=%d %q", rec.Peer, rec.Path, code, message)
	}
}

func logServerCounters(counters map[string]int64) {
	if len(counters) == 0 {
		return
	}
	logger.Info("Server stats: spawned=%d complete=%d errors=%d timed_out=%d bytes=%d retransmits=%d",
		counters[stats.CounterSessionsSpawned],
		counters[stats.CounterSessionsComplete],
		counters[stats.CounterSessionsError],
		counters[stats.CounterSessionsTimedOut],
		counters[stats.CounterBytesSent],
		counters[stats.CounterRetransmits])
}
