package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/pkg/api"
	"github.com/marmos91/tinymmo/pkg/config"
	"github.com/marmos91/tinymmo/pkg/game"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/marmos91/tinymmo/pkg/server"
)

const usage = `tinymmo - tick-synchronized UDP game server

Usage:
  tinymmo init [--force]          Write a sample config to %s
  tinymmo start [--config PATH]   Run the server (default command)
`

func main() {
	args := os.Args[1:]
	command := "start"
	if len(args) > 0 && (args[0] == "init" || args[0] == "start") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "init":
		os.Exit(runInit(args))
	default:
		os.Exit(runStart(args))
	}
}

func runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	fs.Usage = func() { fmt.Fprintf(os.Stderr, usage, config.GetDefaultConfigPath()) }
	_ = fs.Parse(args)

	path, err := config.InitConfig(*force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Configuration written to %s\n", path)
	return 0
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, config.GetDefaultConfigPath())
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Metrics
	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Ledger
	store, err := config.CreateLedgerStore(ctx, &cfg.Ledger)
	if err != nil {
		logger.Error("Failed to create ledger: %v", err)
		return 1
	}
	archiver, err := config.CreateArchiver(ctx, &cfg.Ledger.Archive.S3, metricsResult.LedgerMetrics)
	if err != nil {
		logger.Error("Failed to configure ledger archive: %v", err)
		closeStore(store)
		return 1
	}

	opts := []server.Option{
		server.WithMetrics(metricsResult.ServerMetrics),
		server.WithLimiter(config.CreateLimiter(&cfg.RateLimit)),
	}

	var recorder *ledger.Recorder
	if store != nil {
		recorder = ledger.NewRecorder(store, cfg.Ledger.QueueSize, metricsResult.LedgerMetrics)
		opts = append(opts, server.WithRecorder(recorder))
		logger.Info("Ledger enabled: type=%s", cfg.Ledger.Type)
	}

	logger.Info("Server configuration:")
	logger.Info("  Port: %d", cfg.Server.Port)
	logger.Info("  Tick rate: %d/s", cfg.Server.TickRate)
	logger.Info("  Capacity: %d sessions", cfg.Server.Capacity)
	logger.Info("  Timeout: %d ticks", cfg.Server.TimeoutTicks)
	if cfg.RateLimit.PacketsPerSecond > 0 {
		logger.Info("  Rate limit: %d datagrams/s (burst %d)", cfg.RateLimit.PacketsPerSecond, cfg.RateLimit.Burst)
	} else {
		logger.Info("  Rate limit: unlimited")
	}

	arena := game.NewArena(uint64(cfg.Server.TickRate) * 30)
	srv := server.New(cfg.Server, arena, opts...)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.New(cfg.API, srv, store)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("Admin API error: %v", err)
			}
		}()
	}

	exitCode := 0
	if err := srv.Serve(ctx); err != nil {
		logger.Error("Server error: %v", err)
		exitCode = 1
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if apiServer != nil {
		_ = apiServer.Stop(shutdownCtx)
	}

	if recorder != nil {
		if err := recorder.Close(shutdownCtx); err != nil {
			logger.Warn("Ledger did not drain before shutdown: %v", err)
		}
	}
	if archiver != nil && store != nil {
		if _, err := archiver.Archive(shutdownCtx, store); err != nil {
			logger.Error("Ledger archive failed: %v", err)
		}
	}
	closeStore(store)

	if metricsResult.Server != nil {
		_ = metricsResult.Server.Stop(shutdownCtx)
	}

	logger.Info("Server stopped")
	return exitCode
}

func closeStore(store ledger.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close ledger: %v", err)
	}
}
