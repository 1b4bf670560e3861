package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
)

// Package-level logger
var logger *slog.Logger

func init() {
	// Replaced with the configured level in main; tests and early startup
	// paths still get a usable logger
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// initLogger initializes the structured logger based on the log level
func initLogger(logLevel string) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(handler)
}

func main() {
	mode := flag.String("mode", "repl", "run mode: repl, serve, demo, or both")
	flag.Parse()

	// Load configuration
	cfg := LoadConfig()

	// Initialize structured logger
	initLogger(cfg.LogLevel)

	// Initialize engine (loads and re-validates persisted state)
	engine, err := NewEngine(cfg)
	if err != nil {
		logger.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := NewDispatcher(engine)

	switch *mode {
	case "repl":
		NewREPL(dispatcher, engine, os.Stdin, os.Stdout).Run(ctx)

	case "demo":
		if err := RunDemo(ctx, engine); err != nil {
			logger.Error("Demo failed", "error", err)
			os.Exit(1)
		}

	case "serve":
		if err := runServers(ctx, engine, dispatcher, cfg); err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}

	case "both":
		serverCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() {
			errCh <- runServers(serverCtx, engine, dispatcher, cfg)
		}()

		NewREPL(dispatcher, engine, os.Stdin, os.Stdout).Run(ctx)
		cancel()
		if err := <-errCh; err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}

	default:
		logger.Error("Unknown mode", "mode", *mode)
		os.Exit(1)
	}
}

// runServers starts the HTTP and socket APIs and blocks until both stop
func runServers(ctx context.Context, engine *Engine, dispatcher *Dispatcher, cfg *Config) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := NewAPIServer(engine, cfg).Start(ctx); err != nil {
			errCh <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := NewSocketServer(dispatcher, cfg.SocketPort).Start(ctx); err != nil {
			errCh <- err
		}
	}()

	wg.Wait()
	close(errCh)
	return <-errCh
}
