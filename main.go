package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"exitSentry/config"
	"exitSentry/internal/adapters/binanceclient"
	"exitSentry/internal/adapters/logger"
	"exitSentry/internal/adapters/sqlite"
	"exitSentry/internal/app"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New("exitSentry", logger.ParseLevel(cfg.LogLevel))
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
		QuoteAsset: cfg.QuoteAsset,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 5. Initialize the Reconciliation Monitor
	monitor, err := app.NewMonitor(
		cfg,
		appLogger,
		binanceClient, // Pass the concrete implementation, monitor expects the interface
		repo,          // Pass the concrete implementation, monitor expects the interface
		repo,          // Pass the concrete implementation, monitor expects the interface
		repo,          // Pass the concrete implementation, monitor expects the interface
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize reconciliation monitor")
		log.Fatalf("FATAL: Failed to initialize reconciliation monitor: %v", err)
	}
	appLogger.Info(context.Background(), "Reconciliation monitor initialized")

	// 6. Start and run until interrupted
	monitor.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info(context.Background(), "Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	monitor.Stop()
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
