// Package main provides the entry point for the strategy backtest server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/strategy-backtester/internal/api"
	"github.com/atlas-desktop/strategy-backtester/internal/backtest"
	"github.com/atlas-desktop/strategy-backtester/internal/config"
	"github.com/atlas-desktop/strategy-backtester/internal/marketdata"
	"github.com/atlas-desktop/strategy-backtester/internal/workers"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	host := flag.String("host", "", "Listen address (overrides config)")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logger.Info("Starting strategy backtest server",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Strings("benchmarks", cfg.Benchmarks),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alpaca, err := marketdata.NewAlpacaProvider(logger, marketdata.AlpacaConfig{
		APIKey:         cfg.AlpacaAPIKey,
		APISecret:      cfg.AlpacaAPISecret,
		BaseURL:        cfg.AlpacaBaseURL,
		Feed:           cfg.AlpacaFeed,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	if err != nil {
		logger.Fatal("Failed to initialize market data provider", zap.Error(err))
	}
	provider := marketdata.NewCachedProvider(logger, alpaca, cfg.CacheTTL)

	pool := workers.NewPool(logger, workers.DefaultPoolConfig("backtest"))
	pool.Start(ctx)

	runner := backtest.NewRunner(logger, provider, pool, backtest.RunnerConfig{
		Benchmarks:         cfg.Benchmarks,
		PortfolioBenchmark: cfg.PortfolioBenchmark,
	})

	server := api.NewServer(logger, api.ServerConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.EnableMetrics,
	}, runner)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")

	// Drain queued work before cancelling the context: a worker that exits
	// on ctx.Done with tasks still queued would strand an in-flight request.
	pool.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
