package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/rewired-gh/indexcast/internal/config"
	"github.com/rewired-gh/indexcast/internal/logger"
	"github.com/rewired-gh/indexcast/internal/quandl"
	"github.com/rewired-gh/indexcast/internal/report"
	"github.com/rewired-gh/indexcast/internal/storage"
	"github.com/rewired-gh/indexcast/internal/train"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.New(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// Initialize data provider client, cached by storage
	quandlClient := quandl.NewClient(
		cfg.Source.APIBaseURL,
		cfg.Source.APIKey,
		cfg.Source.Timeout,
		quandl.ClientConfig{
			MaxRetries:     cfg.Source.MaxRetries,
			RetryDelayBase: cfg.Source.RetryDelayBase,
		},
	)
	runID := uuid.New().String()
	fetcher := storage.NewCachedFetcher(store, quandlClient, runID)

	// Initialize Telegram notifier
	var notifier *report.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = report.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram notifier: %v", err)
		}
		logger.Info("Telegram notifier initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	run, err := runPipeline(ctx, cfg, fetcher, runID)
	if err != nil {
		if errors.Is(err, train.ErrNoExamples) {
			logger.Error("Not enough observations for window_length=%d horizon=%d: %v",
				cfg.Window.WindowLength, cfg.Window.Horizon, err)
		} else {
			logger.Error("Run failed: %v", err)
		}
		if notifier != nil {
			if sendErr := notifier.SendError(context.Background(), err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		// os.Exit skips deferred calls
		store.Close()
		os.Exit(1)
	}

	if err := store.SaveRun(ctx, run); err != nil {
		logger.Warn("Failed to save run %s: %v", run.ID, err)
	}

	if notifier != nil {
		if err := notifier.Send(ctx, run); err != nil {
			logger.Error("Failed to send Telegram notification: %v", err)
		} else {
			logger.Info("Sent Telegram summary for run %s", run.ID)
		}
	}
}
