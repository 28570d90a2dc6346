package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"linkdock/internal/bot"
	"linkdock/internal/config"
	"linkdock/internal/metadata"
	"linkdock/internal/retry"
	"linkdock/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	log.WithFields(logrus.Fields{
		"badgerdb_path": cfg.BadgerDBPath,
		"fetcher":       cfg.Fetcher,
	}).Info("Configuration loaded")

	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	var fetcher metadata.Fetcher
	switch cfg.Fetcher {
	case config.FetcherBrowser:
		rodFetcher, err := metadata.NewRodFetcher(cfg.FetchTimeout(), log)
		if err != nil {
			log.Fatalf("Failed to initialize browser fetcher: %v", err)
		}
		defer func() {
			if err := rodFetcher.Close(); err != nil {
				log.WithError(err).Error("Error closing browser fetcher")
			}
		}()
		fetcher = rodFetcher
	default:
		fetcher = metadata.NewHTTPFetcher(cfg.FetchTimeout(), log)
	}

	coordinator := retry.NewCoordinator(repo, fetcher, log, retry.Options{
		BatchSize:       cfg.RetryBatchSize,
		GlobalInterval:  cfg.RetryGlobalInterval(),
		PerLinkInterval: cfg.RetryPerLinkInterval(),
	})

	botHandler, err := bot.NewHandler(cfg, repo, fetcher, coordinator, log)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot handler: %v", err)
	}

	log.Info("Starting linkdock...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go botHandler.Start(ctx)

	log.Info("linkdock is running. Press Ctrl+C to exit.")

	<-ctx.Done()

	log.Info("Shutting down linkdock...")
	stop()

	log.Info("linkdock shut down gracefully.")
}
