package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unclebandit/campaign-portal/internal/config"
	"github.com/unclebandit/campaign-portal/internal/db"
	"github.com/unclebandit/campaign-portal/internal/enrichment"
	"github.com/unclebandit/campaign-portal/internal/notify"
	"github.com/unclebandit/campaign-portal/internal/queue"
	"github.com/unclebandit/campaign-portal/internal/repository"
	"github.com/unclebandit/campaign-portal/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	cfg := config.Load(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	conn, err := db.Open(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("database unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	q, err := queue.DialAMQP(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("rabbitmq unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer q.Close()

	var enricher *service.EnrichmentWorker
	if cfg.EnrichmentAPIKey != "" {
		enricher = &service.EnrichmentWorker{
			Prospects: &repository.ProspectRepository{DB: conn},
			Enricher:  enrichment.NewService(cfg.EnrichmentURL, cfg.EnrichmentAPIKey, cfg.EnrichmentDelay, cfg.EnrichmentTimeout, logger),
			Logger:    logger,
		}
	} else {
		logger.Warn("ENRICHMENT_API_KEY not set, enrichment jobs stay queued")
	}

	if err := subscribe(q, cfg.NotifyQueue, notify.NewWebhookSender(10*time.Second), enricher, logger); err != nil {
		logger.Error("failed to register consumers", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("worker running, waiting for jobs")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("worker stopping")
}

// subscribe registers webhook delivery and, when configured, enrichment on q.
func subscribe(q queue.Queue, notifyTopic string, sender notify.Sender, enricher *service.EnrichmentWorker, logger *slog.Logger) error {
	if err := notify.StartSubscriber(q, notifyTopic, sender, logger); err != nil {
		return err
	}
	if enricher == nil {
		return nil
	}
	return enricher.Start(q)
}
