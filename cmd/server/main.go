// cmd/server/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"github.com/unclebandit/campaign-portal/internal/agent"
	"github.com/unclebandit/campaign-portal/internal/catalog"
	"github.com/unclebandit/campaign-portal/internal/config"
	"github.com/unclebandit/campaign-portal/internal/controller"
	"github.com/unclebandit/campaign-portal/internal/db"
	"github.com/unclebandit/campaign-portal/internal/enrichment"
	"github.com/unclebandit/campaign-portal/internal/handler"
	"github.com/unclebandit/campaign-portal/internal/highlight"
	"github.com/unclebandit/campaign-portal/internal/llm"
	"github.com/unclebandit/campaign-portal/internal/notify"
	"github.com/unclebandit/campaign-portal/internal/queue"
	"github.com/unclebandit/campaign-portal/internal/repository"
	"github.com/unclebandit/campaign-portal/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	cfg := config.Load(logger)

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("database unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	executionRepo := &repository.ExecutionRepository{DB: conn}
	approvalRepo := &repository.ApprovalRepository{DB: conn}
	workspaceRepo := &repository.WorkspaceRepository{DB: conn}
	prospectRepo := &repository.ProspectRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}

	plays, err := catalog.New(templateRepo)
	if err != nil {
		logger.Error("play catalog invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	platform := agent.NewClient(cfg.AgentPlatformURL, cfg.AgentPlatformAPIKey)

	var completer llm.Completer
	if cfg.LLMAPIKey != "" {
		completer = llm.NewClient(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel)
	} else {
		logger.Warn("LLM_API_KEY not set, generation endpoints will fail")
	}

	var enricher service.Enricher
	if cfg.EnrichmentAPIKey != "" {
		enricher = enrichment.NewService(cfg.EnrichmentURL, cfg.EnrichmentAPIKey, cfg.EnrichmentDelay, cfg.EnrichmentTimeout, logger)
	}

	// Jobs go to RabbitMQ when configured, where cmd/worker consumes them.
	// Otherwise they run in this process.
	var q queue.Queue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("rabbitmq unavailable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer amqpQueue.Close()
		q = amqpQueue
	} else {
		memQueue := queue.NewInMemoryQueue(logger)
		if err := notify.StartSubscriber(memQueue, cfg.NotifyQueue, notify.NewWebhookSender(10*time.Second), logger); err != nil {
			logger.Error("notification subscriber failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if enricher != nil {
			worker := &service.EnrichmentWorker{Prospects: prospectRepo, Enricher: enricher, Logger: logger}
			if err := worker.Start(memQueue); err != nil {
				logger.Error("enrichment worker failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}
		q = memQueue
	}
	notifier := &notify.Notifier{Queue: q, Topic: cfg.NotifyQueue, Logger: logger}

	campaignService := &service.CampaignService{
		Executions:  executionRepo,
		Workspaces:  workspaceRepo,
		Prospects:   prospectRepo,
		Platform:    platform,
		LLM:         completer,
		Model:       cfg.LLMModel,
		Highlighter: highlight.NewEngine(completer, logger),
		Enricher:    enricher,
		Catalog:     plays,
		Queue:       q,
		Logger:      logger,
	}
	approvalService := &service.ApprovalService{
		Executions:         executionRepo,
		Approvals:          approvalRepo,
		Prospects:          prospectRepo,
		Notifier:           notifier,
		ApprovalWebhookURL: cfg.ApprovalWebhookURL,
		LaunchWebhookURL:   cfg.LaunchWebhookURL,
		ReviewBaseURL:      cfg.ReviewBaseURL,
		Logger:             logger,
	}
	provisioner := &service.Provisioner{
		Platform:             platform,
		Workspaces:           workspaceRepo,
		Notifier:             notifier,
		SubmissionWebhookURL: cfg.SubmissionWebhookURL,
		Logger:               logger,
	}

	api := controller.Routes(controller.Controllers{
		Campaigns:  &controller.CampaignController{CampaignService: campaignService, Logger: logger},
		Approvals:  &controller.ApprovalController{ApprovalService: approvalService, Logger: logger},
		Workspaces: &controller.WorkspaceController{Provisioner: provisioner, Workspaces: workspaceRepo, Logger: logger},
		Catalog:    &controller.CatalogController{Catalog: plays, Logger: logger},
	})
	review := &handler.ReviewHandler{Service: approvalService, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := conn.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api/v1", api)
	r.Mount("/review", review.Routes())

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{
			"Content-Type",
			controller.HeaderUserID,
			controller.HeaderUserEmail,
			controller.HeaderUserRole,
			controller.HeaderActingAs,
		}),
	)

	// The write timeout covers generation, which makes several sequential
	// model calls.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.CombinedLoggingHandler(os.Stdout, cors(r)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", slog.String("error", err.Error()))
	}
	if mem, ok := q.(*queue.InMemoryQueue); ok {
		mem.Wait()
	}
	logger.Info("server stopped")
}
