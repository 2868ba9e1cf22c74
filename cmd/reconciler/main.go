package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecomkit/orderflow/internal/config"
	"github.com/ecomkit/orderflow/internal/infrastructure/gateway"
	"github.com/ecomkit/orderflow/internal/infrastructure/persistence"
	"github.com/ecomkit/orderflow/internal/infrastructure/persistence/postgres"
	"github.com/ecomkit/orderflow/internal/service"
	"github.com/ecomkit/orderflow/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment reconciler",
		"interval", cfg.Worker.Interval,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orderRepo := postgres.NewOrderRepository(db)

	gatewayClient := gateway.NewGatewayClient(cfg.Gateway)
	retryClient := gateway.NewRetryGatewayClient(gatewayClient, cfg.Retry)

	paymentService := service.NewPaymentService(orderRepo, retryClient, service.PaymentURLs{
		SuccessURL: cfg.Payment.SuccessURL,
		WebhookURL: cfg.Payment.WebhookURL,
	}, logger)

	reconciler := worker.NewReconciler(
		orderRepo,
		paymentService,
		cfg.Worker.StaleAfter,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reconciler.Start(workerCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down reconciler...")
	cancel()
	logger.Info("reconciler exited")
}
