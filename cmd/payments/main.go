package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/bookstore-orderflow/internal/config"
	"github.com/joao-fontenele/bookstore-orderflow/internal/messaging"
	"github.com/joao-fontenele/bookstore-orderflow/internal/paymentsim"
	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Payments
	if err := config.Load(&cfg); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Tracer("payments"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.ConnectPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.PaymentOutcomesTopic)
	defer func() { _ = producer.Close() }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.PaymentRequestsTopic, cfg.ConsumerGroup)
	defer func() { _ = consumer.Close() }()

	simulator := paymentsim.NewSimulator(paymentsim.NewAttemptRepository(db), producer, paymentsim.Options{
		ApprovalRate: cfg.ApprovalRate,
		MaxAttempts:  cfg.MaxAttempts,
	}, logger)

	logger.Info("starting payment simulator", "brokers", cfg.KafkaBrokers, "approval_rate", cfg.ApprovalRate)

	if err := consumer.Consume(ctx, simulator.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
