package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/bookstore-orderflow/internal/config"
	"github.com/joao-fontenele/bookstore-orderflow/internal/coupons"
	"github.com/joao-fontenele/bookstore-orderflow/internal/messaging"
	"github.com/joao-fontenele/bookstore-orderflow/internal/orders"
	"github.com/joao-fontenele/bookstore-orderflow/internal/payment"
	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
	"github.com/joao-fontenele/bookstore-orderflow/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Worker
	if err := config.Load(&cfg); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Tracer("worker"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.ConnectPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.PaymentRequestsTopic)
	defer func() { _ = producer.Close() }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.PaymentOutcomesTopic, cfg.ConsumerGroup)
	defer func() { _ = consumer.Close() }()

	// Checkout never runs here.
	orderService := orders.NewService(db, payment.NewValidator(decimal.Zero), producer, metrics, logger, orders.Options{})
	outcomes := worker.NewPaymentOutcomeHandler(orderService, logger)
	sweeper := worker.NewSweeper(orderService, coupons.NewRepository(db), worker.SweeperConfig{
		StaleAfter:  cfg.StalePaymentAfter,
		MaxRequests: cfg.MaxPaymentRequests,
		Interval:    cfg.SweepInterval,
	}, logger)

	logger.Info("starting payment outcome worker", "brokers", cfg.KafkaBrokers, "topic", cfg.PaymentOutcomesTopic)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Consume(ctx, outcomes.Handle)
	})
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
