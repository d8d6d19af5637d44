package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/bookstore-orderflow/internal/cart"
	"github.com/joao-fontenele/bookstore-orderflow/internal/config"
	"github.com/joao-fontenele/bookstore-orderflow/internal/email"
	"github.com/joao-fontenele/bookstore-orderflow/internal/idempotency"
	"github.com/joao-fontenele/bookstore-orderflow/internal/inventory"
	"github.com/joao-fontenele/bookstore-orderflow/internal/messaging"
	"github.com/joao-fontenele/bookstore-orderflow/internal/orders"
	"github.com/joao-fontenele/bookstore-orderflow/internal/payment"
	"github.com/joao-fontenele/bookstore-orderflow/internal/returns"
	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Store
	if err := config.Load(&cfg); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Tracer("store"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("store", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

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

	var publisher messaging.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.PaymentRequestsTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, payment requests are left to the worker sweep")
	}

	var guard orders.IdempotencyGuard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		guard = idempotency.NewGuard(rdb, cfg.IdempotencyTTL)
	}

	var notifier returns.Notifier
	if cfg.EmailServiceURL != "" {
		httpClient := &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		notifier = email.NewClient(cfg.EmailServiceURL, httpClient)
	}

	stockHandler := inventory.NewHandler(inventory.NewService(db, logger), logger)
	cartHandler := cart.NewHandler(cart.NewService(db, metrics, logger, cfg.MinItemFreight), logger)
	orderService := orders.NewService(db, payment.NewValidator(cfg.MinCardAmount), publisher, metrics, logger,
		orders.Options{MinItemFreight: cfg.MinItemFreight})
	orderHandler := orders.NewHandler(orderService, guard, logger)
	returnHandler := returns.NewHandler(returns.NewService(db, notifier, logger), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /books/{bookId}/stock", telemetry.WithHTTPRoute(stockHandler.HandleListStock))
	mux.HandleFunc("POST /stock", telemetry.WithHTTPRoute(stockHandler.HandleEnter))
	mux.HandleFunc("GET /stock/{id}", telemetry.WithHTTPRoute(stockHandler.HandleGetStock))

	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("DELETE /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItems))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandleCheckout))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))

	mux.HandleFunc("POST /returns", telemetry.WithHTTPRoute(returnHandler.HandleStore))
	mux.HandleFunc("GET /returns", telemetry.WithHTTPRoute(returnHandler.HandleList))
	mux.HandleFunc("GET /returns/{id}", telemetry.WithHTTPRoute(returnHandler.HandleGet))
	mux.HandleFunc("PATCH /returns/{id}/status", telemetry.WithHTTPRoute(returnHandler.HandleUpdateStatus))

	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "store",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting store service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
