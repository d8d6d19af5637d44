// Package config loads per-binary settings from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
)

// Telemetry is shared by every traced binary.
type Telemetry struct {
	OTLPEndpoint     string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceVersion   string  `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	TraceSampleRatio float64 `envconfig:"TRACE_SAMPLE_RATIO" default:"1"`
}

// Tracer builds the tracer settings for the named service.
func (t Telemetry) Tracer(serviceName string) telemetry.TracerConfig {
	return telemetry.TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: t.ServiceVersion,
		Endpoint:       t.OTLPEndpoint,
		SampleRatio:    t.TraceSampleRatio,
	}
}

type Store struct {
	Telemetry
	Port                 string          `envconfig:"PORT" default:"8080"`
	PostgresURL          string          `envconfig:"POSTGRES_URL" required:"true"`
	KafkaBrokers         []string        `envconfig:"KAFKA_BROKERS"`
	PaymentRequestsTopic string          `envconfig:"PAYMENT_REQUESTS_TOPIC" default:"payment.requests"`
	RedisAddr            string          `envconfig:"REDIS_ADDR"`
	EmailServiceURL      string          `envconfig:"EMAIL_SERVICE_URL"`
	MinCardAmount        decimal.Decimal `envconfig:"MIN_CARD_AMOUNT" default:"10.00"`
	MinItemFreight       decimal.Decimal `envconfig:"MIN_ITEM_FREIGHT" default:"10.00"`
	IdempotencyTTL       time.Duration   `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

type Worker struct {
	Telemetry
	PostgresURL          string        `envconfig:"POSTGRES_URL" required:"true"`
	KafkaBrokers         []string      `envconfig:"KAFKA_BROKERS" required:"true"`
	PaymentRequestsTopic string        `envconfig:"PAYMENT_REQUESTS_TOPIC" default:"payment.requests"`
	PaymentOutcomesTopic string        `envconfig:"PAYMENT_OUTCOMES_TOPIC" default:"payment.outcomes"`
	ConsumerGroup        string        `envconfig:"CONSUMER_GROUP" default:"payment-outcome-worker"`
	StalePaymentAfter    time.Duration `envconfig:"STALE_PAYMENT_AFTER" default:"30m"`
	MaxPaymentRequests   int           `envconfig:"MAX_PAYMENT_REQUESTS" default:"3"`
	SweepInterval        time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
}

type Payments struct {
	Telemetry
	PostgresURL          string   `envconfig:"POSTGRES_URL" required:"true"`
	KafkaBrokers         []string `envconfig:"KAFKA_BROKERS" required:"true"`
	PaymentRequestsTopic string   `envconfig:"PAYMENT_REQUESTS_TOPIC" default:"payment.requests"`
	PaymentOutcomesTopic string   `envconfig:"PAYMENT_OUTCOMES_TOPIC" default:"payment.outcomes"`
	ConsumerGroup        string   `envconfig:"CONSUMER_GROUP" default:"payment-simulator"`
	ApprovalRate         float64  `envconfig:"PAYMENT_APPROVAL_RATE" default:"0.7"`
	MaxAttempts          int      `envconfig:"PAYMENT_MAX_ATTEMPTS" default:"3"`
}

type Migrate struct {
	PostgresURL    string `envconfig:"POSTGRES_URL" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
}

type Email struct {
	Telemetry
	Port string `envconfig:"PORT" default:"8084"`
}

// Load fills cfg, one of the structs above, from the environment.
func Load(cfg any) error {
	return envconfig.Process("", cfg)
}
