package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStoreDefaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/bookstore")

	var cfg Store
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "10.00", cfg.MinCardAmount.StringFixed(2))
	assert.Equal(t, "10.00", cfg.MinItemFreight.StringFixed(2))
	assert.Equal(t, "payment.requests", cfg.PaymentRequestsTopic)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadStoreOverrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/bookstore")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MIN_CARD_AMOUNT", "15.50")

	var cfg Store
	require.NoError(t, Load(&cfg))

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "15.50", cfg.MinCardAmount.StringFixed(2))
}

func TestLoadRequiresPostgres(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	require.NoError(t, os.Unsetenv("POSTGRES_URL"))
	t.Setenv("KAFKA_BROKERS", "k1:9092")

	var cfg Worker
	assert.Error(t, Load(&cfg))
}

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/bookstore")
	t.Setenv("KAFKA_BROKERS", "k1:9092")

	var cfg Worker
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 30*time.Minute, cfg.StalePaymentAfter)
	assert.Equal(t, 3, cfg.MaxPaymentRequests)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "payment.outcomes", cfg.PaymentOutcomesTopic)
}

func TestLoadMigrateDefaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/bookstore")

	var cfg Migrate
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
}

func TestLoadTelemetry(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"OTEL_EXPORTER_OTLP_ENDPOINT", "SERVICE_VERSION", "TRACE_SAMPLE_RATIO"} {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}

		var cfg Email
		require.NoError(t, Load(&cfg))

		tc := cfg.Tracer("email")
		assert.Equal(t, "email", tc.ServiceName)
		assert.Equal(t, "localhost:4317", tc.Endpoint)
		assert.Equal(t, "0.1.0", tc.ServiceVersion)
		assert.Equal(t, 1.0, tc.SampleRatio)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "postgres://localhost/bookstore")
		t.Setenv("KAFKA_BROKERS", "k1:9092")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
		t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

		var cfg Payments
		require.NoError(t, Load(&cfg))

		tc := cfg.Tracer("payments")
		assert.Equal(t, "collector:4317", tc.Endpoint)
		assert.Equal(t, 0.25, tc.SampleRatio)
	})
}
