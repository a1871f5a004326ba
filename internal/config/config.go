package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	FreeDeliveryThreshold decimal.Decimal
	StandardDeliveryCost  decimal.Decimal

	OracleAttempts int
	OracleDelay    time.Duration

	IdempotencyTTL time.Duration
	MembershipTTL  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	attempts, _ := strconv.Atoi(os.Getenv("ORACLE_ATTEMPTS"))
	if attempts == 0 {
		attempts = 5
	}
	delay, _ := time.ParseDuration(os.Getenv("ORACLE_DELAY"))
	if delay == 0 {
		delay = time.Second
	}
	idempTTL, _ := time.ParseDuration(os.Getenv("IDEMPOTENCY_TTL"))
	if idempTTL == 0 {
		idempTTL = time.Hour
	}
	membershipTTL, _ := time.ParseDuration(os.Getenv("MEMBERSHIP_CACHE_TTL"))
	if membershipTTL == 0 {
		membershipTTL = 5 * time.Minute
	}

	return &Config{
		CRDBDSN:               os.Getenv("CRDB_DSN"),
		MongoURI:              os.Getenv("MONGO_URI"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RabbitURL:             os.Getenv("RABBIT_URL"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		FreeDeliveryThreshold: decimalEnv("FREE_DELIVERY_THRESHOLD", "50"),
		StandardDeliveryCost:  decimalEnv("STANDARD_DELIVERY_COST", "4.99"),
		OracleAttempts:        attempts,
		OracleDelay:           delay,
		IdempotencyTTL:        idempTTL,
		MembershipTTL:         membershipTTL,
	}, nil
}

func decimalEnv(key, fallback string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}
