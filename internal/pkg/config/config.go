// Package config loads runtime configuration from an optional YAML file and
// SAGA_-prefixed environment variables, with explicit defaults for every
// key. Environment wins over file, file over defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	HTTPAddr string

	// RedisAddr selects the Redis-backed idempotency guard; empty selects
	// the in-memory guard (single-node development).
	RedisAddr string

	InstancesDBPath string
	SagaLogDBPath   string

	OTLPEndpoint string
	ServiceName  string
	Environment  string
	LogLevel     string

	StepTimeout    time.Duration
	DeliveryFee    decimal.Decimal
	PaymentTimeout time.Duration
	PaymentLimit   decimal.Decimal

	BusWorkers   int
	BusAttempts  int
	BusQueueSize int

	GuardTTL time.Duration
}

// Load reads the configuration. If path is non-empty the file must exist;
// otherwise only defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("redis.addr", "")
	v.SetDefault("db.instances_path", "data/instances.db")
	v.SetDefault("db.sagalog_path", "data/sagalog.db")
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.service_name", "delivery-sagas")
	v.SetDefault("otel.environment", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("saga.step_timeout", "30s")
	v.SetDefault("saga.delivery_fee", "7.90")
	v.SetDefault("payment.timeout", "10s")
	v.SetDefault("payment.limit", "500.00")
	v.SetDefault("bus.workers", 4)
	v.SetDefault("bus.attempts", 3)
	v.SetDefault("bus.queue_size", 256)
	v.SetDefault("guard.ttl", "24h")

	v.SetEnvPrefix("SAGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	fee, err := decimal.NewFromString(v.GetString("saga.delivery_fee"))
	if err != nil {
		return nil, fmt.Errorf("config: saga.delivery_fee: %w", err)
	}
	limit, err := decimal.NewFromString(v.GetString("payment.limit"))
	if err != nil {
		return nil, fmt.Errorf("config: payment.limit: %w", err)
	}

	return &Config{
		HTTPAddr:        v.GetString("http.addr"),
		RedisAddr:       v.GetString("redis.addr"),
		InstancesDBPath: v.GetString("db.instances_path"),
		SagaLogDBPath:   v.GetString("db.sagalog_path"),
		OTLPEndpoint:    v.GetString("otel.endpoint"),
		ServiceName:     v.GetString("otel.service_name"),
		Environment:     v.GetString("otel.environment"),
		LogLevel:        v.GetString("log.level"),
		StepTimeout:     v.GetDuration("saga.step_timeout"),
		DeliveryFee:     fee,
		PaymentTimeout:  v.GetDuration("payment.timeout"),
		PaymentLimit:    limit,
		BusWorkers:      v.GetInt("bus.workers"),
		BusAttempts:     v.GetInt("bus.attempts"),
		BusQueueSize:    v.GetInt("bus.queue_size"),
		GuardTTL:        v.GetDuration("guard.ttl"),
	}, nil
}
